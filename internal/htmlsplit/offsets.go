package htmlsplit

import (
	"encoding/binary"
	"fmt"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// OffsetList holds the byte offsets at which a satellite's URI appears in
// its root HTML. On the wire it rides in the satellite's custom data, keyed
// by the URI, as packed little-endian uint32 values.
type OffsetList []uint32

func (l OffsetList) Pack() []byte {
	b := make([]byte, 0, 4*len(l))
	for _, off := range l {
		b = binary.LittleEndian.AppendUint32(b, off)
	}
	return b
}

func ParseOffsetList(b []byte) (OffsetList, error) {
	if len(b)%4 != 0 {
		return nil, errors.NewMalformedInput(fmt.Sprintf("offset list of %d bytes is not a multiple of 4", len(b)))
	}
	l := make(OffsetList, len(b)/4)
	for i := range l {
		l[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return l, nil
}
