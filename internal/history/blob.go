package history

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// Blob encodings.
const (
	EncodingRaw  = "tlv"
	EncodingZstd = "tlv+zstd"
)

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("history: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("history: zstd decoder initialization failed: " + err.Error())
	}
}

// Checksum returns the hex BLAKE3 digest of an encoded payload.
func Checksum(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EncodeBlob compresses raw when it is at least minCompress bytes long and
// compression actually saves space. minCompress <= 0 disables compression.
func EncodeBlob(raw []byte, minCompress int) (encoding string, blob []byte) {
	if minCompress <= 0 || len(raw) < minCompress {
		return EncodingRaw, raw
	}
	compressed := zstdEncoder.EncodeAll(raw, nil)
	if len(compressed) >= len(raw) {
		return EncodingRaw, raw
	}
	return EncodingZstd, compressed
}

// DecodeBlob reverses EncodeBlob. rawSize is the expected decoded length.
func DecodeBlob(encoding string, blob []byte, rawSize int) ([]byte, error) {
	switch encoding {
	case EncodingRaw:
		if len(blob) != rawSize {
			return nil, errors.NewMalformedInput(fmt.Sprintf("blob is %d bytes, expected %d", len(blob), rawSize))
		}
		return blob, nil
	case EncodingZstd:
		out, err := zstdDecoder.DecodeAll(blob, make([]byte, 0, rawSize))
		if err != nil {
			return nil, errors.WrapMalformedInput("zstd decompress", err)
		}
		if len(out) != rawSize {
			return nil, errors.NewMalformedInput(fmt.Sprintf("zstd decompress: got %d bytes, expected %d", len(out), rawSize))
		}
		return out, nil
	default:
		return nil, errors.NewMalformedInput(fmt.Sprintf("unknown blob encoding %q", encoding))
	}
}

// Raw returns the entry's encoded payload, checking it against Checksum.
func (e *Entry) Raw() ([]byte, error) {
	raw, err := DecodeBlob(e.Encoding, e.Blob, e.RawSize)
	if err != nil {
		return nil, err
	}
	if e.Checksum != "" && Checksum(raw) != e.Checksum {
		return nil, errors.NewMalformedInput(fmt.Sprintf("checksum mismatch for entry %s", e.ID))
	}
	return raw, nil
}
