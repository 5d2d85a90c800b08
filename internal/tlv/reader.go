package tlv

import (
	"encoding/binary"
	"fmt"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// Reader consumes tagged fields from a byte buffer.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Offset returns the read position within the buffer.
func (r *Reader) Offset() int { return r.off }

// ReadHead reads the next field head.
func (r *Reader) ReadHead() (Head, error) {
	if r.Remaining() < HeadSize {
		return Head{}, errors.NewMalformedInput(
			fmt.Sprintf("tlv: head needs %d bytes, %d remain at offset %d", HeadSize, r.Remaining(), r.off))
	}
	h := Head{
		Tag:    binary.LittleEndian.Uint16(r.data[r.off:]),
		Length: binary.LittleEndian.Uint32(r.data[r.off+2:]),
	}
	r.off += HeadSize
	return h, nil
}

// take returns the value bytes of h and advances past them.
func (r *Reader) take(h Head) ([]byte, error) {
	if uint64(h.Length) > uint64(r.Remaining()) {
		return nil, errors.NewMalformedInput(
			fmt.Sprintf("tlv: %s exceeds %d remaining bytes at offset %d", h, r.Remaining(), r.off))
	}
	v := r.data[r.off : r.off+int(h.Length)]
	r.off += int(h.Length)
	return v, nil
}

func (r *Reader) takeExact(h Head, size int) ([]byte, error) {
	if int(h.Length) != size {
		return nil, errors.NewMalformedInput(fmt.Sprintf("tlv: %s, want length %d", h, size))
	}
	return r.take(h)
}

// Skip advances past the value of a field the caller does not recognize.
func (r *Reader) Skip(h Head) error {
	_, err := r.take(h)
	return err
}

// Sub returns a Reader over the value of h and advances past it.
func (r *Reader) Sub(h Head) (*Reader, error) {
	v, err := r.take(h)
	if err != nil {
		return nil, err
	}
	return NewReader(v), nil
}

func (r *Reader) ReadBool(h Head) (bool, error) {
	v, err := r.takeExact(h, 1)
	if err != nil {
		return false, err
	}
	return v[0] != 0, nil
}

func (r *Reader) ReadUint32(h Head) (uint32, error) {
	v, err := r.takeExact(h, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (r *Reader) ReadInt32(h Head) (int32, error) {
	v, err := r.ReadUint32(h)
	return int32(v), err
}

func (r *Reader) ReadInt64(h Head) (int64, error) {
	v, err := r.takeExact(h, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(v)), nil
}

func (r *Reader) ReadString(h Head) (string, error) {
	v, err := r.take(h)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ReadBytes returns a copy of the value of h.
func (r *Reader) ReadBytes(h Head) ([]byte, error) {
	v, err := r.take(h)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, v...), nil
}

// ReadStrings decodes a list written by WriteStrings.
func (r *Reader) ReadStrings(h Head) ([]string, error) {
	sub, err := r.Sub(h)
	if err != nil {
		return nil, err
	}
	var ss []string
	for sub.Remaining() > 0 {
		item, err := sub.ReadHead()
		if err != nil {
			return nil, err
		}
		if item.Tag != TagListItem {
			if err := sub.Skip(item); err != nil {
				return nil, err
			}
			continue
		}
		s, err := sub.ReadString(item)
		if err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}
	return ss, nil
}

// ReadBytesMap decodes a map written by WriteBytesMap. The result is never
// nil, so an empty map round-trips as empty rather than absent.
func (r *Reader) ReadBytesMap(h Head) (map[string][]byte, error) {
	sub, err := r.Sub(h)
	if err != nil {
		return nil, err
	}
	return sub.readMapBody()
}

func (r *Reader) readMapBody() (map[string][]byte, error) {
	m := make(map[string][]byte)
	var (
		key    string
		hasKey bool
	)
	for r.Remaining() > 0 {
		h, err := r.ReadHead()
		if err != nil {
			return nil, err
		}
		switch h.Tag {
		case TagMapKey:
			if hasKey {
				return nil, errors.NewMalformedInput(fmt.Sprintf("tlv: map key %q has no value", key))
			}
			if key, err = r.ReadString(h); err != nil {
				return nil, err
			}
			hasKey = true
		case TagMapValue:
			if !hasKey {
				return nil, errors.NewMalformedInput("tlv: map value without key")
			}
			v, err := r.ReadBytes(h)
			if err != nil {
				return nil, err
			}
			m[key] = v
			hasKey = false
		default:
			if err := r.Skip(h); err != nil {
				return nil, err
			}
		}
	}
	if hasKey {
		return nil, errors.NewMalformedInput(fmt.Sprintf("tlv: map key %q has no value", key))
	}
	return m, nil
}

// ReadObject decodes the value of h into u.
func (r *Reader) ReadObject(h Head, u Unmarshaler) error {
	sub, err := r.Sub(h)
	if err != nil {
		return err
	}
	return u.DecodeTLV(sub)
}

// readPresence consumes the presence flag of an optional field and returns
// a Reader over the remaining value bytes.
func (r *Reader) readPresence(h Head) (*Reader, bool, error) {
	sub, err := r.Sub(h)
	if err != nil {
		return nil, false, err
	}
	if sub.Remaining() < 1 {
		return nil, false, errors.NewMalformedInput(fmt.Sprintf("tlv: %s missing presence flag", h))
	}
	present := sub.data[0] != 0
	sub.off = 1
	if !present && sub.Remaining() > 0 {
		return nil, false, errors.NewMalformedInput(fmt.Sprintf("tlv: %s absent but carries a value", h))
	}
	return sub, present, nil
}

func (r *Reader) ReadOptionalString(h Head) (string, bool, error) {
	sub, present, err := r.readPresence(h)
	if err != nil || !present {
		return "", false, err
	}
	return string(sub.data[sub.off:]), true, nil
}

func (r *Reader) ReadOptionalBytes(h Head) ([]byte, error) {
	sub, present, err := r.readPresence(h)
	if err != nil || !present {
		return nil, err
	}
	return append([]byte{}, sub.data[sub.off:]...), nil
}

func (r *Reader) ReadOptionalBytesMap(h Head) (map[string][]byte, error) {
	sub, present, err := r.readPresence(h)
	if err != nil || !present {
		return nil, err
	}
	return sub.readMapBody()
}

// ReadOptionalObject decodes into u when the field is present and reports
// whether it was.
func (r *Reader) ReadOptionalObject(h Head, u Unmarshaler) (bool, error) {
	sub, present, err := r.readPresence(h)
	if err != nil || !present {
		return false, err
	}
	return true, u.DecodeTLV(sub)
}

// ReadLengthPrefixed reads a value written by WriteLengthPrefixed.
func (r *Reader) ReadLengthPrefixed() (string, error) {
	if r.Remaining() < 4 {
		return "", errors.NewMalformedInput(
			fmt.Sprintf("tlv: length prefix needs 4 bytes, %d remain at offset %d", r.Remaining(), r.off))
	}
	n := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return r.ReadString(Head{Length: n})
}
