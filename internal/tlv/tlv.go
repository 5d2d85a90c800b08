package tlv

import (
	"fmt"
	"sort"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// HeadSize is the encoded size of a Head: uint16 tag + uint32 length.
const HeadSize = 6

// Tags used inside the generic list and map encodings. They live in the
// namespace of the list or map value itself, not of the enclosing object.
const (
	TagListItem uint16 = 1
	TagMapKey   uint16 = 1
	TagMapValue uint16 = 2
)

// Head precedes every encoded field.
type Head struct {
	Tag    uint16
	Length uint32
}

func (h Head) String() string {
	return fmt.Sprintf("tag=%d len=%d", h.Tag, h.Length)
}

// Marshaler is implemented by objects that encode themselves as a sequence
// of tagged fields.
type Marshaler interface {
	// EncodedSize returns the exact number of bytes EncodeTLV will write,
	// excluding the head of the field that wraps the object.
	EncodedSize() int

	EncodeTLV(w *Writer) error
}

// Unmarshaler is implemented by objects that decode themselves from a
// sequence of tagged fields. DecodeTLV must skip tags it does not know.
type Unmarshaler interface {
	DecodeTLV(r *Reader) error
}

// Marshal encodes m into a buffer allocated once at its exact size.
func Marshal(m Marshaler) ([]byte, error) {
	size := m.EncodedSize()
	w := NewWriter(size)
	if err := m.EncodeTLV(w); err != nil {
		return nil, err
	}
	if w.Len() != size {
		return nil, errors.NewInternal(fmt.Errorf("tlv: encoded %d bytes, counted %d", w.Len(), size))
	}
	return w.Bytes(), nil
}

// Unmarshal decodes data into u.
func Unmarshal(data []byte, u Unmarshaler) error {
	return u.DecodeTLV(NewReader(data))
}

// Section describes one top-level field of an encoded buffer.
type Section struct {
	Head   Head
	Offset int // offset of the head within the buffer
}

// Sections lists the top-level fields of data without interpreting them.
func Sections(data []byte) ([]Section, error) {
	r := NewReader(data)
	var sections []Section
	for r.Remaining() > 0 {
		offset := r.Offset()
		h, err := r.ReadHead()
		if err != nil {
			return nil, err
		}
		if err := r.Skip(h); err != nil {
			return nil, err
		}
		sections = append(sections, Section{Head: h, Offset: offset})
	}
	return sections, nil
}

// Size helpers. Each returns the full encoded size including the head.

func CountBool() int   { return HeadSize + 1 }
func CountUint32() int { return HeadSize + 4 }
func CountInt32() int  { return HeadSize + 4 }
func CountInt64() int  { return HeadSize + 8 }

func CountString(s string) int { return HeadSize + len(s) }
func CountBytes(b []byte) int  { return HeadSize + len(b) }

func CountStrings(ss []string) int {
	n := HeadSize
	for _, s := range ss {
		n += CountString(s)
	}
	return n
}

func CountBytesMap(m map[string][]byte) int {
	n := HeadSize
	for k, v := range m {
		n += CountString(k) + CountBytes(v)
	}
	return n
}

func CountObject(m Marshaler) int { return HeadSize + m.EncodedSize() }

// CountLengthPrefixed sizes a value written by Writer.WriteLengthPrefixed.
func CountLengthPrefixed(s string) int { return 4 + len(s) }

// Optional fields carry a one-byte presence flag before the value, so an
// absent field and a present-but-empty one encode differently.

func CountOptionalString(s string, present bool) int {
	if !present {
		return HeadSize + 1
	}
	return HeadSize + 1 + len(s)
}

func CountOptionalBytes(b []byte) int {
	if b == nil {
		return HeadSize + 1
	}
	return HeadSize + 1 + len(b)
}

func CountOptionalBytesMap(m map[string][]byte) int {
	if m == nil {
		return HeadSize + 1
	}
	return 1 + CountBytesMap(m)
}

func CountOptionalObject(m Marshaler) int {
	if m == nil {
		return HeadSize + 1
	}
	return 1 + CountObject(m)
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
