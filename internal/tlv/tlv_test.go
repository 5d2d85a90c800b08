package tlv

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pasteboard/internal/errors"
)

const (
	tagName uint16 = iota + 1
	tagCount
	tagStamp
	tagFlag
	tagLabels
	tagExtras
	tagNote
	tagChild
)

// sample exercises every field kind the Writer supports.
type sample struct {
	Name    string
	Count   uint32
	Stamp   int64
	Flag    bool
	Labels  []string
	Extras  map[string][]byte
	Note    string
	HasNote bool
	Child   *sample
}

func (s *sample) EncodedSize() int {
	n := CountString(s.Name) + CountUint32() + CountInt64() + CountBool() +
		CountStrings(s.Labels) + CountBytesMap(s.Extras) + CountOptionalString(s.Note, s.HasNote)
	if s.Child != nil {
		n += CountOptionalObject(s.Child)
	} else {
		n += CountOptionalObject(nil)
	}
	return n
}

func (s *sample) EncodeTLV(w *Writer) error {
	if err := w.WriteString(tagName, s.Name); err != nil {
		return err
	}
	if err := w.WriteUint32(tagCount, s.Count); err != nil {
		return err
	}
	if err := w.WriteInt64(tagStamp, s.Stamp); err != nil {
		return err
	}
	if err := w.WriteBool(tagFlag, s.Flag); err != nil {
		return err
	}
	if err := w.WriteStrings(tagLabels, s.Labels); err != nil {
		return err
	}
	if err := w.WriteBytesMap(tagExtras, s.Extras); err != nil {
		return err
	}
	if err := w.WriteOptionalString(tagNote, s.Note, s.HasNote); err != nil {
		return err
	}
	if s.Child != nil {
		return w.WriteOptionalObject(tagChild, s.Child)
	}
	return w.WriteOptionalObject(tagChild, nil)
}

func (s *sample) DecodeTLV(r *Reader) error {
	for r.Remaining() > 0 {
		h, err := r.ReadHead()
		if err != nil {
			return err
		}
		switch h.Tag {
		case tagName:
			s.Name, err = r.ReadString(h)
		case tagCount:
			s.Count, err = r.ReadUint32(h)
		case tagStamp:
			s.Stamp, err = r.ReadInt64(h)
		case tagFlag:
			s.Flag, err = r.ReadBool(h)
		case tagLabels:
			s.Labels, err = r.ReadStrings(h)
		case tagExtras:
			s.Extras, err = r.ReadBytesMap(h)
		case tagNote:
			s.Note, s.HasNote, err = r.ReadOptionalString(h)
		case tagChild:
			child := &sample{}
			var present bool
			present, err = r.ReadOptionalObject(h, child)
			if present {
				s.Child = child
			}
		default:
			err = r.Skip(h)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func fullSample() *sample {
	return &sample{
		Name:    "clip",
		Count:   42,
		Stamp:   -1700000000000,
		Flag:    true,
		Labels:  []string{"text/html", "text/uri"},
		Extras:  map[string][]byte{"b": {1, 2}, "a": {}},
		Note:    "",
		HasNote: true,
		Child: &sample{
			Name:   "nested",
			Labels: []string{"x"},
			Extras: map[string][]byte{"k": []byte("v")},
		},
	}
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := fullSample()

	data, err := Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, original.EncodedSize(), len(data))
	assert.Equal(t, len(data), cap(data), "buffer should be allocated exactly once")

	decoded := &sample{}
	require.NoError(t, Unmarshal(data, decoded))
	assert.Equal(t, original, decoded)
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(fullSample())
	require.NoError(t, err)
	second, err := Marshal(fullSample())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "map keys must encode in sorted order")
}

func TestOptionalString_AbsentVersusEmpty(t *testing.T) {
	absent := &sample{Name: "a"}
	empty := &sample{Name: "a", HasNote: true}

	absentData, err := Marshal(absent)
	require.NoError(t, err)
	emptyData, err := Marshal(empty)
	require.NoError(t, err)
	assert.NotEqual(t, absentData, emptyData)

	decoded := &sample{}
	require.NoError(t, Unmarshal(absentData, decoded))
	assert.False(t, decoded.HasNote)

	decoded = &sample{}
	require.NoError(t, Unmarshal(emptyData, decoded))
	assert.True(t, decoded.HasNote)
	assert.Equal(t, "", decoded.Note)
}

func TestUnknownTagSkipped(t *testing.T) {
	original := &sample{Name: "keep", Count: 7, Extras: map[string][]byte{}}
	data, err := Marshal(original)
	require.NoError(t, err)

	// Insert an unknown field between the first two known fields.
	w := NewWriter(0)
	require.NoError(t, w.WriteString(0x7ABC, "from a newer writer"))
	first := CountString(original.Name)
	withUnknown := append(append(append([]byte{}, data[:first]...), w.Bytes()...), data[first:]...)

	decoded := &sample{}
	require.NoError(t, Unmarshal(withUnknown, decoded))
	assert.Equal(t, original, decoded)
}

func TestReadHead_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 0, 3})
	_, err := r.ReadHead()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))
}

func TestRead_LengthExceedsRemaining(t *testing.T) {
	w := NewWriter(0)
	require.NoError(t, w.WriteString(tagName, "truncated"))
	data := w.Bytes()[:len(w.Bytes())-3]

	r := NewReader(data)
	h, err := r.ReadHead()
	require.NoError(t, err)
	_, err = r.ReadString(h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))

	r = NewReader(data)
	h, err = r.ReadHead()
	require.NoError(t, err)
	assert.Error(t, r.Skip(h))
}

func TestRead_FixedWidthMismatch(t *testing.T) {
	w := NewWriter(0)
	require.NoError(t, w.WriteString(tagCount, "abc"))

	r := NewReader(w.Bytes())
	h, err := r.ReadHead()
	require.NoError(t, err)
	_, err = r.ReadUint32(h)
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))
}

func TestUnmarshal_TruncatedAbortsContainer(t *testing.T) {
	original := fullSample()
	data, err := Marshal(original)
	require.NoError(t, err)

	// Every cut inside the final field must fail rather than silently
	// dropping it.
	last := CountOptionalObject(original.Child)
	for cut := 1; cut < last; cut++ {
		decoded := &sample{}
		err := Unmarshal(data[:len(data)-cut], decoded)
		assert.Error(t, err, "cut %d", cut)
	}
}

// failing writes part of itself and then fails.
type failing struct{}

func (failing) EncodedSize() int { return CountString("partial") }
func (failing) EncodeTLV(w *Writer) error {
	if err := w.WriteString(tagName, "partial"); err != nil {
		return err
	}
	return fmt.Errorf("boom")
}

// miscounted reports a size that does not match what it writes.
type miscounted struct{}

func (miscounted) EncodedSize() int { return 1 }
func (miscounted) EncodeTLV(w *Writer) error {
	return w.WriteString(tagName, "longer than one byte")
}

func TestWriteObject_FailureLeavesBufferUntouched(t *testing.T) {
	tests := []struct {
		name string
		obj  Marshaler
	}{
		{"encode error", failing{}},
		{"size mismatch", miscounted{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(0)
			require.NoError(t, w.WriteBool(tagFlag, true))
			before := append([]byte{}, w.Bytes()...)

			assert.Error(t, w.WriteObject(tagChild, tt.obj))
			assert.Equal(t, before, w.Bytes())

			assert.Error(t, w.WriteOptionalObject(tagChild, tt.obj))
			assert.Equal(t, before, w.Bytes())
		})
	}
}

func TestMarshal_SizeMismatch(t *testing.T) {
	_, err := Marshal(miscounted{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestReadBytesMap_ValueWithoutKey(t *testing.T) {
	inner := NewWriter(0)
	require.NoError(t, inner.WriteBytes(TagMapValue, []byte("orphan")))
	w := NewWriter(0)
	require.NoError(t, w.WriteBytes(tagExtras, inner.Bytes()))

	r := NewReader(w.Bytes())
	h, err := r.ReadHead()
	require.NoError(t, err)
	_, err = r.ReadBytesMap(h)
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))
}

func TestReadOptional_AbsentWithValue(t *testing.T) {
	w := NewWriter(0)
	require.NoError(t, w.WriteBytes(tagNote, []byte{0, 'x'}))

	r := NewReader(w.Bytes())
	h, err := r.ReadHead()
	require.NoError(t, err)
	_, _, err = r.ReadOptionalString(h)
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))
}

func TestSections(t *testing.T) {
	w := NewWriter(0)
	require.NoError(t, w.WriteBool(3, true))
	require.NoError(t, w.WriteString(9, "hello"))

	sections, err := Sections(w.Bytes())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, Section{Head: Head{Tag: 3, Length: 1}, Offset: 0}, sections[0])
	assert.Equal(t, Section{Head: Head{Tag: 9, Length: 5}, Offset: CountBool()}, sections[1])

	_, err = Sections(w.Bytes()[:len(w.Bytes())-1])
	assert.Error(t, err)
}

func TestCountHelpers(t *testing.T) {
	w := NewWriter(0)
	m := map[string][]byte{"one": []byte("1"), "two": nil}

	require.NoError(t, w.WriteBytesMap(tagExtras, m))
	assert.Equal(t, CountBytesMap(m), w.Len())

	w = NewWriter(0)
	require.NoError(t, w.WriteOptionalBytesMap(tagExtras, m))
	assert.Equal(t, CountOptionalBytesMap(m), w.Len())

	w = NewWriter(0)
	require.NoError(t, w.WriteOptionalBytesMap(tagExtras, nil))
	assert.Equal(t, CountOptionalBytesMap(nil), w.Len())

	w = NewWriter(0)
	require.NoError(t, w.WriteOptionalBytes(tagNote, []byte{}))
	assert.Equal(t, CountOptionalBytes([]byte{}), w.Len())

	w = NewWriter(0)
	require.NoError(t, w.WriteInt32(tagCount, -5))
	assert.Equal(t, CountInt32(), w.Len())
}

func TestLengthPrefixed(t *testing.T) {
	w := NewWriter(0)
	require.NoError(t, w.WriteLengthPrefixed("text/html"))
	require.NoError(t, w.WriteBool(tagFlag, true))
	assert.Equal(t, CountLengthPrefixed("text/html")+CountBool(), w.Len())

	r := NewReader(w.Bytes())
	s, err := r.ReadLengthPrefixed()
	require.NoError(t, err)
	assert.Equal(t, "text/html", s)
	assert.Equal(t, CountBool(), r.Remaining())

	_, err = NewReader([]byte{9, 0}).ReadLengthPrefixed()
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))

	_, err = NewReader([]byte{9, 0, 0, 0, 'a'}).ReadLengthPrefixed()
	assert.True(t, errors.Is(err, errors.ErrMalformedInput))
}
