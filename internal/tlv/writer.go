package tlv

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// Writer appends tagged fields to a byte buffer.
//
// A failed write leaves the buffer exactly as it was before the call: nested
// writes reserve their head, and on failure the buffer is truncated back to
// the reservation point.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer whose buffer has the given capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) writeHead(tag uint16, length int) error {
	if length < 0 || uint64(length) > math.MaxUint32 {
		return errors.NewInternal(fmt.Errorf("tlv: length %d does not fit in a head", length))
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, tag)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(length))
	return nil
}

// begin reserves a head for a field whose length is not yet known.
func (w *Writer) begin(tag uint16) int {
	pos := len(w.buf)
	w.buf = binary.LittleEndian.AppendUint16(w.buf, tag)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return pos
}

// end backfills the length reserved by begin. On failure the field is
// removed.
func (w *Writer) end(pos int) error {
	length := len(w.buf) - pos - HeadSize
	if uint64(length) > math.MaxUint32 {
		w.buf = w.buf[:pos]
		return errors.NewInternal(fmt.Errorf("tlv: length %d does not fit in a head", length))
	}
	binary.LittleEndian.PutUint32(w.buf[pos+2:pos+HeadSize], uint32(length))
	return nil
}

func (w *Writer) WriteBool(tag uint16, v bool) error {
	if err := w.writeHead(tag, 1); err != nil {
		return err
	}
	w.buf = append(w.buf, boolByte(v))
	return nil
}

func (w *Writer) WriteUint32(tag uint16, v uint32) error {
	if err := w.writeHead(tag, 4); err != nil {
		return err
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return nil
}

func (w *Writer) WriteInt32(tag uint16, v int32) error {
	return w.WriteUint32(tag, uint32(v))
}

func (w *Writer) WriteInt64(tag uint16, v int64) error {
	if err := w.writeHead(tag, 8); err != nil {
		return err
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
	return nil
}

func (w *Writer) WriteString(tag uint16, s string) error {
	if err := w.writeHead(tag, len(s)); err != nil {
		return err
	}
	w.buf = append(w.buf, s...)
	return nil
}

func (w *Writer) WriteBytes(tag uint16, b []byte) error {
	if err := w.writeHead(tag, len(b)); err != nil {
		return err
	}
	w.buf = append(w.buf, b...)
	return nil
}

// WriteStrings writes a list of strings as a nested sequence of
// TagListItem fields.
func (w *Writer) WriteStrings(tag uint16, ss []string) error {
	pos := w.begin(tag)
	for _, s := range ss {
		if err := w.WriteString(TagListItem, s); err != nil {
			w.buf = w.buf[:pos]
			return err
		}
	}
	return w.end(pos)
}

// WriteBytesMap writes a map as alternating TagMapKey/TagMapValue fields,
// keys in sorted order so equal maps encode identically.
func (w *Writer) WriteBytesMap(tag uint16, m map[string][]byte) error {
	pos := w.begin(tag)
	if err := w.writeMapBody(m); err != nil {
		w.buf = w.buf[:pos]
		return err
	}
	return w.end(pos)
}

func (w *Writer) writeMapBody(m map[string][]byte) error {
	for _, k := range sortedKeys(m) {
		if err := w.WriteString(TagMapKey, k); err != nil {
			return err
		}
		if err := w.WriteBytes(TagMapValue, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// WriteObject writes m as a nested field. The object's reported size must
// match what it actually wrote; a mismatch is treated as a failed write.
func (w *Writer) WriteObject(tag uint16, m Marshaler) error {
	pos := w.begin(tag)
	if err := w.writeObjectBody(m); err != nil {
		w.buf = w.buf[:pos]
		return err
	}
	return w.end(pos)
}

func (w *Writer) writeObjectBody(m Marshaler) error {
	start := len(w.buf)
	if err := m.EncodeTLV(w); err != nil {
		return err
	}
	if written, want := len(w.buf)-start, m.EncodedSize(); written != want {
		return errors.NewInternal(fmt.Errorf("tlv: object %T wrote %d bytes, counted %d", m, written, want))
	}
	return nil
}

func (w *Writer) WriteOptionalString(tag uint16, s string, present bool) error {
	if !present {
		return w.WriteBool(tag, false)
	}
	if err := w.writeHead(tag, 1+len(s)); err != nil {
		return err
	}
	w.buf = append(w.buf, 1)
	w.buf = append(w.buf, s...)
	return nil
}

// WriteOptionalBytes treats a nil slice as absent.
func (w *Writer) WriteOptionalBytes(tag uint16, b []byte) error {
	if b == nil {
		return w.WriteBool(tag, false)
	}
	if err := w.writeHead(tag, 1+len(b)); err != nil {
		return err
	}
	w.buf = append(w.buf, 1)
	w.buf = append(w.buf, b...)
	return nil
}

// WriteOptionalBytesMap treats a nil map as absent.
func (w *Writer) WriteOptionalBytesMap(tag uint16, m map[string][]byte) error {
	if m == nil {
		return w.WriteBool(tag, false)
	}
	pos := w.begin(tag)
	w.buf = append(w.buf, 1)
	if err := w.writeMapBody(m); err != nil {
		w.buf = w.buf[:pos]
		return err
	}
	return w.end(pos)
}

// WriteOptionalObject treats a nil Marshaler as absent.
func (w *Writer) WriteOptionalObject(tag uint16, m Marshaler) error {
	if m == nil {
		return w.WriteBool(tag, false)
	}
	pos := w.begin(tag)
	w.buf = append(w.buf, 1)
	if err := w.writeObjectBody(m); err != nil {
		w.buf = w.buf[:pos]
		return err
	}
	return w.end(pos)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// WriteLengthPrefixed writes s as a bare uint32 length and bytes, with no
// tag. It is used for a container's fixed leading field.
func (w *Writer) WriteLengthPrefixed(s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return errors.NewInternal(fmt.Errorf("tlv: length %d does not fit in a prefix", len(s)))
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}
