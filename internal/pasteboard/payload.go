package pasteboard

import (
	"bytes"
	"fmt"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/tlv"
)

// Payload is a full clipboard snapshot: records, most recent first, plus
// shared properties.
//
// A Payload is not safe for concurrent mutation.
type Payload struct {
	props        Properties
	records      []*Record
	isDrag       bool
	isLocalPaste bool
	nextID       uint32
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{nextID: 1}
}

// NewPayloadWithRecord returns a payload seeded with r.
func NewPayloadWithRecord(r *Record) (*Payload, error) {
	p := NewPayload()
	if err := p.AddRecord(r); err != nil {
		return nil, err
	}
	return p, nil
}

// AddRecord assigns r a fresh id and prepends it.
func (p *Payload) AddRecord(r *Record) error {
	if r == nil {
		return errors.NewConstructionInvalid("record must not be nil")
	}
	if r.MimeType == "" {
		return errors.NewConstructionInvalid("record has no mime type")
	}
	r.ID = p.allocID()
	p.records = append([]*Record{r}, p.records...)
	p.refresh()
	return nil
}

// AppendRecord assigns r a fresh id and adds it after all existing records.
// Split satellites are appended so the root stays first.
func (p *Payload) AppendRecord(r *Record) error {
	if r == nil {
		return errors.NewConstructionInvalid("record must not be nil")
	}
	if r.MimeType == "" {
		return errors.NewConstructionInvalid("record has no mime type")
	}
	r.ID = p.allocID()
	p.records = append(p.records, r)
	p.refresh()
	return nil
}

func (p *Payload) allocID() uint32 {
	if p.nextID == 0 {
		p.nextID = 1
	}
	id := p.nextID
	p.nextID++
	return id
}

// NextRecordID is the id the next added record will receive.
func (p *Payload) NextRecordID() uint32 {
	if p.nextID == 0 {
		return 1
	}
	return p.nextID
}

func (p *Payload) checkIndex(i int) error {
	if i < 0 || i >= len(p.records) {
		return errors.NewOutOfRange(i, len(p.records))
	}
	return nil
}

// RecordAt returns the record at index i. The record is shared with the
// payload; replace it rather than changing its MimeType in place.
func (p *Payload) RecordAt(i int) (*Record, error) {
	if err := p.checkIndex(i); err != nil {
		return nil, err
	}
	return p.records[i], nil
}

// RemoveRecordAt removes and returns the record at index i.
func (p *Payload) RemoveRecordAt(i int) (*Record, error) {
	if err := p.checkIndex(i); err != nil {
		return nil, err
	}
	r := p.records[i]
	p.records = append(p.records[:i:i], p.records[i+1:]...)
	p.refresh()
	return r, nil
}

// ReplaceRecordAt puts r at index i under a fresh id.
func (p *Payload) ReplaceRecordAt(i int, r *Record) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	if r == nil {
		return errors.NewConstructionInvalid("record must not be nil")
	}
	if r.MimeType == "" {
		return errors.NewConstructionInvalid("record has no mime type")
	}
	r.ID = p.allocID()
	p.records[i] = r
	p.refresh()
	return nil
}

// RemoveRecords removes every record for which drop returns true and
// reports how many were removed.
func (p *Payload) RemoveRecords(drop func(*Record) bool) int {
	kept := p.records[:0:0]
	for _, r := range p.records {
		if !drop(r) {
			kept = append(kept, r)
		}
	}
	removed := len(p.records) - len(kept)
	if removed > 0 {
		p.records = kept
		p.refresh()
	}
	return removed
}

// RecordByID finds the record with the given id.
func (p *Payload) RecordByID(id uint32) (*Record, int, bool) {
	for i, r := range p.records {
		if r.ID == id {
			return r, i, true
		}
	}
	return nil, -1, false
}

func (p *Payload) RecordCount() int { return len(p.records) }

// Records returns the record list. The slice is a copy; the records are not.
func (p *Payload) Records() []*Record {
	return append([]*Record(nil), p.records...)
}

// ContentTypes returns each record's MIME type in record order.
func (p *Payload) ContentTypes() []string {
	return p.props.ContentTypes()
}

func (p *Payload) refresh() {
	if len(p.records) == 0 {
		p.props.contentTypes = nil
		return
	}
	types := make([]string, len(p.records))
	for i, r := range p.records {
		types[i] = r.MimeType
	}
	p.props.contentTypes = types
}

// Properties returns the payload's properties for reading or editing.
func (p *Payload) Properties() *Properties { return &p.props }

// SetProperties replaces the properties. The content type list stays
// derived from the records.
func (p *Payload) SetProperties(props Properties) {
	p.props = props
	p.refresh()
}

func (p *Payload) Tag() string { return p.props.Tag }
func (p *Payload) SetTag(tag string) { p.props.Tag = tag }

func (p *Payload) IsDragPayload() bool { return p.isDrag }
func (p *Payload) SetDragPayload(v bool) { p.isDrag = v }
func (p *Payload) IsLocalPaste() bool { return p.isLocalPaste }
func (p *Payload) SetLocalPaste(v bool) { p.isLocalPaste = v }
func (p *Payload) ShareScope() ShareScope { return p.props.ShareScope }
func (p *Payload) SetShareScope(s ShareScope) { p.props.ShareScope = s }

// PrimaryHTML returns the first record that carries HTML.
func (p *Payload) PrimaryHTML() (*Record, int, bool) {
	for i, r := range p.records {
		if r.Content.Kind() == KindHTML {
			return r, i, true
		}
	}
	return nil, -1, false
}

// ConvertToText returns the text of the most recent record, or "" for an
// empty payload.
func (p *Payload) ConvertToText() string {
	if len(p.records) == 0 {
		return ""
	}
	return p.records[0].ConvertToText()
}

// Clone returns a deep copy of p, ids included.
func (p *Payload) Clone() *Payload {
	c := &Payload{
		props:        p.props.clone(),
		isDrag:       p.isDrag,
		isLocalPaste: p.isLocalPaste,
		nextID:       p.nextID,
	}
	if len(p.records) > 0 {
		c.records = make([]*Record, len(p.records))
		for i, r := range p.records {
			c.records[i] = r.Clone()
		}
	}
	return c
}

// Equal reports whether p and o hold the same records, properties and
// flags. The id allocator is not compared.
func (p *Payload) Equal(o *Payload) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.isDrag != o.isDrag || p.isLocalPaste != o.isLocalPaste {
		return false
	}
	if !propertiesEqual(&p.props, &o.props) {
		return false
	}
	if len(p.records) != len(o.records) {
		return false
	}
	for i := range p.records {
		if !RecordsEqual(p.records[i], o.records[i]) {
			return false
		}
	}
	return true
}

// RecordsEqual compares two records field by field.
func RecordsEqual(a, b *Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.MimeType == b.MimeType &&
		a.ID == b.ID &&
		a.From == b.From &&
		contentEqual(a.Content, b.Content) &&
		bytesMapEqual(a.CustomData, b.CustomData)
}

func contentEqual(a, b Content) bool {
	if a.kind != b.kind || a.text != b.text || a.hasFD != b.hasFD || a.fd != b.fd {
		return false
	}
	if !bytes.Equal(a.want, b.want) {
		return false
	}
	if (a.pixels == nil) != (b.pixels == nil) {
		return false
	}
	if a.pixels != nil {
		pa, pb := a.pixels, b.pixels
		if pa.Width != pb.Width || pa.Height != pb.Height || pa.PixelFormat != pb.PixelFormat ||
			!bytes.Equal(pa.Pixels, pb.Pixels) {
			return false
		}
	}
	return true
}

func propertiesEqual(a, b *Properties) bool {
	if a.Tag != b.Tag || a.LocalOnly != b.LocalOnly || a.Timestamp != b.Timestamp ||
		a.ShareScope != b.ShareScope || a.OwnerToken != b.OwnerToken || a.IsRemote != b.IsRemote ||
		a.OriginBundle != b.OriginBundle || a.SetTime != b.SetTime {
		return false
	}
	if len(a.contentTypes) != len(b.contentTypes) {
		return false
	}
	for i := range a.contentTypes {
		if a.contentTypes[i] != b.contentTypes[i] {
			return false
		}
	}
	return bytesMapEqual(a.Additions, b.Additions)
}

func bytesMapEqual(a, b map[string][]byte) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !bytes.Equal(va, vb) {
			return false
		}
	}
	return true
}

const (
	payloadTagProperties uint16 = iota + 1
	payloadTagRecords
	payloadTagDrag
	payloadTagLocalPaste
)

// SectionName names a top-level payload field by its tag.
func SectionName(tag uint16) string {
	switch tag {
	case payloadTagProperties:
		return "properties"
	case payloadTagRecords:
		return "records"
	case payloadTagDrag:
		return "drag"
	case payloadTagLocalPaste:
		return "local_paste"
	default:
		return "unknown"
	}
}

// recordList encodes records as nested list items.
type recordList []*Record

func (l recordList) EncodedSize() int {
	n := 0
	for _, r := range l {
		n += tlv.CountObject(r)
	}
	return n
}

func (l recordList) EncodeTLV(w *tlv.Writer) error {
	for i, r := range l {
		if err := w.WriteObject(tlv.TagListItem, r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func (l *recordList) DecodeTLV(r *tlv.Reader) error {
	for r.Remaining() > 0 {
		h, err := r.ReadHead()
		if err != nil {
			return err
		}
		if h.Tag != tlv.TagListItem {
			if err := r.Skip(h); err != nil {
				return err
			}
			continue
		}
		rec := &Record{}
		if err := r.ReadObject(h, rec); err != nil {
			return fmt.Errorf("record %d: %w", len(*l), err)
		}
		*l = append(*l, rec)
	}
	return nil
}

func (p *Payload) EncodedSize() int {
	return tlv.CountObject(&p.props) +
		tlv.CountObject(recordList(p.records)) +
		tlv.CountBool() +
		tlv.CountBool()
}

func (p *Payload) EncodeTLV(w *tlv.Writer) error {
	if err := w.WriteObject(payloadTagProperties, &p.props); err != nil {
		return err
	}
	if err := w.WriteObject(payloadTagRecords, recordList(p.records)); err != nil {
		return err
	}
	if err := w.WriteBool(payloadTagDrag, p.isDrag); err != nil {
		return err
	}
	return w.WriteBool(payloadTagLocalPaste, p.isLocalPaste)
}

// DecodeTLV replaces p with the decoded payload. Sections may come in any
// order and unknown sections are skipped. Two records carrying the same
// nonzero record_id make the payload malformed; records with id 0 get fresh
// ids. On failure p is left unchanged.
func (p *Payload) DecodeTLV(r *tlv.Reader) error {
	var (
		props   Properties
		records recordList
		decoded Payload
	)
	for r.Remaining() > 0 {
		h, err := r.ReadHead()
		if err != nil {
			return err
		}
		switch h.Tag {
		case payloadTagProperties:
			props = Properties{}
			err = r.ReadObject(h, &props)
		case payloadTagRecords:
			records = nil
			err = r.ReadObject(h, &records)
		case payloadTagDrag:
			decoded.isDrag, err = r.ReadBool(h)
		case payloadTagLocalPaste:
			decoded.isLocalPaste, err = r.ReadBool(h)
		default:
			err = r.Skip(h)
		}
		if err != nil {
			return err
		}
	}

	decoded.props = props
	decoded.records = records
	decoded.nextID = 1
	ids := make(map[uint32]int, len(records))
	for i, rec := range records {
		if rec.ID == 0 {
			continue
		}
		if first, dup := ids[rec.ID]; dup {
			return errors.NewMalformedInput(
				fmt.Sprintf("records %d and %d share record_id %d", first, i, rec.ID))
		}
		ids[rec.ID] = i
		if rec.ID >= decoded.nextID {
			decoded.nextID = rec.ID + 1
		}
	}
	for _, rec := range records {
		if rec.ID == 0 {
			rec.ID = decoded.allocID()
		}
	}
	decoded.refresh()
	*p = decoded
	return nil
}

// MarshalBinary encodes p into a buffer allocated once at its exact size.
func (p *Payload) MarshalBinary() ([]byte, error) {
	p.refresh()
	return tlv.Marshal(p)
}

func (p *Payload) UnmarshalBinary(data []byte) error {
	return tlv.Unmarshal(data, p)
}

// Unmarshal decodes a payload. Either the whole payload decodes or an error
// is returned.
func Unmarshal(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}
