package pasteboard

import (
	"fmt"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/tlv"
)

// DefaultMaxTextLength is the largest text, in bytes, a record may carry
// unless the builder is given another limit.
const DefaultMaxTextLength = 20 * 1024 * 1024

// Record is one typed content unit within a Payload.
type Record struct {
	// MimeType is never empty on a built or decoded record.
	MimeType string

	Content Content

	// ID identifies the record within its payload. It is assigned when the
	// record is added and is only meaningful for links inside one payload.
	ID uint32

	// From links split records: 0 means not split, ID means this record is
	// a split root, and any other value is the ID of the root this record
	// is a satellite of.
	From uint32

	// CustomData is a general extension channel keyed by string. Satellites
	// of a split use it to carry packed offsets keyed by their URI.
	CustomData map[string][]byte
}

// IsSplitRoot reports whether r is the HTML root of a split.
func (r *Record) IsSplitRoot() bool {
	return r.From != 0 && r.From == r.ID
}

// IsSatellite reports whether r was produced by splitting another record.
func (r *Record) IsSatellite() bool {
	return r.From != 0 && r.From != r.ID
}

// ConvertToText returns the record's text in precedence order: html, plain
// text, uri, then empty.
func (r *Record) ConvertToText() string {
	switch r.Content.Kind() {
	case KindHTML, KindPlainText, KindURI:
		return r.Content.text
	default:
		return ""
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.CustomData != nil {
		c.CustomData = make(map[string][]byte, len(r.CustomData))
		for k, v := range r.CustomData {
			c.CustomData[k] = append([]byte(nil), v...)
		}
	}
	if want, ok := r.Content.Want(); ok {
		c.Content.want = append([]byte{}, want...)
	}
	if pm, ok := r.Content.PixelMap(); ok {
		copied := *pm
		copied.Pixels = append([]byte(nil), pm.Pixels...)
		c.Content.pixels = &copied
	}
	return &c
}

// RecordBuilder assembles a Record from a MIME type and exactly one content
// setter. Errors are collected and reported by Build.
type RecordBuilder struct {
	mimeType   string
	content    Content
	setters    int
	customData map[string][]byte
	maxText    int
	err        error
}

// NewRecordBuilder starts a record of the given MIME type.
func NewRecordBuilder(mimeType string) *RecordBuilder {
	return &RecordBuilder{mimeType: mimeType, maxText: DefaultMaxTextLength}
}

// MaxTextLength overrides the text limit for this record. Zero or negative
// keeps the default.
func (b *RecordBuilder) MaxTextLength(n int) *RecordBuilder {
	if n > 0 {
		b.maxText = n
	}
	return b
}

func (b *RecordBuilder) set(c Content) *RecordBuilder {
	b.setters++
	b.content = c
	return b
}

func (b *RecordBuilder) SetHTML(html string) *RecordBuilder {
	return b.set(HTMLContent(html))
}

func (b *RecordBuilder) SetPlainText(text string) *RecordBuilder {
	return b.set(PlainTextContent(text))
}

func (b *RecordBuilder) SetURI(uri string) *RecordBuilder {
	return b.set(URIContent(uri))
}

func (b *RecordBuilder) SetURIWithFD(uri string, fd int) *RecordBuilder {
	if fd < 0 && b.err == nil {
		b.err = errors.NewConstructionInvalid(fmt.Sprintf("invalid file descriptor %d", fd))
	}
	return b.set(URIContentWithFD(uri, fd))
}

func (b *RecordBuilder) SetWant(want []byte) *RecordBuilder {
	if want == nil && b.err == nil {
		b.err = errors.NewConstructionInvalid("want must not be nil")
	}
	return b.set(WantContent(want))
}

func (b *RecordBuilder) SetPixelMap(pm *PixelMap) *RecordBuilder {
	if pm == nil && b.err == nil {
		b.err = errors.NewConstructionInvalid("pixel map must not be nil")
	}
	return b.set(PixelMapContent(pm))
}

// SetCustomData attaches extension data. It is not a content setter and
// may accompany any content, or stand alone for custom MIME types.
func (b *RecordBuilder) SetCustomData(data map[string][]byte) *RecordBuilder {
	if data == nil && b.err == nil {
		b.err = errors.NewConstructionInvalid("custom data must not be nil")
	}
	b.customData = data
	return b
}

// Build validates and returns the record.
func (b *RecordBuilder) Build() (*Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.mimeType == "" {
		return nil, errors.NewConstructionInvalid("mime type is required")
	}
	if b.setters > 1 {
		return nil, errors.NewConstructionInvalid(
			fmt.Sprintf("record takes exactly one content setter, got %d", b.setters))
	}
	if b.setters == 0 && b.customData == nil {
		return nil, errors.NewConstructionInvalid("record has no content")
	}
	if text := b.content.text; len(text) > b.maxText {
		err := errors.NewConstructionInvalid(
			fmt.Sprintf("text exceeds maximum length: %d bytes (max %d)", len(text), b.maxText))
		err.Details = map[string]any{"max_bytes": b.maxText, "actual_bytes": len(text)}
		return nil, err
	}
	return &Record{
		MimeType:   b.mimeType,
		Content:    b.content,
		CustomData: b.customData,
	}, nil
}

// NewHTMLRecord builds a text/html record.
func NewHTMLRecord(html string) (*Record, error) {
	return NewRecordBuilder(MimeTypeHTML).SetHTML(html).Build()
}

// NewPlainTextRecord builds a text/plain record.
func NewPlainTextRecord(text string) (*Record, error) {
	return NewRecordBuilder(MimeTypePlainText).SetPlainText(text).Build()
}

// NewURIRecord builds a text/uri record.
func NewURIRecord(uri string) (*Record, error) {
	return NewRecordBuilder(MimeTypeURI).SetURI(uri).Build()
}

// NewWantRecord builds a text/want record.
func NewWantRecord(want []byte) (*Record, error) {
	return NewRecordBuilder(MimeTypeWant).SetWant(want).Build()
}

// NewPixelMapRecord builds an image record.
func NewPixelMapRecord(pm *PixelMap) (*Record, error) {
	return NewRecordBuilder(MimeTypePixelMap).SetPixelMap(pm).Build()
}

// NewCustomRecord builds a record that carries only custom data.
func NewCustomRecord(mimeType string, data map[string][]byte) (*Record, error) {
	return NewRecordBuilder(mimeType).SetCustomData(data).Build()
}

// Record-level tags. The MIME type is the untagged leading field.
const (
	recordTagHTML uint16 = iota + 1
	recordTagWant
	recordTagPlainText
	recordTagURI
	recordTagPixelMap
	recordTagCustomData
	recordTagID
	recordTagFrom
)

func (r *Record) pixelMarshaler() tlv.Marshaler {
	if pm, ok := r.Content.PixelMap(); ok && pm != nil {
		return pm
	}
	return nil
}

func (r *Record) wantBytes() []byte {
	if want, ok := r.Content.Want(); ok {
		return want
	}
	return nil
}

func (r *Record) EncodedSize() int {
	html, hasHTML := r.Content.HTML()
	plain, hasPlain := r.Content.PlainText()
	uri, hasURI := r.Content.URI()
	return tlv.CountLengthPrefixed(r.MimeType) +
		tlv.CountOptionalString(html, hasHTML) +
		tlv.CountOptionalBytes(r.wantBytes()) +
		tlv.CountOptionalString(plain, hasPlain) +
		tlv.CountOptionalString(uri, hasURI) +
		tlv.CountOptionalObject(r.pixelMarshaler()) +
		tlv.CountOptionalBytesMap(r.CustomData) +
		tlv.CountUint32() + tlv.CountUint32()
}

func (r *Record) EncodeTLV(w *tlv.Writer) error {
	if r.MimeType == "" {
		return errors.NewConstructionInvalid("cannot encode record without mime type")
	}
	if err := w.WriteLengthPrefixed(r.MimeType); err != nil {
		return err
	}
	html, hasHTML := r.Content.HTML()
	if err := w.WriteOptionalString(recordTagHTML, html, hasHTML); err != nil {
		return err
	}
	if err := w.WriteOptionalBytes(recordTagWant, r.wantBytes()); err != nil {
		return err
	}
	plain, hasPlain := r.Content.PlainText()
	if err := w.WriteOptionalString(recordTagPlainText, plain, hasPlain); err != nil {
		return err
	}
	uri, hasURI := r.Content.URI()
	if err := w.WriteOptionalString(recordTagURI, uri, hasURI); err != nil {
		return err
	}
	if err := w.WriteOptionalObject(recordTagPixelMap, r.pixelMarshaler()); err != nil {
		return err
	}
	if err := w.WriteOptionalBytesMap(recordTagCustomData, r.CustomData); err != nil {
		return err
	}
	if err := w.WriteUint32(recordTagID, r.ID); err != nil {
		return err
	}
	return w.WriteUint32(recordTagFrom, r.From)
}

// DecodeTLV decodes a record. When the bytes carry several content fields
// the first present one in html, plain text, uri, want, pixel map order
// wins.
func (r *Record) DecodeTLV(rd *tlv.Reader) error {
	mimeType, err := rd.ReadLengthPrefixed()
	if err != nil {
		return err
	}
	if mimeType == "" {
		return errors.NewMalformedInput("record has empty mime type")
	}

	var (
		html, plain, uri          string
		hasHTML, hasPlain, hasURI bool
		want                      []byte
		pixels                    *PixelMap
		custom                    map[string][]byte
		id, from                  uint32
	)
	for rd.Remaining() > 0 {
		h, err := rd.ReadHead()
		if err != nil {
			return err
		}
		switch h.Tag {
		case recordTagHTML:
			html, hasHTML, err = rd.ReadOptionalString(h)
		case recordTagWant:
			want, err = rd.ReadOptionalBytes(h)
		case recordTagPlainText:
			plain, hasPlain, err = rd.ReadOptionalString(h)
		case recordTagURI:
			uri, hasURI, err = rd.ReadOptionalString(h)
		case recordTagPixelMap:
			pm := &PixelMap{}
			var present bool
			if present, err = rd.ReadOptionalObject(h, pm); present {
				pixels = pm
			}
		case recordTagCustomData:
			custom, err = rd.ReadOptionalBytesMap(h)
		case recordTagID:
			id, err = rd.ReadUint32(h)
		case recordTagFrom:
			from, err = rd.ReadUint32(h)
		default:
			err = rd.Skip(h)
		}
		if err != nil {
			return err
		}
	}

	var content Content
	switch {
	case hasHTML:
		content = HTMLContent(html)
	case hasPlain:
		content = PlainTextContent(plain)
	case hasURI:
		content = URIContent(uri)
	case want != nil:
		content = WantContent(want)
	case pixels != nil:
		content = PixelMapContent(pixels)
	}

	*r = Record{
		MimeType:   mimeType,
		Content:    content,
		ID:         id,
		From:       from,
		CustomData: custom,
	}
	return nil
}
