package pasteboard

import (
	"github.com/hpungsan/pasteboard/internal/tlv"
)

// MIME types of the built-in content kinds.
const (
	MimeTypeHTML      = "text/html"
	MimeTypePlainText = "text/plain"
	MimeTypeURI       = "text/uri"
	MimeTypeWant      = "text/want"
	MimeTypePixelMap  = "pixelMap"
)

// ContentKind identifies which variant a Content holds.
type ContentKind uint8

const (
	KindNone ContentKind = iota
	KindHTML
	KindPlainText
	KindURI
	KindWant
	KindPixelMap
)

func (k ContentKind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindPlainText:
		return "plain_text"
	case KindURI:
		return "uri"
	case KindWant:
		return "want"
	case KindPixelMap:
		return "pixel_map"
	default:
		return "none"
	}
}

// Content is the payload of a Record. Exactly one variant is held; the zero
// value holds none.
type Content struct {
	kind   ContentKind
	text   string // html, plain text, or uri
	want   []byte
	pixels *PixelMap
	fd     int
	hasFD  bool
}

func HTMLContent(html string) Content { return Content{kind: KindHTML, text: html} }

func PlainTextContent(text string) Content { return Content{kind: KindPlainText, text: text} }

func URIContent(uri string) Content { return Content{kind: KindURI, text: uri} }

// URIContentWithFD is a URI backed by an open file descriptor. The
// descriptor travels on a separate channel from the encoded bytes.
func URIContentWithFD(uri string, fd int) Content {
	return Content{kind: KindURI, text: uri, fd: fd, hasFD: true}
}

// WantContent wraps a structured intent serialized by the host.
func WantContent(want []byte) Content {
	if want == nil {
		want = []byte{}
	}
	return Content{kind: KindWant, want: want}
}

func PixelMapContent(pm *PixelMap) Content {
	if pm == nil {
		pm = &PixelMap{}
	}
	return Content{kind: KindPixelMap, pixels: pm}
}

func (c Content) Kind() ContentKind { return c.kind }

func (c Content) HTML() (string, bool) { return c.text, c.kind == KindHTML }

func (c Content) PlainText() (string, bool) { return c.text, c.kind == KindPlainText }

func (c Content) URI() (string, bool) { return c.text, c.kind == KindURI }

func (c Content) Want() ([]byte, bool) { return c.want, c.kind == KindWant }

func (c Content) PixelMap() (*PixelMap, bool) { return c.pixels, c.kind == KindPixelMap }

// FD returns the descriptor backing a URI, if any.
func (c Content) FD() (int, bool) { return c.fd, c.kind == KindURI && c.hasFD }

// withoutFD drops the descriptor, keeping the URI.
func (c Content) withoutFD() Content {
	c.fd, c.hasFD = 0, false
	return c
}

// PixelMap is an opaque image: raw pixel bytes plus the geometry needed to
// interpret them.
type PixelMap struct {
	Width       int32
	Height      int32
	PixelFormat string
	Pixels      []byte
}

const (
	pixelTagWidth uint16 = iota + 1
	pixelTagHeight
	pixelTagFormat
	pixelTagPixels
)

func (p *PixelMap) EncodedSize() int {
	return tlv.CountInt32() + tlv.CountInt32() + tlv.CountString(p.PixelFormat) + tlv.CountBytes(p.Pixels)
}

func (p *PixelMap) EncodeTLV(w *tlv.Writer) error {
	if err := w.WriteInt32(pixelTagWidth, p.Width); err != nil {
		return err
	}
	if err := w.WriteInt32(pixelTagHeight, p.Height); err != nil {
		return err
	}
	if err := w.WriteString(pixelTagFormat, p.PixelFormat); err != nil {
		return err
	}
	return w.WriteBytes(pixelTagPixels, p.Pixels)
}

func (p *PixelMap) DecodeTLV(r *tlv.Reader) error {
	for r.Remaining() > 0 {
		h, err := r.ReadHead()
		if err != nil {
			return err
		}
		switch h.Tag {
		case pixelTagWidth:
			p.Width, err = r.ReadInt32(h)
		case pixelTagHeight:
			p.Height, err = r.ReadInt32(h)
		case pixelTagFormat:
			p.PixelFormat, err = r.ReadString(h)
		case pixelTagPixels:
			p.Pixels, err = r.ReadBytes(h)
		default:
			err = r.Skip(h)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
