package htmlsplit

import (
	"log/slog"

	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// DefaultSplitTag marks a payload whose HTML has been split.
const DefaultSplitTag = "WebviewPasteDataTag"

// Option configures a Splitter or Merger.
type Option func(*options)

type options struct {
	scanner  Scanner
	tag      string
	resolver Resolver
	logger   *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		scanner: RegexScanner{},
		tag:     DefaultSplitTag,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithScanner replaces the default RegexScanner.
func WithScanner(s Scanner) Option {
	return func(o *options) {
		if s != nil {
			o.scanner = s
		}
	}
}

// WithSplitTag sets the payload tag that marks a split payload.
func WithSplitTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// WithResolver makes SplitPayload keep only satellites whose URI resolves
// to a regular file.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Splitter extracts local images referenced by HTML into satellite
// records.
type Splitter struct {
	opts options
}

func NewSplitter(opts ...Option) *Splitter {
	return &Splitter{opts: newOptions(opts)}
}

// Tag returns the sentinel a split payload is tagged with.
func (s *Splitter) Tag() string { return s.opts.tag }

// Split returns one satellite per distinct local image URI in html, in
// order of first appearance. Each carries the offsets of its URI and links
// to rootID. HTML without local images yields no satellites.
func (s *Splitter) Split(html string, rootID uint32) []*pasteboard.Record {
	var (
		order   []string
		offsets = make(map[string]OffsetList)
	)
	for _, src := range s.opts.scanner.ImageSources(html) {
		if !IsLocalURI(src.URI) {
			continue
		}
		if _, seen := offsets[src.URI]; !seen {
			order = append(order, src.URI)
		}
		offsets[src.URI] = append(offsets[src.URI], uint32(src.Offset))
	}

	satellites := make([]*pasteboard.Record, 0, len(order))
	for _, uri := range order {
		rec, err := pasteboard.NewRecordBuilder(pasteboard.MimeTypeURI).
			SetURI(uri).
			SetCustomData(map[string][]byte{uri: offsets[uri].Pack()}).
			Build()
		if err != nil {
			s.opts.logger.Warn("skipping image source", "uri_bytes", len(uri), "error", err)
			continue
		}
		rec.From = rootID
		satellites = append(satellites, rec)
	}
	return satellites
}

// SplitPayload splits the payload's primary HTML record. Satellites are
// appended after the existing records, the root is marked as a split root
// and the payload is tagged. It returns the number of satellites added; a
// payload with nothing to split is left unchanged.
func (s *Splitter) SplitPayload(p *pasteboard.Payload) (int, error) {
	if p.Tag() == s.opts.tag {
		return 0, nil
	}
	root, _, ok := p.PrimaryHTML()
	if !ok || root.From != 0 {
		return 0, nil
	}
	html, _ := root.Content.HTML()

	satellites := s.Split(html, root.ID)
	if s.opts.resolver != nil {
		satellites = s.resolvable(satellites)
	}
	if len(satellites) == 0 {
		return 0, nil
	}

	for _, sat := range satellites {
		if err := p.AppendRecord(sat); err != nil {
			return 0, err
		}
	}
	root.From = root.ID
	p.SetTag(s.opts.tag)
	s.opts.logger.Debug("split html", "root_id", root.ID, "satellites", len(satellites))
	return len(satellites), nil
}

func (s *Splitter) resolvable(satellites []*pasteboard.Record) []*pasteboard.Record {
	kept := satellites[:0]
	for _, sat := range satellites {
		uri, _ := sat.Content.URI()
		kind, err := s.opts.resolver.Resolve(uri)
		if err != nil || kind != FileRegular {
			s.opts.logger.Debug("dropping unresolved image", "uri", uri, "kind", kind, "error", err)
			continue
		}
		kept = append(kept, sat)
	}
	return kept
}
