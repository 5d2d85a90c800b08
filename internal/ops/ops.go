package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/history"
	"github.com/hpungsan/pasteboard/internal/htmlsplit"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

type loggerKey struct{}

// WithLogger returns a context whose operations log to l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// RecordView is a JSON-friendly rendering of one record.
type RecordView struct {
	Index      int      `json:"index"`
	ID         uint32   `json:"id"`
	From       uint32   `json:"from,omitempty"`
	MimeType   string   `json:"mime_type"`
	Kind       string   `json:"kind"`
	Text       string   `json:"text,omitempty"`
	HasFD      bool     `json:"has_fd,omitempty"`
	CustomKeys []string `json:"custom_keys,omitempty"`
}

func viewRecords(p *pasteboard.Payload) []RecordView {
	records := p.Records()
	views := make([]RecordView, len(records))
	for i, rec := range records {
		v := RecordView{
			Index:    i,
			ID:       rec.ID,
			From:     rec.From,
			MimeType: rec.MimeType,
			Kind:     rec.Content.Kind().String(),
			Text:     rec.ConvertToText(),
		}
		_, v.HasFD = rec.Content.FD()
		for key := range rec.CustomData {
			v.CustomKeys = append(v.CustomKeys, key)
		}
		sort.Strings(v.CustomKeys)
		views[i] = v
	}
	return views
}

// loadEntry fetches an entry by id, or the newest entry when id is empty.
func loadEntry(ctx context.Context, database *sql.DB, id string, includeDeleted bool) (*history.Entry, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		return db.GetByID(ctx, database, id, includeDeleted)
	}
	e, err := db.GetLatest(ctx, database, includeDeleted)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.NewNotFound("latest")
	}
	return e, nil
}

// store inserts p as a new history entry and trims the history. Descriptors
// do not outlive the process that received them, so they are dropped.
func store(ctx context.Context, database *sql.DB, cfg *config.Config, p *pasteboard.Payload) (*history.Entry, int, error) {
	pasteboard.StripDescriptors(p)
	raw, err := p.MarshalBinary()
	if err != nil {
		return nil, 0, err
	}
	id, err := generateULID()
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	e, err := history.NewEntry(id, p, raw, cfg.CompressMinBytes, time.Now().Unix())
	if err != nil {
		return nil, 0, err
	}
	if err := db.Insert(ctx, database, e); err != nil {
		return nil, 0, err
	}
	trimmed, err := db.TrimHistory(ctx, database, cfg.HistoryLimit)
	if err != nil {
		return nil, 0, err
	}
	return e, trimmed, nil
}

func splitter(ctx context.Context, cfg *config.Config, opts ...htmlsplit.Option) *htmlsplit.Splitter {
	base := []htmlsplit.Option{
		htmlsplit.WithSplitTag(cfg.SplitTag),
		htmlsplit.WithLogger(loggerFrom(ctx)),
	}
	return htmlsplit.NewSplitter(append(base, opts...)...)
}

func merger(ctx context.Context, cfg *config.Config) *htmlsplit.Merger {
	return htmlsplit.NewMerger(
		htmlsplit.WithSplitTag(cfg.SplitTag),
		htmlsplit.WithLogger(loggerFrom(ctx)),
	)
}

// scannerFor maps a scanner name onto an htmlsplit.Scanner.
func scannerFor(name string) (htmlsplit.Scanner, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "regex":
		return htmlsplit.RegexScanner{}, nil
	case "tokenizer":
		return htmlsplit.TokenizerScanner{}, nil
	default:
		return nil, errors.NewInvalidRequest("scanner must be one of: regex, tokenizer")
	}
}

// entropy is shared so ids generated within one millisecond still sort in
// creation order.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
