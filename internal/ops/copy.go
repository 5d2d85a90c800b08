package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/history"
	"github.com/hpungsan/pasteboard/internal/htmlsplit"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// Record kinds accepted by Copy.
const (
	KindHTML      = "html"
	KindPlainText = "plain_text"
	KindURI       = "uri"
	KindWant      = "want"
	KindCustom    = "custom"
)

// RecordInput describes one record to copy.
type RecordInput struct {
	Kind       string            `json:"kind"`                // required
	MimeType   string            `json:"mime_type,omitempty"` // default: derived from kind; required for custom
	Text       string            `json:"text,omitempty"`
	CustomData map[string]string `json:"custom_data,omitempty"` // values stored as UTF-8 bytes
}

// CopyInput contains parameters for the Copy operation.
type CopyInput struct {
	Records []RecordInput // first record is the primary one
	Raw     []byte        // an encoded payload; exclusive with Records

	Tag          string
	OriginBundle string
	ShareScope   string // in_app, local_device (default), cross_device
	LocalOnly    bool

	Split        *bool  // default: cfg.SplitOnCopy
	Scanner      string // regex (default) or tokenizer
	ResolveFiles bool   // keep only satellites naming existing regular files
}

// CopyOutput contains the result of the Copy operation.
type CopyOutput struct {
	ID           string   `json:"id"`
	Deduplicated bool     `json:"deduplicated"`
	Records      int      `json:"records"`
	Satellites   int      `json:"satellites"`
	ContentTypes []string `json:"content_types"`
	Trimmed      int      `json:"trimmed"`
}

// Copy builds a payload, splits its HTML when enabled, and stores it as the
// newest history entry. A copy identical in content to the newest entry is
// not stored again.
func Copy(ctx context.Context, database *sql.DB, cfg *config.Config, input CopyInput) (*CopyOutput, error) {
	log := loggerFrom(ctx)

	p, err := buildPayload(cfg, input)
	if err != nil {
		return nil, err
	}

	split := cfg.SplitEnabled()
	if input.Split != nil {
		split = *input.Split
	}
	satellites := 0
	if split {
		scanner, err := scannerFor(input.Scanner)
		if err != nil {
			return nil, err
		}
		opts := []htmlsplit.Option{htmlsplit.WithScanner(scanner)}
		if input.ResolveFiles {
			opts = append(opts, htmlsplit.WithResolver(htmlsplit.FSResolver{}))
		}
		satellites, err = splitter(ctx, cfg, opts...).SplitPayload(p)
		if err != nil {
			return nil, err
		}
	}

	key, err := history.ContentKey(p)
	if err != nil {
		return nil, err
	}
	latestID, latestKey, err := db.LatestContentKey(ctx, database)
	if err != nil {
		return nil, err
	}
	if latestID != "" && latestKey == key {
		log.Debug("copy matches newest entry", "id", latestID)
		return &CopyOutput{
			ID:           latestID,
			Deduplicated: true,
			Records:      p.RecordCount(),
			Satellites:   satellites,
			ContentTypes: p.ContentTypes(),
		}, nil
	}

	e, trimmed, err := store(ctx, database, cfg, p)
	if err != nil {
		return nil, err
	}
	log.Info("payload copied", "id", e.ID, "records", e.RecordCount, "satellites", e.Satellites,
		"raw_size", e.RawSize, "stored_size", e.StoredSize)

	return &CopyOutput{
		ID:           e.ID,
		Records:      e.RecordCount,
		Satellites:   e.Satellites,
		ContentTypes: e.ContentTypes,
		Trimmed:      trimmed,
	}, nil
}

// buildPayload turns a CopyInput into a payload stamped with the current
// time.
func buildPayload(cfg *config.Config, input CopyInput) (*pasteboard.Payload, error) {
	hasRecords := len(input.Records) > 0
	hasRaw := len(input.Raw) > 0
	if hasRecords == hasRaw {
		return nil, errors.NewInvalidRequest("exactly one of records or raw is required")
	}

	var p *pasteboard.Payload
	if hasRaw {
		decoded, err := pasteboard.Unmarshal(input.Raw)
		if err != nil {
			return nil, err
		}
		p = decoded
	} else {
		p = pasteboard.NewPayload()
		for i, ri := range input.Records {
			rec, err := buildRecord(cfg, ri)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			if err := p.AppendRecord(rec); err != nil {
				return nil, err
			}
		}
	}

	props := p.Properties()
	if input.ShareScope != "" || !hasRaw {
		scope, err := pasteboard.ParseShareScope(input.ShareScope)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		props.ShareScope = scope
	}
	if input.Tag != "" {
		props.Tag = input.Tag
	}
	if input.OriginBundle != "" {
		props.OriginBundle = input.OriginBundle
	}
	if input.LocalOnly {
		props.LocalOnly = true
	}
	now := time.Now()
	props.Timestamp = now.UnixMilli()
	props.SetTime = now.UTC().Format(time.RFC3339)
	return p, nil
}

func buildRecord(cfg *config.Config, ri RecordInput) (*pasteboard.Record, error) {
	kind := strings.ToLower(strings.TrimSpace(ri.Kind))
	mime := strings.TrimSpace(ri.MimeType)

	var b *pasteboard.RecordBuilder
	newBuilder := func(defaultMime string) *pasteboard.RecordBuilder {
		if mime == "" {
			mime = defaultMime
		}
		return pasteboard.NewRecordBuilder(mime).MaxTextLength(cfg.MaxTextBytes)
	}
	switch kind {
	case KindHTML:
		b = newBuilder(pasteboard.MimeTypeHTML).SetHTML(ri.Text)
	case KindPlainText, "text":
		b = newBuilder(pasteboard.MimeTypePlainText).SetPlainText(ri.Text)
	case KindURI:
		if strings.TrimSpace(ri.Text) == "" {
			return nil, errors.NewInvalidRequest("uri record needs text")
		}
		b = newBuilder(pasteboard.MimeTypeURI).SetURI(ri.Text)
	case KindWant:
		b = newBuilder(pasteboard.MimeTypeWant).SetWant([]byte(ri.Text))
	case KindCustom:
		if mime == "" {
			return nil, errors.NewInvalidRequest("custom record needs mime_type")
		}
		b = newBuilder("")
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown record kind %q", ri.Kind))
	}

	if len(ri.CustomData) > 0 {
		data := make(map[string][]byte, len(ri.CustomData))
		for k, v := range ri.CustomData {
			data[k] = []byte(v)
		}
		b = b.SetCustomData(data)
	}
	return b.Build()
}
