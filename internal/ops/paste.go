package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// PasteInput contains parameters for the Paste operation.
type PasteInput struct {
	ID             string            // default: newest entry
	Merge          string            // auto (default), none, extra_uris, rebuild
	URIMap         map[string]string // satellite URI rewrites applied before merging
	IncludeRaw     bool              // return the encoded payload as stored
	IncludeDeleted bool
}

// PasteOutput contains the result of the Paste operation.
type PasteOutput struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	Records      []RecordView `json:"records"`
	ContentTypes []string     `json:"content_types"`
	Tag          string       `json:"tag,omitempty"`
	ShareScope   string       `json:"share_scope"`
	OriginBundle string       `json:"origin_bundle,omitempty"`
	Timestamp    int64        `json:"timestamp"`
	Merge        *MergeView   `json:"merge,omitempty"`
	Raw          []byte       `json:"raw,omitempty"`
}

// Paste reads a history entry and, unless told otherwise, merges split HTML
// back together. The stored entry is never modified.
func Paste(ctx context.Context, database *sql.DB, cfg *config.Config, input PasteInput) (*PasteOutput, error) {
	mode, err := parseMergeMode(input.Merge)
	if err != nil {
		return nil, err
	}

	e, err := loadEntry(ctx, database, input.ID, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	raw, err := e.Raw()
	if err != nil {
		return nil, err
	}
	p, err := pasteboard.Unmarshal(raw)
	if err != nil {
		return nil, err
	}

	view, err := applyMerge(ctx, cfg, p, mode, input.URIMap)
	if err != nil {
		return nil, err
	}

	props := p.Properties()
	out := &PasteOutput{
		ID:           e.ID,
		Text:         p.ConvertToText(),
		Records:      viewRecords(p),
		ContentTypes: p.ContentTypes(),
		Tag:          p.Tag(),
		ShareScope:   p.ShareScope().String(),
		OriginBundle: props.OriginBundle,
		Timestamp:    props.Timestamp,
		Merge:        view,
	}
	if input.IncludeRaw {
		out.Raw = raw
	}
	loggerFrom(ctx).Debug("pasted entry", "id", e.ID, "records", len(out.Records))
	return out, nil
}
