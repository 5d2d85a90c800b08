package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/history"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
	"github.com/hpungsan/pasteboard/internal/tlv"
)

// InspectInput contains parameters for the Inspect operation. Raw takes
// precedence over ID; with neither, the newest entry is inspected.
type InspectInput struct {
	ID             string
	Raw            []byte
	IncludeDeleted bool
}

// SectionView describes one top-level field of an encoded payload.
type SectionView struct {
	Tag    uint16 `json:"tag"`
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Length uint32 `json:"length"`
}

// InspectOutput contains the result of the Inspect operation.
type InspectOutput struct {
	ID           string              `json:"id,omitempty"`
	Size         int                 `json:"size"`
	Checksum     string              `json:"checksum"`
	Sections     []SectionView       `json:"sections"`
	Records      []RecordView        `json:"records"`
	ContentTypes []string            `json:"content_types"`
	Tag          string              `json:"tag,omitempty"`
	ShareScope   string              `json:"share_scope"`
	Lint         *history.LintResult `json:"lint"`
}

// Inspect dumps the structure of an encoded payload and checks its split
// links.
func Inspect(ctx context.Context, database *sql.DB, cfg *config.Config, input InspectInput) (*InspectOutput, error) {
	raw := input.Raw
	id := ""
	if len(raw) == 0 {
		if database == nil {
			return nil, errors.NewInvalidRequest("raw is required without a history")
		}
		e, err := loadEntry(ctx, database, input.ID, input.IncludeDeleted)
		if err != nil {
			return nil, err
		}
		if raw, err = e.Raw(); err != nil {
			return nil, err
		}
		id = e.ID
	}

	sections, err := tlv.Sections(raw)
	if err != nil {
		return nil, err
	}
	p, err := pasteboard.Unmarshal(raw)
	if err != nil {
		return nil, err
	}

	views := make([]SectionView, len(sections))
	for i, s := range sections {
		views[i] = SectionView{
			Tag:    s.Head.Tag,
			Name:   pasteboard.SectionName(s.Head.Tag),
			Offset: s.Offset,
			Length: s.Head.Length,
		}
	}

	splitTag := ""
	if cfg != nil {
		splitTag = cfg.SplitTag
	}
	return &InspectOutput{
		ID:           id,
		Size:         len(raw),
		Checksum:     history.Checksum(raw),
		Sections:     views,
		Records:      viewRecords(p),
		ContentTypes: p.ContentTypes(),
		Tag:          p.Tag(),
		ShareScope:   p.ShareScope().String(),
		Lint:         history.Lint(history.LintInput{Payload: p, SplitTag: splitTag}),
	}, nil
}
