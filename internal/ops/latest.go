package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/history"
)

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	IncludeText    *bool // default: false (summary only)
	IncludeDeleted bool
}

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	Item *LatestItem `json:"item"` // nil if the history is empty
}

// LatestItem contains the newest entry with optional text.
type LatestItem struct {
	history.Summary
	Text string `json:"text,omitempty"` // only if include_text
}

// Latest retrieves the newest history entry.
func Latest(ctx context.Context, database *sql.DB, input LatestInput) (*LatestOutput, error) {
	e, err := db.GetLatest(ctx, database, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return &LatestOutput{Item: nil}, nil
	}

	item := &LatestItem{Summary: e.ToSummary()}
	if input.IncludeText != nil && *input.IncludeText {
		p, err := e.Payload()
		if err != nil {
			return nil, err
		}
		item.Text = p.ConvertToText()
	}
	return &LatestOutput{Item: item}, nil
}
