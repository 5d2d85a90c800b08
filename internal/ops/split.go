package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/htmlsplit"
)

// SplitInput contains parameters for the Split operation.
type SplitInput struct {
	ID           string // default: newest entry
	Scanner      string // regex (default) or tokenizer
	ResolveFiles bool
}

// SplitOutput contains the result of the Split operation.
type SplitOutput struct {
	SourceID   string `json:"source_id"`
	ID         string `json:"id"`
	Stored     bool   `json:"stored"`
	Satellites int    `json:"satellites"`
	Trimmed    int    `json:"trimmed,omitempty"`
}

// Split extracts local images from a stored entry's HTML and stores the
// split payload as a new entry. An entry with nothing to split, or one
// already split, is left as is.
func Split(ctx context.Context, database *sql.DB, cfg *config.Config, input SplitInput) (*SplitOutput, error) {
	scanner, err := scannerFor(input.Scanner)
	if err != nil {
		return nil, err
	}

	src, err := loadEntry(ctx, database, input.ID, false)
	if err != nil {
		return nil, err
	}
	p, err := src.Payload()
	if err != nil {
		return nil, err
	}

	opts := []htmlsplit.Option{htmlsplit.WithScanner(scanner)}
	if input.ResolveFiles {
		opts = append(opts, htmlsplit.WithResolver(htmlsplit.FSResolver{}))
	}
	n, err := splitter(ctx, cfg, opts...).SplitPayload(p)
	if err != nil {
		return nil, err
	}
	out := &SplitOutput{SourceID: src.ID, ID: src.ID, Satellites: n}
	if n == 0 {
		return out, nil
	}

	e, trimmed, err := store(ctx, database, cfg, p)
	if err != nil {
		return nil, err
	}
	loggerFrom(ctx).Info("entry split", "source_id", src.ID, "id", e.ID, "satellites", n)
	out.ID = e.ID
	out.Stored = true
	out.Trimmed = trimmed
	return out, nil
}
