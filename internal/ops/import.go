package ops

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/history"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError  ImportMode = "error"  // fail on any bad record or collision (atomic)
	ImportModeSkip   ImportMode = "skip"   // keep the existing entry on collision
	ImportModeRename ImportMode = "rename" // give the imported entry a new id on collision
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Trimmed  int           `json:"trimmed,omitempty"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Item    int    `json:"item"` // 1-based position after the header
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import reads entries from a .pbx export file into the history.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip, rename")
	}
	importPath, err := CheckPath(input.Path, ImportSource, cfg)
	if err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(importPath)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	entries, parseErrors, err := parseExportFile(bufio.NewReader(file), cfg.CompressMinBytes)
	if err != nil {
		return nil, err
	}

	// For mode:error, fail on any parse errors
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	var out *ImportOutput
	switch input.Mode {
	case ImportModeError:
		out, err = importModeError(ctx, database, entries)
	default:
		out, err = importLenient(ctx, database, entries, parseErrors, input.Mode)
	}
	if err != nil {
		return nil, err
	}

	if out.Imported > 0 {
		if out.Trimmed, err = db.TrimHistory(ctx, database, cfg.HistoryLimit); err != nil {
			return nil, err
		}
		loggerFrom(ctx).Info("history imported", "path", input.Path, "mode", input.Mode,
			"imported", out.Imported, "skipped", out.Skipped)
	}
	return out, nil
}

type parsedEntry struct {
	item  int
	entry *history.Entry
}

// parseExportFile decodes every record of an export file. A bad header is
// an error; bad records are reported and skipped. A record that cannot be
// decoded at all ends the stream.
func parseExportFile(r io.Reader, minCompress int) ([]parsedEntry, []ImportError, error) {
	reader, err := history.NewExportReader(r)
	if err != nil {
		return nil, nil, err
	}

	var (
		entries     []parsedEntry
		parseErrors []ImportError
	)
	for item := 1; ; item++ {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, ImportError{
				Item:    item,
				Code:    "READ_ERROR",
				Message: err.Error(),
			})
			break
		}

		e, err := record.ToEntry(minCompress)
		if err != nil {
			code := "INVALID_RECORD"
			if errors.Is(err, errors.ErrMalformedInput) {
				code = "MALFORMED_RECORD"
			}
			parseErrors = append(parseErrors, ImportError{
				Item:    item,
				ID:      record.ID,
				Code:    code,
				Message: err.Error(),
			})
			continue
		}
		entries = append(entries, parsedEntry{item: item, entry: e})
	}
	return entries, parseErrors, nil
}

// importModeError imports all entries atomically, rolling back on any collision.
func importModeError(ctx context.Context, database *sql.DB, entries []parsedEntry) (*ImportOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, pe := range entries {
		if err := db.InsertTx(ctx, tx, pe.entry); err != nil {
			if err == db.ErrUniqueConstraint {
				return &ImportOutput{Errors: []ImportError{{
					Item:    pe.item,
					ID:      pe.entry.ID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("entry with id %q already exists", pe.entry.ID),
				}}}, nil
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: len(entries), Errors: []ImportError{}}, nil
}

// importLenient imports entries one by one, skipping or renaming on
// collision.
func importLenient(ctx context.Context, database *sql.DB, entries []parsedEntry, parseErrors []ImportError, mode ImportMode) (*ImportOutput, error) {
	out := &ImportOutput{Errors: append([]ImportError{}, parseErrors...)}
	out.Skipped = len(parseErrors)

	for _, pe := range entries {
		e := pe.entry
		exists, err := db.Exists(ctx, database, e.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			if mode == ImportModeSkip {
				out.Skipped++
				continue
			}
			if e.ID, err = generateULID(); err != nil {
				return nil, errors.NewInternal(err)
			}
		}

		if err := db.Insert(ctx, database, e); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Item:    pe.item,
				ID:      e.ID,
				Code:    "INSERT_FAILED",
				Message: fmt.Sprintf("failed to insert: %v", err),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}
	return out, nil
}
