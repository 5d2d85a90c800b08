package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/history"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.PasteboardError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const entryColumns = `
	id, checksum, content_key, encoding, blob, raw_size, stored_size, record_count,
	content_types, preview, tag, origin_bundle, share_scope, satellites,
	created_at, deleted_at`

const summaryColumns = `
	id, checksum, content_key, encoding, raw_size, stored_size, record_count,
	content_types, preview, tag, origin_bundle, share_scope, satellites,
	created_at, deleted_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert stores a new history entry.
func Insert(ctx context.Context, db *sql.DB, e *history.Entry) error {
	return insert(ctx, db, e)
}

// InsertTx stores a new history entry within a transaction.
func InsertTx(ctx context.Context, tx *sql.Tx, e *history.Entry) error {
	return insert(ctx, tx, e)
}

func insert(ctx context.Context, x execer, e *history.Entry) error {
	var typesJSON sql.NullString
	if len(e.ContentTypes) > 0 {
		data, err := json.Marshal(e.ContentTypes)
		if err != nil {
			return errors.NewInternal(err)
		}
		typesJSON = sql.NullString{String: string(data), Valid: true}
	}
	var deletedAt sql.NullInt64
	if e.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: *e.DeletedAt, Valid: true}
	}

	query := `INSERT INTO payloads (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := x.ExecContext(ctx, query,
		e.ID, e.Checksum, e.ContentKey, e.Encoding, e.Blob, e.RawSize, e.StoredSize, e.RecordCount,
		typesJSON, e.Preview, toNullString(e.Tag), toNullString(e.OriginBundle), e.ShareScope, e.Satellites,
		e.CreatedAt, deletedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both UNIQUE and PRIMARY KEY violations this way
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves an entry by its ULID.
// If includeDeleted is false, soft-deleted entries are excluded.
func GetByID(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*history.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM payloads WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	e, err := scanEntry(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// Exists reports whether an entry with id exists, deleted or not.
func Exists(ctx context.Context, db *sql.DB, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM payloads WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// GetLatest returns the newest entry, or nil if the history is empty.
func GetLatest(ctx context.Context, db *sql.DB, includeDeleted bool) (*history.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM payloads`
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT 1"

	e, err := scanEntry(db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// LatestContentKey returns the id and content key of the newest active
// entry. Both are empty when the history is empty.
func LatestContentKey(ctx context.Context, db *sql.DB) (id, key string, err error) {
	query := `SELECT id, content_key FROM payloads
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`
	err = db.QueryRowContext(ctx, query).Scan(&id, &key)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", errors.NewInternal(err)
	}
	return id, key, nil
}

// ListSummaries returns entry summaries, newest first, and the total count.
func ListSummaries(ctx context.Context, db *sql.DB, limit, offset int, includeDeleted bool) ([]history.Summary, int, error) {
	where := ""
	if !includeDeleted {
		where = " WHERE deleted_at IS NULL"
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payloads`+where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + summaryColumns + ` FROM payloads` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var summaries []history.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return summaries, total, nil
}

// SoftDelete marks an entry as deleted by setting deleted_at.
func SoftDelete(ctx context.Context, db *sql.DB, id string) error {
	now := time.Now().Unix()

	query := `
		UPDATE payloads
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := db.ExecContext(ctx, query, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// TrimHistory soft-deletes active entries beyond the newest keep.
// keep <= 0 disables trimming.
func TrimHistory(ctx context.Context, db *sql.DB, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	now := time.Now().Unix()

	query := `
		UPDATE payloads
		SET deleted_at = ?
		WHERE deleted_at IS NULL AND id IN (
			SELECT id FROM payloads
			WHERE deleted_at IS NULL
			ORDER BY created_at DESC, id DESC
			LIMIT -1 OFFSET ?
		)
	`
	result, err := db.ExecContext(ctx, query, now, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// PurgeDeleted permanently removes soft-deleted entries. If olderThanDays is
// set, only entries deleted more than that many days ago are removed.
func PurgeDeleted(ctx context.Context, db *sql.DB, olderThanDays *int) (int, error) {
	query := `DELETE FROM payloads WHERE deleted_at IS NOT NULL`
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamForExport returns rows of full entries, oldest first. The caller
// must close the rows and scan them with ScanEntryFromRows.
func StreamForExport(ctx context.Context, db *sql.DB, includeDeleted bool) (*sql.Rows, error) {
	query := `SELECT ` + entryColumns + ` FROM payloads`
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanEntryFromRows scans the current row of StreamForExport.
func ScanEntryFromRows(rows *sql.Rows) (*history.Entry, error) {
	return scanEntry(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row into an Entry.
func scanEntry(row scanner) (*history.Entry, error) {
	var (
		e            history.Entry
		typesJSON    sql.NullString
		tag          sql.NullString
		originBundle sql.NullString
		deletedAt    sql.NullInt64
	)

	err := row.Scan(
		&e.ID, &e.Checksum, &e.ContentKey, &e.Encoding, &e.Blob, &e.RawSize, &e.StoredSize, &e.RecordCount,
		&typesJSON, &e.Preview, &tag, &originBundle, &e.ShareScope, &e.Satellites,
		&e.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Tag = fromNullString(tag)
	e.OriginBundle = fromNullString(originBundle)
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Int64
	}
	if err := parseContentTypes(typesJSON, &e.ContentTypes); err != nil {
		return nil, err
	}
	return &e, nil
}

// scanSummary scans a single row into a Summary.
func scanSummary(row scanner) (*history.Summary, error) {
	var (
		s            history.Summary
		typesJSON    sql.NullString
		tag          sql.NullString
		originBundle sql.NullString
		deletedAt    sql.NullInt64
	)

	err := row.Scan(
		&s.ID, &s.Checksum, &s.ContentKey, &s.Encoding, &s.RawSize, &s.StoredSize, &s.RecordCount,
		&typesJSON, &s.Preview, &tag, &originBundle, &s.ShareScope, &s.Satellites,
		&s.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Tag = fromNullString(tag)
	s.OriginBundle = fromNullString(originBundle)
	if deletedAt.Valid {
		s.DeletedAt = &deletedAt.Int64
	}
	if err := parseContentTypes(typesJSON, &s.ContentTypes); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseContentTypes(ns sql.NullString, dst *[]string) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), dst)
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
