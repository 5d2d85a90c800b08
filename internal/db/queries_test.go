package db

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/history"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// newTestEntry creates an entry holding a one-record text payload.
func newTestEntry(t *testing.T, id, text string, createdAt int64) *history.Entry {
	t.Helper()
	rec, err := pasteboard.NewPlainTextRecord(text)
	if err != nil {
		t.Fatalf("NewPlainTextRecord: %v", err)
	}
	p, err := pasteboard.NewPayloadWithRecord(rec)
	if err != nil {
		t.Fatalf("NewPayloadWithRecord: %v", err)
	}
	raw, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	e, err := history.NewEntry(id, p, raw, 1024, createdAt)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return e
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndGetByID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	e := newTestEntry(t, "01ABC123", "Test content", time.Now().Unix())
	tag := "some-tag"
	e.Tag = &tag

	if err := Insert(ctx, db, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := GetByID(ctx, db, "01ABC123", false)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.ID != e.ID {
		t.Errorf("ID = %q, want %q", got.ID, e.ID)
	}
	if got.Checksum != e.Checksum {
		t.Errorf("Checksum = %q, want %q", got.Checksum, e.Checksum)
	}
	if !bytes.Equal(got.Blob, e.Blob) {
		t.Errorf("Blob differs after round trip")
	}
	if got.Preview != "Test content" {
		t.Errorf("Preview = %q, want %q", got.Preview, "Test content")
	}
	if len(got.ContentTypes) != 1 || got.ContentTypes[0] != pasteboard.MimeTypePlainText {
		t.Errorf("ContentTypes = %v", got.ContentTypes)
	}
	if got.Tag == nil || *got.Tag != tag {
		t.Errorf("Tag = %v, want %q", got.Tag, tag)
	}
	if got.OriginBundle != nil {
		t.Errorf("OriginBundle = %v, want nil", got.OriginBundle)
	}
	if got.DeletedAt != nil {
		t.Errorf("DeletedAt = %v, want nil", got.DeletedAt)
	}

	p, err := got.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if p.ConvertToText() != "Test content" {
		t.Errorf("payload text = %q", p.ConvertToText())
	}
}

func TestInsert_CompressedBlob(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	e := newTestEntry(t, "01BIG", strings.Repeat("compress me ", 1000), 1)
	if e.Encoding != history.EncodingZstd {
		t.Fatalf("Encoding = %q, want %q", e.Encoding, history.EncodingZstd)
	}
	if err := Insert(ctx, db, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := GetByID(ctx, db, "01BIG", false)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StoredSize >= got.RawSize {
		t.Errorf("StoredSize = %d, RawSize = %d; expected compression", got.StoredSize, got.RawSize)
	}
	if _, err := got.Payload(); err != nil {
		t.Errorf("Payload failed: %v", err)
	}
}

func TestInsert_DuplicateID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := Insert(ctx, db, newTestEntry(t, "01DUP", "a", 1)); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	err := Insert(ctx, db, newTestEntry(t, "01DUP", "b", 2))
	if err != ErrUniqueConstraint {
		t.Errorf("second Insert error = %v, want ErrUniqueConstraint", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetByID(context.Background(), db, "missing", false)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := Insert(ctx, db, newTestEntry(t, "01DEL", "gone", 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := SoftDelete(ctx, db, "01DEL"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	if _, err := GetByID(ctx, db, "01DEL", false); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("active lookup error = %v, want NOT_FOUND", err)
	}
	got, err := GetByID(ctx, db, "01DEL", true)
	if err != nil {
		t.Fatalf("GetByID(includeDeleted) failed: %v", err)
	}
	if got.DeletedAt == nil {
		t.Error("DeletedAt not set")
	}

	if err := SoftDelete(ctx, db, "01DEL"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second SoftDelete error = %v, want NOT_FOUND", err)
	}

	exists, err := Exists(ctx, db, "01DEL")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true", exists, err)
	}
}

func TestGetLatestAndContentKey(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	latest, err := GetLatest(ctx, db, false)
	if err != nil || latest != nil {
		t.Fatalf("GetLatest on empty db = %v, %v; want nil, nil", latest, err)
	}
	id, sum, err := LatestContentKey(ctx, db)
	if err != nil || id != "" || sum != "" {
		t.Fatalf("LatestContentKey on empty db = %q, %q, %v", id, sum, err)
	}

	older := newTestEntry(t, "01OLD", "older", 100)
	newer := newTestEntry(t, "01NEW", "newer", 200)
	for _, e := range []*history.Entry{newer, older} {
		if err := Insert(ctx, db, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	latest, err = GetLatest(ctx, db, false)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.ID != "01NEW" {
		t.Errorf("latest = %s, want 01NEW", latest.ID)
	}

	id, sum, err = LatestContentKey(ctx, db)
	if err != nil {
		t.Fatalf("LatestContentKey failed: %v", err)
	}
	if id != "01NEW" || sum != newer.ContentKey {
		t.Errorf("LatestContentKey = %s, %s", id, sum)
	}

	if err := SoftDelete(ctx, db, "01NEW"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	latest, err = GetLatest(ctx, db, false)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.ID != "01OLD" {
		t.Errorf("latest after delete = %s, want 01OLD", latest.ID)
	}
	latest, err = GetLatest(ctx, db, true)
	if err != nil {
		t.Fatalf("GetLatest(includeDeleted) failed: %v", err)
	}
	if latest.ID != "01NEW" {
		t.Errorf("latest including deleted = %s, want 01NEW", latest.ID)
	}
}

func TestListSummaries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ids := []string{"01A", "01B", "01C", "01D"}
	for i, id := range ids {
		if err := Insert(ctx, db, newTestEntry(t, id, "text "+id, int64(i+1))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := SoftDelete(ctx, db, "01D"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	items, total, err := ListSummaries(ctx, db, 2, 0, false)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 || items[0].ID != "01C" || items[1].ID != "01B" {
		t.Errorf("page 1 = %+v", items)
	}

	items, _, err = ListSummaries(ctx, db, 2, 2, false)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "01A" {
		t.Errorf("page 2 = %+v", items)
	}

	items, total, err = ListSummaries(ctx, db, 10, 0, true)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if total != 4 || len(items) != 4 || items[0].ID != "01D" {
		t.Errorf("with deleted: total=%d items=%+v", total, items)
	}
	if items[0].DeletedAt == nil {
		t.Error("deleted summary has no DeletedAt")
	}
}

func TestTrimHistory(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i, id := range []string{"01A", "01B", "01C", "01D", "01E"} {
		if err := Insert(ctx, db, newTestEntry(t, id, id, int64(i+1))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	n, err := TrimHistory(ctx, db, 0)
	if err != nil || n != 0 {
		t.Fatalf("TrimHistory(0) = %d, %v; want no-op", n, err)
	}

	n, err = TrimHistory(ctx, db, 3)
	if err != nil {
		t.Fatalf("TrimHistory failed: %v", err)
	}
	if n != 2 {
		t.Errorf("trimmed = %d, want 2", n)
	}

	items, total, err := ListSummaries(ctx, db, 10, 0, false)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if total != 3 || items[2].ID != "01C" {
		t.Errorf("remaining total=%d items=%+v", total, items)
	}

	n, err = TrimHistory(ctx, db, 3)
	if err != nil || n != 0 {
		t.Errorf("second TrimHistory = %d, %v; want 0", n, err)
	}
}

func TestPurgeDeleted(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, id := range []string{"01A", "01B", "01C"} {
		if err := Insert(ctx, db, newTestEntry(t, id, id, 1)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := SoftDelete(ctx, db, "01A"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	old := newTestEntry(t, "01OLD", "old", 1)
	deletedAt := time.Now().Add(-10 * 24 * time.Hour).Unix()
	old.DeletedAt = &deletedAt
	if err := Insert(ctx, db, old); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	days := 7
	n, err := PurgeDeleted(ctx, db, &days)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged older than 7 days = %d, want 1", n)
	}

	n, err = PurgeDeleted(ctx, db, nil)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	if exists, _ := Exists(ctx, db, "01A"); exists {
		t.Error("01A still exists after purge")
	}
	if exists, _ := Exists(ctx, db, "01B"); !exists {
		t.Error("active entry 01B was purged")
	}
}

func TestStreamForExport(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i, id := range []string{"01A", "01B", "01C"} {
		if err := Insert(ctx, db, newTestEntry(t, id, id, int64(10-i))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := SoftDelete(ctx, db, "01B"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	rows, err := StreamForExport(ctx, db, false)
	if err != nil {
		t.Fatalf("StreamForExport failed: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		e, err := ScanEntryFromRows(rows)
		if err != nil {
			t.Fatalf("ScanEntryFromRows failed: %v", err)
		}
		got = append(got, e.ID)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if len(got) != 2 || got[0] != "01C" || got[1] != "01A" {
		t.Errorf("exported = %v, want [01C 01A] (oldest first)", got)
	}
}

func TestInsertTx(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if err := InsertTx(ctx, tx, newTestEntry(t, "01TX", "tx", 1)); err != nil {
		t.Fatalf("InsertTx failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	if exists, _ := Exists(ctx, db, "01TX"); exists {
		t.Error("rolled back entry exists")
	}
}
