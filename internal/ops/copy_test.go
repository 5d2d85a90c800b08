package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

func TestCopy_PlainText(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()

	out, err := Copy(context.Background(), database, cfg, CopyInput{
		Records:      []RecordInput{{Kind: KindPlainText, Text: "hello"}},
		Tag:          "note",
		OriginBundle: "com.example.editor",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.False(t, out.Deduplicated)
	assert.Equal(t, 1, out.Records)
	assert.Equal(t, []string{pasteboard.MimeTypePlainText}, out.ContentTypes)

	e, err := db.GetByID(context.Background(), database, out.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "hello", e.Preview)
	require.NotNil(t, e.Tag)
	assert.Equal(t, "note", *e.Tag)
	require.NotNil(t, e.OriginBundle)
	assert.Equal(t, "com.example.editor", *e.OriginBundle)
	assert.Equal(t, "local_device", e.ShareScope)

	p, err := e.Payload()
	require.NoError(t, err)
	assert.NotZero(t, p.Properties().Timestamp)
}

func TestCopy_RecordOrderFollowsInput(t *testing.T) {
	database := openTestDB(t)
	out, err := Copy(context.Background(), database, testConfig(), CopyInput{
		Records: []RecordInput{
			{Kind: KindHTML, Text: "<b>x</b>"},
			{Kind: KindPlainText, Text: "x"},
			{Kind: KindWant, Text: "want"},
			{Kind: KindCustom, MimeType: "application/x-ext", CustomData: map[string]string{"k": "v"}},
		},
		Split: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		pasteboard.MimeTypeHTML, pasteboard.MimeTypePlainText, pasteboard.MimeTypeWant, "application/x-ext",
	}, out.ContentTypes)
}

func TestCopy_Validation(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	tests := []struct {
		name  string
		input CopyInput
		code  errors.ErrorCode
	}{
		{"nothing", CopyInput{}, errors.ErrInvalidRequest},
		{"records and raw", CopyInput{
			Records: []RecordInput{{Kind: KindPlainText, Text: "x"}},
			Raw:     []byte{1},
		}, errors.ErrInvalidRequest},
		{"unknown kind", CopyInput{Records: []RecordInput{{Kind: "video"}}}, errors.ErrInvalidRequest},
		{"custom without mime", CopyInput{Records: []RecordInput{{Kind: KindCustom, CustomData: map[string]string{"k": "v"}}}}, errors.ErrInvalidRequest},
		{"empty uri", CopyInput{Records: []RecordInput{{Kind: KindURI}}}, errors.ErrInvalidRequest},
		{"bad share scope", CopyInput{Records: []RecordInput{{Kind: KindPlainText, Text: "x"}}, ShareScope: "galaxy"}, errors.ErrInvalidRequest},
		{"bad scanner", CopyInput{Records: []RecordInput{{Kind: KindHTML, Text: "<p>"}}, Scanner: "lexer"}, errors.ErrInvalidRequest},
		{"raw garbage", CopyInput{Raw: []byte{1, 2, 3}}, errors.ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Copy(ctx, database, cfg, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestCopy_TextLimit(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	cfg.MaxTextBytes = 8

	_, err := Copy(context.Background(), database, cfg, CopyInput{
		Records: []RecordInput{{Kind: KindPlainText, Text: strings.Repeat("x", 9)}},
	})
	assert.True(t, errors.Is(err, errors.ErrConstructionInvalid))
}

func TestCopy_DeduplicatesConsecutiveCopies(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()

	first := copyText(t, database, cfg, "same")
	second := copyText(t, database, cfg, "same")
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.ID, second.ID)

	copyText(t, database, cfg, "other")
	third := copyText(t, database, cfg, "same")
	assert.False(t, third.Deduplicated)
	assert.NotEqual(t, first.ID, third.ID)

	_, total, err := db.ListSummaries(context.Background(), database, 10, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestCopy_SplitsLocalImages(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()

	out := copyHTML(t, database, cfg, splitHTML, true)
	assert.Equal(t, 1, out.Satellites)
	assert.Equal(t, 2, out.Records)
	assert.Equal(t, []string{pasteboard.MimeTypeHTML, pasteboard.MimeTypeURI}, out.ContentTypes)

	e, err := db.GetByID(context.Background(), database, out.ID, false)
	require.NoError(t, err)
	require.NotNil(t, e.Tag)
	assert.Equal(t, cfg.SplitTag, *e.Tag)
	assert.Equal(t, 1, e.Satellites)
}

func TestCopy_SplitDisabledByConfig(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	cfg.SplitOnCopy = boolPtr(false)

	out, err := Copy(context.Background(), database, cfg, CopyInput{
		Records: []RecordInput{{Kind: KindHTML, Text: splitHTML}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Satellites)
	assert.Equal(t, 1, out.Records)
}

func TestCopy_ResolveFilesDropsMissing(t *testing.T) {
	database := openTestDB(t)
	dir := t.TempDir()
	present := filepath.Join(dir, "present.png")
	require.NoError(t, os.WriteFile(present, []byte("png"), 0600))
	html := `<img src="file://` + present + `"><img src="file://` + filepath.Join(dir, "gone.png") + `">`

	out, err := Copy(context.Background(), database, testConfig(), CopyInput{
		Records:      []RecordInput{{Kind: KindHTML, Text: html}},
		Split:        boolPtr(true),
		ResolveFiles: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Satellites)
}

func TestCopy_RawPayload(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()

	rec, err := pasteboard.NewURIRecord("https://example.com")
	require.NoError(t, err)
	p, err := pasteboard.NewPayloadWithRecord(rec)
	require.NoError(t, err)
	p.SetShareScope(pasteboard.ShareCrossDevice)
	raw, err := p.MarshalBinary()
	require.NoError(t, err)

	out, err := Copy(context.Background(), database, cfg, CopyInput{Raw: raw})
	require.NoError(t, err)

	e, err := db.GetByID(context.Background(), database, out.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "cross_device", e.ShareScope)
	assert.Equal(t, "https://example.com", e.Preview)
}

func TestCopy_TrimsHistory(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	cfg.HistoryLimit = 2

	copyText(t, database, cfg, "one")
	copyText(t, database, cfg, "two")
	out := copyText(t, database, cfg, "three")
	assert.Equal(t, 1, out.Trimmed)

	list, err := List(context.Background(), database, ListInput{})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "three", list.Items[0].Preview)
	assert.Equal(t, "two", list.Items[1].Preview)
}
