package ops

import (
	"context"
	"database/sql"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/htmlsplit"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

const splitHTML = `<p>a</p><img src="file:///tmp/a.png"><img src="https://example.com/b.png"><img src="file:///tmp/a.png">`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return cfg
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

func copyText(t *testing.T, database *sql.DB, cfg *config.Config, text string) *CopyOutput {
	t.Helper()
	out, err := Copy(context.Background(), database, cfg, CopyInput{
		Records: []RecordInput{{Kind: KindPlainText, Text: text}},
	})
	require.NoError(t, err)
	return out
}

func copyHTML(t *testing.T, database *sql.DB, cfg *config.Config, html string, split bool) *CopyOutput {
	t.Helper()
	out, err := Copy(context.Background(), database, cfg, CopyInput{
		Records: []RecordInput{{Kind: KindHTML, Text: html}},
		Split:   boolPtr(split),
	})
	require.NoError(t, err)
	return out
}

func TestScannerFor(t *testing.T) {
	s, err := scannerFor("")
	require.NoError(t, err)
	assert.IsType(t, htmlsplit.RegexScanner{}, s)

	s, err = scannerFor(" Tokenizer ")
	require.NoError(t, err)
	assert.IsType(t, htmlsplit.TokenizerScanner{}, s)

	_, err = scannerFor("lexer")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestParseMergeMode(t *testing.T) {
	for in, want := range map[string]string{
		"":           MergeAuto,
		"AUTO":       MergeAuto,
		"none":       MergeNone,
		"extra_uris": MergeExtraURIs,
		" rebuild ":  MergeRebuild,
	} {
		got, err := parseMergeMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseMergeMode("squash")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestGenerateULID_Monotonic(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id, err := generateULID()
		require.NoError(t, err)
		_, err = ulid.ParseStrict(id)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestViewRecords(t *testing.T) {
	p := pasteboard.NewPayload()
	html, err := pasteboard.NewHTMLRecord("<b>x</b>")
	require.NoError(t, err)
	require.NoError(t, p.AppendRecord(html))
	custom, err := pasteboard.NewCustomRecord("application/x-ext", map[string][]byte{"z": {1}, "a": {2}})
	require.NoError(t, err)
	require.NoError(t, p.AppendRecord(custom))

	views := viewRecords(p)
	require.Len(t, views, 2)
	assert.Equal(t, 0, views[0].Index)
	assert.Equal(t, pasteboard.MimeTypeHTML, views[0].MimeType)
	assert.Equal(t, "<b>x</b>", views[0].Text)
	assert.Equal(t, []string{"a", "z"}, views[1].CustomKeys)
	assert.NotEqual(t, views[0].ID, views[1].ID)
}

func TestLoadEntry_LatestOnEmptyHistory(t *testing.T) {
	database := openTestDB(t)
	_, err := loadEntry(context.Background(), database, "", false)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRemapSatellites(t *testing.T) {
	p := pasteboard.NewPayload()
	root, err := pasteboard.NewHTMLRecord(splitHTML)
	require.NoError(t, err)
	require.NoError(t, p.AppendRecord(root))
	n, err := htmlsplit.NewSplitter().SplitPayload(p)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.Equal(t, 0, remapSatellites(p, nil))
	assert.Equal(t, 1, remapSatellites(p, map[string]string{"file:///tmp/a.png": "file:///sandbox/a.png"}))

	sat := p.Records()[1]
	uri, _ := sat.Content.URI()
	assert.Equal(t, "file:///sandbox/a.png", uri)
	assert.Contains(t, sat.CustomData, "file:///tmp/a.png")
}
