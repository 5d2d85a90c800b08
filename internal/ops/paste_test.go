package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

func TestPaste_Latest(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copyText(t, database, cfg, "first")
	second := copyText(t, database, cfg, "second")

	out, err := Paste(context.Background(), database, cfg, PasteInput{})
	require.NoError(t, err)
	assert.Equal(t, second.ID, out.ID)
	assert.Equal(t, "second", out.Text)
	assert.Equal(t, "local_device", out.ShareScope)
	assert.Nil(t, out.Merge)
	assert.Nil(t, out.Raw)
	assert.NotZero(t, out.Timestamp)
}

func TestPaste_EmptyHistory(t *testing.T) {
	database := openTestDB(t)
	_, err := Paste(context.Background(), database, testConfig(), PasteInput{})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPaste_InvalidMerge(t *testing.T) {
	database := openTestDB(t)
	_, err := Paste(context.Background(), database, testConfig(), PasteInput{Merge: "squash"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestPaste_AutoMergesSplitHTML(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyHTML(t, database, cfg, splitHTML, true)
	require.Equal(t, 1, copied.Satellites)

	out, err := Paste(context.Background(), database, cfg, PasteInput{ID: copied.ID})
	require.NoError(t, err)
	require.NotNil(t, out.Merge)
	assert.Equal(t, MergeExtraURIs, out.Merge.Mode)
	assert.Equal(t, 2, out.Merge.Applied)
	assert.Equal(t, 1, out.Merge.Removed)
	assert.Empty(t, out.Merge.Rejected)
	assert.Equal(t, splitHTML, out.Text)
	assert.Equal(t, []string{pasteboard.MimeTypeHTML}, out.ContentTypes)
	assert.Empty(t, out.Tag)

	// the stored entry keeps its satellites
	e, err := db.GetByID(context.Background(), database, copied.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Satellites)
}

func TestPaste_MergeNoneKeepsSatellites(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyHTML(t, database, cfg, splitHTML, true)

	out, err := Paste(context.Background(), database, cfg, PasteInput{ID: copied.ID, Merge: MergeNone, IncludeRaw: true})
	require.NoError(t, err)
	assert.Nil(t, out.Merge)
	require.Len(t, out.Records, 2)
	assert.Equal(t, out.Records[0].ID, out.Records[1].From)
	assert.Equal(t, cfg.SplitTag, out.Tag)

	p, err := pasteboard.Unmarshal(out.Raw)
	require.NoError(t, err)
	assert.Equal(t, 2, p.RecordCount())
}

func TestPaste_URIMapRewritesImages(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyHTML(t, database, cfg, splitHTML, true)

	out, err := Paste(context.Background(), database, cfg, PasteInput{
		ID:     copied.ID,
		Merge:  MergeRebuild,
		URIMap: map[string]string{"file:///tmp/a.png": "file:///sandbox/a.png"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Merge)
	assert.Equal(t, 1, out.Merge.Remapped)
	assert.Equal(t, strings.ReplaceAll(splitHTML, "file:///tmp/a.png", "file:///sandbox/a.png"), out.Text)
	assert.Len(t, out.Records, 1)
}

func TestPaste_DeletedNeedsIncludeDeleted(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyText(t, database, cfg, "gone")
	_, err := Delete(context.Background(), database, DeleteInput{ID: copied.ID})
	require.NoError(t, err)

	_, err = Paste(context.Background(), database, cfg, PasteInput{ID: copied.ID})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	out, err := Paste(context.Background(), database, cfg, PasteInput{ID: copied.ID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, "gone", out.Text)
}
