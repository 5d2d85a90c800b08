package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pasteboard/internal/db"
	"github.com/hpungsan/pasteboard/internal/errors"
)

func TestSplit_StoresNewEntry(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyHTML(t, database, cfg, splitHTML, false)

	out, err := Split(context.Background(), database, cfg, SplitInput{Scanner: "tokenizer"})
	require.NoError(t, err)
	assert.True(t, out.Stored)
	assert.Equal(t, copied.ID, out.SourceID)
	assert.NotEqual(t, copied.ID, out.ID)
	assert.Equal(t, 1, out.Satellites)

	latest, err := db.GetLatest(context.Background(), database, false)
	require.NoError(t, err)
	assert.Equal(t, out.ID, latest.ID)
	assert.Equal(t, 1, latest.Satellites)

	// the source entry is untouched
	src, err := db.GetByID(context.Background(), database, copied.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, src.Satellites)
}

func TestSplit_NothingToSplit(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyText(t, database, cfg, "plain")

	out, err := Split(context.Background(), database, cfg, SplitInput{ID: copied.ID})
	require.NoError(t, err)
	assert.False(t, out.Stored)
	assert.Equal(t, copied.ID, out.ID)
	assert.Equal(t, 0, out.Satellites)
}

func TestSplit_AlreadySplit(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyHTML(t, database, cfg, splitHTML, true)

	out, err := Split(context.Background(), database, cfg, SplitInput{ID: copied.ID})
	require.NoError(t, err)
	assert.False(t, out.Stored)
}

func TestSplit_NotFound(t *testing.T) {
	database := openTestDB(t)
	_, err := Split(context.Background(), database, testConfig(), SplitInput{ID: "01NOPE"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMerge_StoresMergedEntry(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyHTML(t, database, cfg, splitHTML, true)

	out, err := Merge(context.Background(), database, cfg, MergeInput{ID: copied.ID})
	require.NoError(t, err)
	assert.True(t, out.Stored)
	require.NotNil(t, out.Merge)
	assert.Equal(t, MergeExtraURIs, out.Merge.Mode)
	assert.Equal(t, 2, out.Merge.Applied)

	e, err := db.GetByID(context.Background(), database, out.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Satellites)
	assert.Nil(t, e.Tag)
	assert.Equal(t, 1, e.RecordCount)
}

func TestMerge_NothingToMerge(t *testing.T) {
	database := openTestDB(t)
	cfg := testConfig()
	copied := copyText(t, database, cfg, "plain")

	out, err := Merge(context.Background(), database, cfg, MergeInput{Mode: MergeRebuild})
	require.NoError(t, err)
	assert.False(t, out.Stored)
	assert.Equal(t, copied.ID, out.ID)
}

func TestMerge_RejectsPasteOnlyModes(t *testing.T) {
	database := openTestDB(t)
	for _, mode := range []string{MergeAuto, MergeNone, "squash"} {
		_, err := Merge(context.Background(), database, testConfig(), MergeInput{Mode: mode})
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), mode)
	}
}
