package tracker_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLevelDB(t *testing.T) *tracker.LevelDB {
	t.Helper()
	cfg := tracker.DefaultConfig(filepath.Join(t.TempDir(), "provenance"))
	lt, err := tracker.OpenLevelDB(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lt.Close() })
	return lt
}

func TestLevelDBSaveLoadValueSurvivesCompression(t *testing.T) {
	ctx := context.Background()
	lt := openLevelDB(t)

	dg, err := lt.SaveOutputValue(ctx, []byte("compress me"))
	require.NoError(t, err)

	got, err := lt.LoadValue(ctx, dg)
	require.NoError(t, err)
	assert.Equal(t, []byte("compress me"), got)
}

func TestLevelDBLoadValueMissing(t *testing.T) {
	lt := openLevelDB(t)
	_, err := lt.LoadValue(context.Background(), digest.FromBytes([]byte("absent")))
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestLevelDBFindResultMiss(t *testing.T) {
	lt := openLevelDB(t)
	_, ok, err := lt.FindResult(context.Background(), tracker.MemoKey{FunctionName: "add"})
	require.NoError(t, err)
	assert.False(t, ok)
}
