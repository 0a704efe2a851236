package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cachelog/internal/artifact"
	"github.com/roach88/cachelog/internal/key"
)

func writeArtifact(t *testing.T, store *artifact.Store, scope, function string, args map[string]any, ts int64, eligible bool) string {
	t.Helper()
	name, err := store.Write(scope, artifact.Record{
		Key:           key.ForCall(function, args),
		Function:      function,
		Args:          args,
		Result:        []byte("payload"),
		Timestamp:     ts,
		CacheEligible: eligible,
	})
	require.NoError(t, err)
	return name
}

func TestRebuild_SkipsGarbage(t *testing.T) {
	// Five artifact files, one of which is truncated garbage: the rebuilt
	// index contains entries for the four valid files only.
	root := t.TempDir()
	store := artifact.NewStore(root)
	repo := NewRepository(root, testManager())
	require.NoError(t, store.EnsureScope("sc"))

	for i := 1; i <= 4; i++ {
		writeArtifact(t, store, "sc", "f", map[string]any{"x": i}, int64(i*100), true)
	}
	garbage := "f::{x:9}::900" + key.Extension
	require.NoError(t, os.WriteFile(filepath.Join(root, "sc", garbage), []byte("{\"cache_k"), 0o644))

	report, err := repo.Rebuild(context.Background(), "sc", store)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Scanned)
	assert.Len(t, report.Kept, 4)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, garbage, report.Skipped[0].File)
	assert.Contains(t, report.Skipped[0].Reason, "unparsable")

	ix := loadIndex(t, repo, "sc")
	assert.Len(t, ix.Entries, 4)
}

func TestRebuild_SkipsIdentityMismatch(t *testing.T) {
	root := t.TempDir()
	store := artifact.NewStore(root)
	repo := NewRepository(root, testManager())
	require.NoError(t, store.EnsureScope("sc"))

	writeArtifact(t, store, "sc", "f", map[string]any{"x": 1}, 100, true)

	// A record whose stored key does not match its stored arguments.
	forged, err := store.Write("sc", artifact.Record{
		Key:           "f::{x:1}",
		Function:      "f",
		Args:          map[string]any{"x": 2},
		Result:        []byte("forged"),
		Timestamp:     200,
		CacheEligible: true,
	})
	require.NoError(t, err)

	report, err := repo.Rebuild(context.Background(), "sc", store)
	require.NoError(t, err)
	assert.Len(t, report.Kept, 1)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, forged, report.Skipped[0].File)
	assert.Contains(t, report.Skipped[0].Reason, "identity mismatch")

	// The forged record must not have displaced the genuine cache artifact.
	ix := loadIndex(t, repo, "sc")
	e := ix.Entries["f::{x:1}"]
	require.NotNil(t, e)
	assert.Equal(t, int64(100), e.CacheTime)
}

func TestRebuild_ReplacesCorruptIndex(t *testing.T) {
	root := t.TempDir()
	store := artifact.NewStore(root)
	repo := NewRepository(root, testManager())
	require.NoError(t, store.EnsureScope("sc"))

	a1 := writeArtifact(t, store, "sc", "f", map[string]any{"x": 1}, 100, true)
	writeArtifact(t, store, "sc", "f", map[string]any{"x": 1}, 200, false)

	require.NoError(t, os.WriteFile(filepath.Join(root, "sc", FileName), []byte("corrupt"), 0o644))

	_, err := repo.Rebuild(context.Background(), "sc", store)
	require.NoError(t, err)

	ix := loadIndex(t, repo, "sc")
	e := ix.Entries["f::{x:1}"]
	require.NotNil(t, e)
	assert.Equal(t, a1, e.CacheFile, "log-only record must not win the cache slot")
	assert.Len(t, e.LogEntries, 2)
}

func TestRebuild_Idempotent(t *testing.T) {
	// Rebuilding twice with no folds in between yields byte-identical
	// index content.
	root := t.TempDir()
	store := artifact.NewStore(root)
	repo := NewRepository(root, testManager())
	require.NoError(t, store.EnsureScope("sc"))

	writeArtifact(t, store, "sc", "f", map[string]any{"x": 1}, 100, true)
	writeArtifact(t, store, "sc", "f", map[string]any{"x": 1}, 300, true)
	writeArtifact(t, store, "sc", "g", map[string]any{"name": "run"}, 200, false)

	_, err := repo.Rebuild(context.Background(), "sc", store)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(root, "sc", FileName))
	require.NoError(t, err)

	_, err = repo.Rebuild(context.Background(), "sc", store)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(root, "sc", FileName))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRebuild_GoldenIndex(t *testing.T) {
	// Pins the serialized index format. A change here breaks every store
	// written by earlier versions.
	root := t.TempDir()
	store := artifact.NewStore(root)
	repo := NewRepository(root, testManager())
	require.NoError(t, store.EnsureScope("sc"))

	writeArtifact(t, store, "sc", "f", map[string]any{"x": 1}, 100, true)

	_, err := repo.Rebuild(context.Background(), "sc", store)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, "sc", FileName))
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "rebuild", raw)
}

func loadIndex(t *testing.T, repo *Repository, scope string) *Index {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.leases.Acquire(ctx, repo.LockDir(scope)))
	defer repo.leases.Release(repo.LockDir(scope))
	ix, err := repo.Load(scope)
	require.NoError(t, err)
	return ix
}
