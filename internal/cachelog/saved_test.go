package cachelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveGet_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", "report", []byte("v1"), map[string]any{"run": "a"}))
	require.NoError(t, s.Save(ctx, "", "report", []byte("v2"), map[string]any{"run": "b"}))

	records, err := s.Get(ctx, "", "report", nil)
	require.NoError(t, err)
	require.Len(t, records, 2, "repeated saves under one title must accumulate")
	assert.Equal(t, []byte("v1"), records[0].Data)
	assert.Equal(t, []byte("v2"), records[1].Data)
	assert.Equal(t, "a", records[0].Metadata["run"])
}

func TestGet_TitlesAreIndependent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", "alpha", []byte("a"), nil))
	require.NoError(t, s.Save(ctx, "", "beta", []byte("b"), nil))

	records, err := s.Get(ctx, "", "alpha", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("a"), records[0].Data)
}

func TestGet_Filter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", "report", []byte("keep"), map[string]any{"ok": true}))
	require.NoError(t, s.Save(ctx, "", "report", []byte("drop"), map[string]any{"ok": false}))

	records, err := s.Get(ctx, "", "report", func(r SavedRecord) bool {
		return r.Metadata["ok"] == true
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("keep"), records[0].Data)
}

func TestGetLast(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, s.Save(ctx, "", "report", []byte(v), nil))
	}

	data, ok, err := s.GetLast(ctx, "", "report", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v3"), data)
}

func TestGetLast_NothingMatches(t *testing.T) {
	s := testStore(t)
	_, ok, err := s.GetLast(context.Background(), "", "missing", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSave_NeverAnswersCacheLookups(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", "report", []byte("v1"), nil))

	_, hit, err := s.Lookup(ctx, "", savedDataFunc, titleArgs("report"))
	require.NoError(t, err)
	assert.False(t, hit, "saved data is log-only")
}
