package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_LatestEligibleWins(t *testing.T) {
	ix := New()
	for _, ts := range []int64{100, 200, 300} {
		ix.Apply(Fold{
			Identity:      "f::{x:1}",
			FileName:      "artifact-at-" + string(rune('0'+ts/100)),
			Timestamp:     ts,
			CacheEligible: true,
		})
	}

	e := ix.Entries["f::{x:1}"]
	require.NotNil(t, e)
	assert.Equal(t, "artifact-at-3", e.CacheFile)
	assert.Equal(t, int64(300), e.CacheTime)
	assert.Len(t, e.LogEntries, 3)
}

func TestApply_OutOfOrderFoldDoesNotRegressCache(t *testing.T) {
	ix := New()
	ix.Apply(Fold{Identity: "id", FileName: "newer", Timestamp: 200, CacheEligible: true})
	ix.Apply(Fold{Identity: "id", FileName: "older", Timestamp: 100, CacheEligible: true})

	e := ix.Entries["id"]
	assert.Equal(t, "newer", e.CacheFile)
	assert.Equal(t, int64(200), e.CacheTime)
}

func TestApply_NonEligibleNeverWins(t *testing.T) {
	ix := New()
	ix.Apply(Fold{Identity: "id", FileName: "cached", Timestamp: 100, CacheEligible: true})
	ix.Apply(Fold{Identity: "id", FileName: "log-only", Timestamp: 200, CacheEligible: false})

	e := ix.Entries["id"]
	assert.Equal(t, "cached", e.CacheFile, "a newer non-eligible entry must not steal the cache slot")
	assert.Equal(t, int64(100), e.CacheTime)
	assert.Len(t, e.LogEntries, 2, "non-eligible entries still land in the log")
}

func TestApply_LogOnlyEntryLeavesCacheUnset(t *testing.T) {
	ix := New()
	ix.Apply(Fold{Identity: "id", FileName: "log-only", Timestamp: 50, CacheEligible: false})

	e := ix.Entries["id"]
	assert.Empty(t, e.CacheFile)
	assert.Zero(t, e.CacheTime)
	assert.Len(t, e.LogEntries, 1)
}

func TestApply_RecordsPerFunctionCalls(t *testing.T) {
	ix := New()
	ix.Apply(Fold{
		Identity:  "f::{x:1}",
		Function:  "f",
		Args:      map[string]any{"x": 1},
		FileName:  "a1",
		Timestamp: 10,
	})
	ix.Apply(Fold{
		Identity:  "f::{x:2}",
		Function:  "f",
		Args:      map[string]any{"x": 2},
		FileName:  "a2",
		Timestamp: 20,
	})

	calls := ix.Calls["f"]
	require.Len(t, calls, 2, "calls for distinct argument sets collect under one function")
	assert.Equal(t, int64(10), calls[0].Timestamp)
	assert.Equal(t, int64(20), calls[1].Timestamp)
}
