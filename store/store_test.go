package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

// every backend must behave identically under the adapter
func backends(t *testing.T) map[string]DocStore {
	t.Helper()
	b, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	return map[string]DocStore{
		"memory": NewMemory(),
		"badger": b,
		"sqlite": s,
	}
}

func TestEvalRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, docs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			db := New(docs)
			defer db.Close()

			_, ok, err := db.GetEval(ctx, 3, "[[0,3],[7,8],0]")
			require.NoError(t, err)
			assert.False(t, ok)

			// enumerated but unresolved: no value yet
			require.NoError(t, db.PutEval(ctx, 3, "[[0,3],[7,8],0]", EvalRecord{Depth: 20, Remain: 12}))
			rec, ok, err := db.GetEval(ctx, 3, "[[0,3],[7,8],0]")
			require.NoError(t, err)
			require.True(t, ok)
			assert.False(t, rec.HasValue)
			assert.Equal(t, 20, rec.Depth)
			assert.Equal(t, 12, rec.Remain)

			// resolving overwrites in place
			require.NoError(t, db.PutEval(ctx, 3, "[[0,3],[7,8],0]", Resolved(0, 20, 12)))
			rec, ok, err = db.GetEval(ctx, 3, "[[0,3],[7,8],0]")
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, rec.HasValue)
			assert.Equal(t, 0, rec.Value)

			// board sizes do not share a collection
			_, ok, err = db.GetEval(ctx, 4, "[[0,3],[7,8],0]")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBucketRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, docs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			db := New(docs)
			defer db.Close()

			_, ok, err := db.Bucket(ctx, 3, 5, 7)
			require.NoError(t, err)
			assert.False(t, ok)

			keys := []string{"[[3],[4],1]", "[[1],[4],0]", "[[2],[4],1]"}
			require.NoError(t, db.SetBucket(ctx, 3, 5, 7, keys))
			got, ok, err := db.Bucket(ctx, 3, 5, 7)
			require.NoError(t, err)
			require.True(t, ok)
			// stored sorted regardless of input order
			assert.Equal(t, []string{"[[1],[4],0]", "[[2],[4],1]", "[[3],[4],1]"}, got)

			// empty buckets are representable
			require.NoError(t, db.SetBucket(ctx, 3, 5, 8, nil))
			got, ok, err = db.Bucket(ctx, 3, 5, 8)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestBucketSharding(t *testing.T) {
	ctx := context.Background()
	docs := NewMemory()
	db := New(docs, WithShardThreshold(10))
	defer db.Close()

	keys := make([]string, 25)
	for i := range keys {
		keys[i] = fmt.Sprintf("[[%02d],[30],0]", i)
	}
	require.NoError(t, db.SetBucket(ctx, 4, 2, 9, keys))

	// parent marker plus shard documents, exactly as the wire schema
	// prescribes
	raw, ok, err := docs.Get(ctx, "depth_4", "d2r9")
	require.NoError(t, err)
	require.True(t, ok)
	var parent map[string]any
	require.NoError(t, json.Unmarshal(raw, &parent))
	assert.Equal(t, float64(1), parent["large"])
	assert.NotContains(t, parent, "key")

	for i := 0; i < 3; i++ {
		raw, ok, err := docs.Get(ctx, "depth_4", fmt.Sprintf("d2r9i%d", i))
		require.NoError(t, err)
		require.True(t, ok, "shard %d missing", i)
		var shard shardDoc
		require.NoError(t, json.Unmarshal(raw, &shard))
		assert.Equal(t, "d2r9", shard.DR)
		assert.Equal(t, i, shard.Index)
	}
	_, ok, err = docs.Get(ctx, "depth_4", "d2r9i3")
	require.NoError(t, err)
	assert.False(t, ok)

	// reassembly reproduces the unsharded list exactly
	got, ok, err := db.Bucket(ctx, 4, 2, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, keys, got) // input already sorted
}

func TestBucketWriteIdempotent(t *testing.T) {
	ctx := context.Background()
	docs := NewMemory()
	db := New(docs, WithShardThreshold(5))
	defer db.Close()

	keys := []string{"[[1],[4],0]", "[[2],[4],1]", "[[3],[4],1]"}
	require.NoError(t, db.SetBucket(ctx, 3, 1, 2, keys))
	first, _, err := docs.Get(ctx, "depth_3", "d1r2")
	require.NoError(t, err)
	require.NoError(t, db.SetBucket(ctx, 3, 1, 2, keys))
	second, _, err := docs.Get(ctx, "depth_3", "d1r2")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	for name, docs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			db := New(docs)
			defer db.Close()

			_, ok, err := db.RemainSummary(ctx, 3, 4)
			require.NoError(t, err)
			assert.False(t, ok)

			want := RemainSummary{Positions: 120, Win: 88, Unresolved: 2}
			require.NoError(t, db.SetRemainSummary(ctx, 3, 4, want))
			got, ok, err := db.RemainSummary(ctx, 3, 4)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, got)

			require.NoError(t, db.SetDepthTotal(ctx, 3, 17, 42))
			total, ok, err := db.DepthTotal(ctx, 3, 17)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 42, total)
		})
	}
}

func TestScanEvals(t *testing.T) {
	ctx := context.Background()
	docs := NewMemory()
	db := New(docs)
	defer db.Close()

	require.NoError(t, db.PutEval(ctx, 3, "[[1],[4],0]", Resolved(100, 3, 4)))
	require.NoError(t, db.PutEval(ctx, 3, "[[2],[4],1]", EvalRecord{Depth: 3, Remain: 4}))
	// summary docs share the collection but are not eval records
	require.NoError(t, db.SetRemainSummary(ctx, 3, 4, RemainSummary{Positions: 2}))

	seen := make(map[string]EvalRecord)
	require.NoError(t, db.ScanEvals(ctx, 3, func(key string, rec EvalRecord) error {
		seen[key] = rec
		return nil
	}))
	require.Len(t, seen, 2)
	assert.True(t, seen["[[1],[4],0]"].HasValue)
	assert.False(t, seen["[[2],[4],1]"].HasValue)
}
