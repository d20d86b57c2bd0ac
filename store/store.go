// Package store persists exact evaluation records and the depth/remain
// bucket index for a board size. The domain schema (collections,
// document ids, sharding of oversized buckets) lives in DB; the actual
// document storage is behind the DocStore interface, with embedded
// badger, sqlite, and in-memory backends provided.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ErrUnavailable wraps backend I/O failures (closed database, busy
// connection, timeout). Callers at computation levels that permit it
// fall back to the evalmap-only path; level 4 surfaces it.
var ErrUnavailable = errors.New("store unavailable")

// DefaultShardThreshold is the bucket cardinality above which a member
// list is split into shard documents. The value keeps each document
// comfortably under typical document-store size ceilings.
const DefaultShardThreshold = 300000

// DocStore is the minimal document-store contract the adapter needs:
// JSON documents addressed by (collection, id). Implementations must be
// safe for concurrent use.
type DocStore interface {
	Get(ctx context.Context, collection, id string) ([]byte, bool, error)
	Put(ctx context.Context, collection, id string, doc []byte) error
	Delete(ctx context.Context, collection, id string) error
	// Scan visits every document of a collection in ascending id order.
	Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error
	Close() error
}

// EvalRecord is the persisted evaluation of one position. A record may
// exist before its value is known: the builder enumerates positions
// into (depth, remain) buckets first and resolves them later.
type EvalRecord struct {
	Value    int
	HasValue bool
	Depth    int
	Remain   int
}

// Resolved is a convenience constructor for a record with a value.
func Resolved(value, depth, remain int) EvalRecord {
	return EvalRecord{Value: value, HasValue: true, Depth: depth, Remain: remain}
}

// RemainSummary aggregates a finished remain cohort for status
// reporting and build resumption.
type RemainSummary struct {
	Positions  int `json:"positions"`
	Win        int `json:"win"`
	Unresolved int `json:"unresolved,omitempty"`
}

type evalDoc struct {
	Value  *int `json:"value,omitempty"`
	Depth  int  `json:"depth"`
	Remain int  `json:"remain"`
}

type bucketDoc struct {
	Key   []string `json:"key,omitempty"`
	Large int      `json:"large,omitempty"`
}

type shardDoc struct {
	DR    string   `json:"dr"`
	Index int      `json:"index"`
	Key   []string `json:"key"`
}

type depthTotalDoc struct {
	Positions int `json:"positions"`
}

// DB is the persistent store adapter: one evaluation collection and one
// bucket-index collection per board size, on top of any DocStore.
type DB struct {
	docs           DocStore
	shardThreshold int
}

// Option configures a DB.
type Option func(*DB)

// WithShardThreshold overrides the bucket size above which member
// lists are sharded.
func WithShardThreshold(threshold int) Option {
	return func(d *DB) {
		if threshold > 0 {
			d.shardThreshold = threshold
		}
	}
}

// New wraps a DocStore in the domain schema.
func New(docs DocStore, opts ...Option) *DB {
	d := &DB{docs: docs, shardThreshold: DefaultShardThreshold}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DB) Close() error {
	return d.docs.Close()
}

func evalCollection(n int) string {
	return fmt.Sprintf("eval_%d", n)
}

func depthCollection(n int) string {
	return fmt.Sprintf("depth_%d", n)
}

func bucketID(depth, remain int) string {
	return fmt.Sprintf("d%dr%d", depth, remain)
}

func shardID(depth, remain, index int) string {
	return fmt.Sprintf("d%dr%di%d", depth, remain, index)
}

// GetEval looks up the evaluation record for a canonical position key.
func (d *DB) GetEval(ctx context.Context, n int, key string) (EvalRecord, bool, error) {
	raw, ok, err := d.docs.Get(ctx, evalCollection(n), key)
	if err != nil || !ok {
		return EvalRecord{}, false, err
	}
	var doc evalDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return EvalRecord{}, false, fmt.Errorf("eval doc %q: %w", key, err)
	}
	rec := EvalRecord{Depth: doc.Depth, Remain: doc.Remain}
	if doc.Value != nil {
		rec.Value = *doc.Value
		rec.HasValue = true
	}
	return rec, true, nil
}

// PutEval writes the evaluation record for a canonical position key.
// Writes are idempotent; the same record may be written any number of
// times.
func (d *DB) PutEval(ctx context.Context, n int, key string, rec EvalRecord) error {
	doc := evalDoc{Depth: rec.Depth, Remain: rec.Remain}
	if rec.HasValue {
		v := rec.Value
		doc.Value = &v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return d.docs.Put(ctx, evalCollection(n), key, raw)
}

// ScanEvals visits every evaluation record for board size n. Summary
// documents ("r{remain}") share the collection and are skipped; only
// canonical position keys are visited.
func (d *DB) ScanEvals(ctx context.Context, n int, fn func(key string, rec EvalRecord) error) error {
	return d.docs.Scan(ctx, evalCollection(n), func(id string, raw []byte) error {
		if len(id) == 0 || id[0] != '[' {
			return nil
		}
		var doc evalDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("eval doc %q: %w", id, err)
		}
		rec := EvalRecord{Depth: doc.Depth, Remain: doc.Remain}
		if doc.Value != nil {
			rec.Value = *doc.Value
			rec.HasValue = true
		}
		return fn(id, rec)
	})
}

// SetBucket stores the member key list of a (depth, remain) bucket.
// The list is sorted before writing so that re-running a build step
// produces byte-identical documents. Lists longer than the shard
// threshold are stored as indexed shard documents followed by a parent
// marker; the marker is written last so a partially written bucket is
// never visible as complete.
func (d *DB) SetBucket(ctx context.Context, n, depth, remain int, keys []string) error {
	coll := depthCollection(n)
	id := bucketID(depth, remain)
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	if len(sorted) < d.shardThreshold {
		raw, err := json.Marshal(bucketDoc{Key: sorted})
		if err != nil {
			return err
		}
		return d.docs.Put(ctx, coll, id, raw)
	}

	shards := lo.Chunk(sorted, d.shardThreshold)
	for i, shard := range shards {
		raw, err := json.Marshal(shardDoc{DR: id, Index: i, Key: shard})
		if err != nil {
			return err
		}
		if err := d.docs.Put(ctx, coll, shardID(depth, remain, i), raw); err != nil {
			return err
		}
	}
	log.Debug().Str("bucket", id).Int("shards", len(shards)).Int("keys", len(sorted)).
		Msg("sharded-bucket-written")
	raw, err := json.Marshal(bucketDoc{Large: 1})
	if err != nil {
		return err
	}
	return d.docs.Put(ctx, coll, id, raw)
}

// Bucket returns the full, ordered member list of a (depth, remain)
// bucket, reassembling shard documents in index order when the bucket
// was stored large. The second return is false when the bucket has
// never been written.
func (d *DB) Bucket(ctx context.Context, n, depth, remain int) ([]string, bool, error) {
	coll := depthCollection(n)
	id := bucketID(depth, remain)
	raw, ok, err := d.docs.Get(ctx, coll, id)
	if err != nil || !ok {
		return nil, false, err
	}
	var doc bucketDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("bucket doc %q: %w", id, err)
	}
	if doc.Large == 0 {
		return doc.Key, true, nil
	}
	var keys []string
	for i := 0; ; i++ {
		raw, ok, err := d.docs.Get(ctx, coll, shardID(depth, remain, i))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		var shard shardDoc
		if err := json.Unmarshal(raw, &shard); err != nil {
			return nil, false, fmt.Errorf("bucket shard %q: %w", shardID(depth, remain, i), err)
		}
		if shard.DR != id || shard.Index != i {
			return nil, false, fmt.Errorf("bucket shard %q: inconsistent parent %q index %d",
				shardID(depth, remain, i), shard.DR, shard.Index)
		}
		keys = append(keys, shard.Key...)
	}
	return keys, true, nil
}

// SetRemainSummary records the aggregate counts of a completed remain
// cohort under the id "r{remain}".
func (d *DB) SetRemainSummary(ctx context.Context, n, remain int, s RemainSummary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return d.docs.Put(ctx, evalCollection(n), fmt.Sprintf("r%d", remain), raw)
}

// RemainSummary returns the summary for a remain cohort if it has been
// completed; a present summary is what makes a build resumable past
// that cohort.
func (d *DB) RemainSummary(ctx context.Context, n, remain int) (RemainSummary, bool, error) {
	raw, ok, err := d.docs.Get(ctx, evalCollection(n), fmt.Sprintf("r%d", remain))
	if err != nil || !ok {
		return RemainSummary{}, false, err
	}
	var s RemainSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return RemainSummary{}, false, err
	}
	return s, true, nil
}

// SetDepthTotal stores the position count of one whole depth layer
// under the id "d{depth}" in the bucket collection.
func (d *DB) SetDepthTotal(ctx context.Context, n, depth, positions int) error {
	raw, err := json.Marshal(depthTotalDoc{Positions: positions})
	if err != nil {
		return err
	}
	return d.docs.Put(ctx, depthCollection(n), fmt.Sprintf("d%d", depth), raw)
}

// DepthTotal returns the stored position count for one depth layer.
func (d *DB) DepthTotal(ctx context.Context, n, depth int) (int, bool, error) {
	raw, ok, err := d.docs.Get(ctx, depthCollection(n), fmt.Sprintf("d%d", depth))
	if err != nil || !ok {
		return 0, false, err
	}
	var doc depthTotalDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, false, err
	}
	return doc.Positions, true, nil
}
