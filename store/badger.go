package store

import (
	"context"
	"errors"
	"fmt"

	retry "github.com/avast/retry-go/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// Badger is a DocStore backed by an embedded badger database.
// Collections become key prefixes, so one database holds the eval and
// bucket collections of every board size.
type Badger struct {
	db *badger.DB
}

// BadgerConfig holds the options the adapter cares about.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM; used in tests.
	InMemory bool
	// SyncWrites trades throughput for durability. Long builds run with
	// it off and rely on the resumable bucket structure instead.
	SyncWrites bool
}

// OpenBadger opens (creating if needed) a badger-backed DocStore.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger: path is required for a persistent database")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", ErrUnavailable, err)
	}
	log.Debug().Str("path", cfg.Path).Bool("in-memory", cfg.InMemory).Msg("badger-opened")
	return &Badger{db: db}, nil
}

func badgerKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func (b *Badger) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	var doc []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, id))
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: badger get %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return doc, true, nil
}

// Put retries transaction conflicts; the builder may write records for
// the same cohort from several goroutines.
func (b *Badger) Put(ctx context.Context, collection, id string, doc []byte) error {
	err := retry.Do(
		func() error {
			return b.db.Update(func(txn *badger.Txn) error {
				return txn.Set(badgerKey(collection, id), doc)
			})
		},
		retry.RetryIf(func(err error) bool { return errors.Is(err, badger.ErrConflict) }),
		retry.Attempts(5),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: badger put %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (b *Badger) Delete(ctx context.Context, collection, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(collection, id))
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (b *Badger) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	prefix := []byte(collection + "/")
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			doc, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(id, doc); err != nil {
				return err
			}
		}
		return nil
	})
	// fn errors pass through unchanged so callers can match on their
	// own sentinels.
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}
