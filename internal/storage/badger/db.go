// Package badgerstore wraps BadgerDB as a second embedded engine for perq,
// exposing the same kvstore.Store contract the Pebble backend implements.
package badgerstore

import (
	"bytes"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/rzbill/perq/internal/kvstore"
)

// Options configures the Badger store.
type Options struct {
	// DataDir is the path to the Badger database directory.
	DataDir string
	// SyncWrites, if true, makes every non-sync write durable too (Badger
	// has no per-call sync flag at the transaction level below the value
	// log; this mirrors that by disabling Badger's own write batching).
	SyncWrites bool
}

// DB wraps a Badger database instance.
type DB struct {
	inner *badger.DB
}

// Open creates or opens a Badger database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("badgerstore: Options.DataDir is required")
	}
	bo := badger.DefaultOptions(opts.DataDir).WithSyncWrites(opts.SyncWrites)
	inner, err := badger.Open(bo)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner}, nil
}

// Close closes the Badger database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// AsStore adapts db to the kvstore.Store contract.
func (db *DB) AsStore() kvstore.Store { return storeAdapter{db} }

type storeAdapter struct{ db *DB }

func (s storeAdapter) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.inner.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kvstore.ErrNotFound
	}
	return out, err
}

func (s storeAdapter) Set(key, value []byte) error {
	return s.db.inner.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// SetSync writes key/value transactionally and then forces the value log
// and LSM manifest to flush, giving this write the same "survives a
// crash" guarantee the Pebble backend's pebble.Sync gives a committed
// batch, independent of the store's SyncWrites option.
func (s storeAdapter) SetSync(key, value []byte) error {
	if err := s.Set(key, value); err != nil {
		return err
	}
	return s.db.inner.Sync()
}

func (s storeAdapter) Delete(key []byte) error {
	return s.db.inner.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s storeAdapter) NewBatch() kvstore.Batch {
	return &batchAdapter{db: s.db, wb: s.db.inner.NewWriteBatch()}
}

func (s storeAdapter) NewIter(lower, upper []byte) (kvstore.Iterator, error) {
	txn := s.db.inner.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = nil
	it := txn.NewIterator(opts)
	return &iterAdapter{txn: txn, it: it, lower: lower, upper: upper}, nil
}

// batchAdapter commits through a badger.WriteBatch, which always commits
// durably per Badger's own policy (it flushes through the same value-log
// write path as a transaction commit); sync=true additionally forces a
// manifest sync, matching Pebble's pebble.Sync.
type batchAdapter struct {
	db  *DB
	wb  *badger.WriteBatch
	ops int
}

func (b *batchAdapter) Set(key, value []byte) error {
	b.ops++
	return b.wb.Set(key, value)
}

func (b *batchAdapter) Delete(key []byte) error {
	b.ops++
	return b.wb.Delete(key)
}

func (b *batchAdapter) Len() int { return b.ops }

func (b *batchAdapter) Commit(sync bool) error {
	if err := b.wb.Flush(); err != nil {
		return err
	}
	if sync {
		return b.db.inner.Sync()
	}
	return nil
}

func (b *batchAdapter) Close() error {
	b.wb.Cancel()
	return nil
}

type iterAdapter struct {
	txn        *badger.Txn
	it         *badger.Iterator
	lower      []byte
	upper      []byte
	started    bool
}

func (i *iterAdapter) withinUpper() bool {
	if i.upper == nil || !i.it.Valid() {
		return i.it.Valid()
	}
	return bytes.Compare(i.it.Item().Key(), i.upper) < 0
}

func (i *iterAdapter) SeekGE(key []byte) bool {
	if i.lower != nil && bytes.Compare(key, i.lower) < 0 {
		key = i.lower
	}
	i.started = true
	i.it.Seek(key)
	return i.withinUpper()
}

func (i *iterAdapter) First() bool {
	if i.lower != nil {
		return i.SeekGE(i.lower)
	}
	i.started = true
	i.it.Rewind()
	return i.withinUpper()
}

func (i *iterAdapter) Valid() bool {
	return i.started && i.withinUpper()
}

func (i *iterAdapter) Next() bool {
	i.it.Next()
	return i.withinUpper()
}

func (i *iterAdapter) Key() []byte { return i.it.Item().KeyCopy(nil) }

func (i *iterAdapter) Value() []byte {
	v, err := i.it.Item().ValueCopy(nil)
	if err != nil {
		return nil
	}
	return v
}

func (i *iterAdapter) Error() error { return nil }

func (i *iterAdapter) Close() error {
	i.it.Close()
	i.txn.Discard()
	return nil
}
