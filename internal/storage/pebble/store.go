package pebblestore

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/perq/internal/kvstore"
)

// AsStore adapts db to the kvstore.Store contract so the queue engine can
// run directly against it without importing Pebble.
func AsStore(db *DB) kvstore.Store { return storeAdapter{db} }

type storeAdapter struct{ db *DB }

func (s storeAdapter) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, kvstore.ErrNotFound
	}
	return v, err
}

func (s storeAdapter) Set(key, value []byte) error     { return s.db.Set(key, value) }
func (s storeAdapter) SetSync(key, value []byte) error { return s.db.SetSync(key, value) }
func (s storeAdapter) Delete(key []byte) error         { return s.db.Delete(key) }

func (s storeAdapter) NewBatch() kvstore.Batch { return &batchAdapter{b: s.db.inner.NewBatch()} }

func (s storeAdapter) NewIter(lower, upper []byte) (kvstore.Iterator, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	return &iterAdapter{it: it}, nil
}

type batchAdapter struct {
	b *pebble.Batch
}

func (b *batchAdapter) Set(key, value []byte) error { return b.b.Set(key, value, nil) }
func (b *batchAdapter) Delete(key []byte) error     { return b.b.Delete(key, nil) }
func (b *batchAdapter) Len() int                    { return b.b.Len() }
func (b *batchAdapter) Close() error                { return b.b.Close() }

func (b *batchAdapter) Commit(sync bool) error {
	mode := pebble.NoSync
	if sync {
		mode = pebble.Sync
	}
	return b.b.Commit(mode)
}

type iterAdapter struct {
	it *pebble.Iterator
}

func (i *iterAdapter) SeekGE(key []byte) bool { return i.it.SeekGE(key) }
func (i *iterAdapter) First() bool            { return i.it.First() }
func (i *iterAdapter) Valid() bool            { return i.it.Valid() }
func (i *iterAdapter) Next() bool             { return i.it.Next() }
func (i *iterAdapter) Key() []byte            { return i.it.Key() }
func (i *iterAdapter) Value() []byte          { return i.it.Value() }
func (i *iterAdapter) Error() error           { return i.it.Error() }
func (i *iterAdapter) Close() error           { return i.it.Close() }
