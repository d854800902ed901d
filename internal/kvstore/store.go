// Package kvstore defines the minimal ordered key-value contract that the
// perq queue engine depends on, so it never imports a concrete storage
// engine directly. internal/storage/pebble and internal/storage/badger
// each provide a Store implementation over a real embedded engine.
package kvstore

import "errors"

// ErrNotFound is returned by Get when the key does not exist. Backends
// normalize their own engine-specific not-found error to this sentinel
// before returning, so callers can use errors.Is(err, kvstore.ErrNotFound)
// regardless of which backend is in use.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is an ordered byte-key/byte-value store with batch and forward
// iteration support. Keys compare lexicographically; iteration visits
// keys in ascending order.
type Store interface {
	// Get returns a copy of the value for key, or ErrNotFound if absent.
	Get(key []byte) ([]byte, error)

	// Set writes key/value without forcing a durability sync.
	Set(key, value []byte) error

	// SetSync writes key/value and blocks until it is durable.
	SetSync(key, value []byte) error

	// Delete removes key without forcing a durability sync.
	Delete(key []byte) error

	// NewBatch returns an empty Batch for atomic multi-key writes.
	NewBatch() Batch

	// NewIter returns an Iterator bounded to [lower, upper). A nil bound
	// is unbounded on that side.
	NewIter(lower, upper []byte) (Iterator, error)
}

// Batch groups Set/Delete operations for atomic, single-fsync commit.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	// Commit applies the batch. sync forces the write durable before
	// returning.
	Commit(sync bool) error
	// Len reports the number of operations recorded in the batch.
	Len() int
	Close() error
}

// Iterator walks a key range in ascending order.
type Iterator interface {
	// SeekGE positions the iterator at the first key >= key, returning
	// whether such a key exists within the bounds.
	SeekGE(key []byte) bool
	// First positions the iterator at the first key within the bounds.
	First() bool
	// Valid reports whether the iterator is positioned on a valid entry.
	Valid() bool
	// Next advances to the next key, returning whether it is valid.
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}
