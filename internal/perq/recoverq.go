package perq

import (
	"fmt"

	"github.com/rzbill/perq/internal/kvstore"
	"github.com/rzbill/perq/internal/namespace"
	"github.com/rzbill/perq/pkg/log"
)

// recoverQueue walks the on-disk key sequence within [codec.ToKey(0),
// codec.ToKey(maxID)] and reconstructs the head/next_tail position a
// freshly-initialized in-memory queue must start from, repairing any
// crash-torn gap it finds along the way.
func recoverQueue(store kvstore.Store, codec Codec, maxThreadNumber uint64, logger log.Logger, stats *Stats) (head, nextTail uint64, err error) {
	lowerKey := codec.ToKey(0)
	upperKeyExclusive, overflowed := incrementKey(codec.ToKey(codec.MaxID()))
	var upperBound []byte
	if !overflowed {
		upperBound = upperKeyExclusive
	}

	it, err := store.NewIter(lowerKey, upperBound)
	if err != nil {
		return 0, 0, &StorageError{Op: "NewIter", Err: err}
	}
	defer func() { _ = it.Close() }()

	it.SeekGE(lowerKey)
	// A queue without a prefix spans the whole store keyspace, so the
	// walk can run into the registry's shape records; those are not
	// queue entries and must not be fed to the corrector.
	for it.Valid() && namespace.IsShapeKey(it.Key()) {
		it.Next()
	}
	if !it.Valid() {
		if it.Error() != nil {
			return 0, 0, &StorageError{Op: "Iterator.SeekGE", Err: it.Error()}
		}
		// Queue is empty.
		return 0, 0, nil
	}

	firstKey := append([]byte(nil), it.Key()...)
	firstID, err := codec.ToID(firstKey)
	if err != nil {
		return 0, 0, err
	}

	c, err := newCorrector(firstID, codec.MaxID(), maxThreadNumber)
	if err != nil {
		return 0, 0, err
	}

	for it.Next(); ; {
		if !it.Valid() {
			if it.Error() != nil {
				return 0, 0, &StorageError{Op: "Iterator.Next", Err: it.Error()}
			}
			if !c.IsOverEnd() {
				break
			}
			if !it.SeekGE(lowerKey) {
				return 0, 0, &CorruptionError{Msg: "recovery: failed to seek a key that must exist at wraparound"}
			}
		}

		key := it.Key()
		if namespace.IsShapeKey(key) {
			it.Next()
			continue
		}
		if len(key) != codec.KeyLen() {
			return 0, 0, &CorruptionError{Msg: fmt.Sprintf(
				"recovery: found key size %d != expected key size %d", len(key), codec.KeyLen())}
		}
		id, err := codec.ToID(key)
		if err != nil {
			return 0, 0, err
		}

		if id == c.Head() {
			if !c.IsOverEnd() {
				return 0, 0, &CorruptionError{Msg: "recovery: tail reached the queue's head while not over the end"}
			}
			break
		}

		if c.IsOverEnd() && c.IsTailMax() && id == 0 && c.PreviousCheckedHead() == 0 {
			if err := c.SetTailToPrevious(); err != nil {
				return 0, 0, err
			}
			break
		}

		next, err := c.FeedNext(id)
		if err != nil {
			return 0, 0, err
		}

		if id != next {
			logger.Debug("recovery: shifting entry to fill gap", log.F("from", id), log.F("to", next))
			if err := shiftUp(store, codec, id, next); err != nil {
				return 0, 0, err
			}
			stats.incShiftUp()
			// The open iterator reads from a view taken before the
			// shift; reopen it so the re-seek lands on the moved entry.
			_ = it.Close()
			it, err = store.NewIter(lowerKey, upperBound)
			if err != nil {
				return 0, 0, &StorageError{Op: "NewIter", Err: err}
			}
			if !it.SeekGE(codec.ToKey(next)) {
				return 0, 0, &CorruptionError{Msg: "recovery: failed to seek a key that must exist after shift-up"}
			}
		}

		it.Next()
	}

	head = c.Head()
	if c.IsTailMax() {
		nextTail = 0
	} else {
		nextTail = c.Tail() + 1
	}
	return head, nextTail, nil
}

// shiftUp moves the value stored at fromID's key down to toID's key,
// synchronously, so the move itself survives a second crash mid-recovery.
func shiftUp(store kvstore.Store, codec Codec, fromID, toID uint64) error {
	fromKey := codec.ToKey(fromID)
	toKey := codec.ToKey(toID)

	value, err := store.Get(fromKey)
	if err != nil {
		return &StorageError{Op: "Get", Err: err}
	}

	batch := store.NewBatch()
	defer batch.Close()
	if err := batch.Delete(fromKey); err != nil {
		return &StorageError{Op: "Batch.Delete", Err: err}
	}
	if err := batch.Set(toKey, value); err != nil {
		return &StorageError{Op: "Batch.Set", Err: err}
	}
	if err := batch.Commit(true); err != nil {
		return &StorageError{Op: "Batch.Commit", Err: err}
	}
	return nil
}

// incrementKey returns the lexicographically next big-endian fixed-width
// key after key, or (nil, true) if key is already the maximum
// representable value of its width (all 0xFF bytes).
func incrementKey(key []byte) ([]byte, bool) {
	out := append([]byte(nil), key...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out, false
		}
		out[i] = 0
	}
	return nil, true
}
