// Package perq implements a persistent FIFO queue over an ordered
// key-value store. Every inserted value receives the next consecutive
// logical ID; IDs wrap modulo 2^(W-P) once the configured width and
// prefix are accounted for. A crash during concurrent insertion can
// leave gaps or break consecutive numbering; Open walks the on-disk key
// sequence once at startup and repairs it before the queue accepts any
// operation.
package perq

import (
	"errors"
	"fmt"
	"runtime"

	"sync/atomic"

	"github.com/rzbill/perq/internal/kvstore"
	"github.com/rzbill/perq/internal/namespace"
	"github.com/rzbill/perq/pkg/id"
	"github.com/rzbill/perq/pkg/log"
)

// yieldAfter is the number of busy-retry iterations an operation spins
// before voluntarily yielding the goroutine to let a contended peer make
// progress.
const yieldAfter = 10

// QueueSpec describes a queue's frozen shape: its key width, optional
// prefix reserving part of the keyspace for other queues sharing the
// same store, and the bound used to distinguish a crash-torn write gap
// from the queue's legitimate wraparound gap.
type QueueSpec struct {
	// Name keys this queue's shape record in the store. One Name maps to
	// one shape: opening an existing Name with a different prefix (or any
	// other shape field) fails with MisuseError. Two Names sharing a
	// prefix address the same keys, which is undefined behavior.
	Name string
	// Width is the on-disk key width: 16, 32, or 64 bits.
	Width Width
	// PrefixWidth reserves the top PrefixWidth bits of the key for
	// PrefixValue. Zero means no prefix.
	PrefixWidth int
	// PrefixValue is the fixed value stored in the top PrefixWidth bits.
	PrefixValue uint64
	// MaxThreadNumber bounds the largest gap between consecutive on-disk
	// IDs recovery will treat as a crash-torn write rather than the
	// queue's wraparound point. Zero selects DefaultMaxThreadNumber.
	MaxThreadNumber uint64
}

// DefaultMaxThreadNumber returns the default max-thread bound for a
// queue whose codec has the given maximum ID: 100000 if the ID space
// exceeds 100000, else 10000.
func DefaultMaxThreadNumber(maxID uint64) uint64 {
	if maxID > 100000 {
		return 100000
	}
	return 10000
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithLogger attaches a logger used only for diagnostic lines around
// recovery; the steady-state hot path never logs.
func WithLogger(logger log.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// Queue is a persistent FIFO queue over a kvstore.Store. The zero value
// is not usable; construct with Open.
type Queue struct {
	store kvstore.Store
	codec Codec
	spec  QueueSpec

	maxThreadNumber uint64

	head     atomic.Uint64
	nextTail atomic.Uint64

	stats Stats

	logger     log.Logger
	instanceID id.ID
}

// Open attaches a Queue to store under the given spec, recovering its
// head/tail position from the on-disk key sequence. Opening the same
// named queue a second time with a different Width/PrefixWidth/
// PrefixValue/MaxThreadNumber than it was first created with returns a
// MisuseError.
func Open(store kvstore.Store, spec QueueSpec, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, &MisuseError{Msg: "Open: store must not be nil"}
	}
	if spec.Name == "" {
		return nil, &MisuseError{Msg: "Open: spec.Name must not be empty"}
	}

	codec, err := NewCodec(spec.Width, spec.PrefixWidth, spec.PrefixValue)
	if err != nil {
		return nil, err
	}

	maxThreadNumber := spec.MaxThreadNumber
	if maxThreadNumber == 0 {
		maxThreadNumber = DefaultMaxThreadNumber(codec.MaxID())
	}
	if maxThreadNumber < 1 || maxThreadNumber >= codec.MaxID() {
		return nil, &MisuseError{Msg: fmt.Sprintf(
			"Open: max thread number (%d) must be in [1, %d)", maxThreadNumber, codec.MaxID())}
	}

	if _, err := namespace.EnsureQueueShape(store, spec.Name, namespace.QueueShape{
		Width:           int(spec.Width),
		PrefixWidth:     spec.PrefixWidth,
		PrefixValue:     spec.PrefixValue,
		MaxThreadNumber: maxThreadNumber,
	}); err != nil {
		var mismatch *namespace.ShapeMismatchError
		if errors.As(err, &mismatch) {
			return nil, &MisuseError{Msg: mismatch.Error()}
		}
		return nil, &StorageError{Op: "EnsureQueueShape", Err: err}
	}

	q := &Queue{
		store:           store,
		codec:           codec,
		spec:            spec,
		maxThreadNumber: maxThreadNumber,
		logger:          log.NewLogger(log.WithLevel(log.WarnLevel)),
		instanceID:      id.NewGenerator().Next(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.WithComponent("perq").WithField("queue", spec.Name).WithField("instance", q.instanceID.String())

	head, nextTail, err := recoverQueue(store, codec, maxThreadNumber, q.logger, &q.stats)
	if err != nil {
		return nil, err
	}
	q.head.Store(head)
	q.nextTail.Store(nextTail)

	if q.Size() > q.maxSize() {
		return nil, &CorruptionError{Msg: "Open: queue is too full, cannot safely operate"}
	}

	q.logger.Debug("queue opened", log.F("head", head), log.F("nextTail", nextTail))
	return q, nil
}

// maxSize is the bound the queue's size stays strictly below: Push
// refuses once size+1 reaches it, so at most maxSize-1 items are held,
// leaving more than MaxThreadNumber IDs free so an in-flight batch of
// concurrent pushes can never wrap the tail all the way back onto the
// head.
func (q *Queue) maxSize() uint64 {
	return q.codec.MaxID() - q.maxThreadNumber + 1
}

// Stats returns the queue's diagnostic counters.
func (q *Queue) Stats() Snapshot { return q.stats.Snapshot() }

// Size returns the current number of items in the queue.
func (q *Queue) Size() uint64 {
	head := q.head.Load()
	nextTail := q.nextTail.Load()
	if nextTail < head {
		return (q.codec.MaxID() - head + 1) + nextTail
	}
	return nextTail - head
}

// Top returns the value at the head of the queue without removing it,
// or (nil, false) if the queue is empty. Panics if the store reports
// anything other than ErrNotFound.
func (q *Queue) Top() ([]byte, bool) {
	var local localStats
	count := 0

	for {
		head := q.head.Load()
		if head == q.nextTail.Load() {
			q.stats.mergeTop(local)
			return nil, false
		}

		if count == yieldAfter {
			local.yieldCount++
			count = 0
			runtime.Gosched()
		}
		count++

		key := q.codec.ToKey(head)
		val, err := q.store.Get(key)
		if errors.Is(err, kvstore.ErrNotFound) {
			local.getMissCount++
			continue
		}
		if err != nil {
			panic(&StorageError{Op: "Get", Err: err})
		}

		q.stats.mergeTop(local)
		return val, true
	}
}

// Pop removes the value at the head of the queue, returning false if the
// queue is empty. Panics if the store reports anything other than
// ErrNotFound.
func (q *Queue) Pop() bool {
	_, ok := q.popOrPoll(false)
	return ok
}

// Poll removes and returns the value at the head of the queue, or
// (nil, false) if the queue is empty. Panics if the store reports
// anything other than ErrNotFound.
func (q *Queue) Poll() ([]byte, bool) {
	return q.popOrPoll(true)
}

func (q *Queue) popOrPoll(wantValue bool) ([]byte, bool) {
	var local localStats
	count := 0

	head := q.head.Load()

	var key []byte
	var val []byte

	for {
		local.casRepetitionCount++

		if head == q.nextTail.Load() {
			if wantValue {
				q.stats.mergePoll(local)
			} else {
				q.stats.mergePop(local)
			}
			return nil, false
		}

		if count == yieldAfter {
			local.yieldCount++
			count = 0
			runtime.Gosched()
		}
		count++

		var newHead uint64
		if head == q.codec.MaxID() {
			newHead = 0
		} else {
			newHead = head + 1
		}

		key = q.codec.ToKey(head)
		val = nil
		v, err := q.store.Get(key)
		if errors.Is(err, kvstore.ErrNotFound) {
			// A concurrent Push claimed this slot but has not written
			// its value yet, or a concurrent Pop/Poll already deleted
			// it and advanced head. Reload head and retry the read;
			// never advance past a slot whose write is still in flight.
			local.getMissCount++
			head = q.head.Load()
			continue
		}
		if err != nil {
			panic(&StorageError{Op: "Get", Err: err})
		}
		val = v

		if q.head.CompareAndSwap(head, newHead) {
			break
		}
		head = q.head.Load()
	}

	if err := q.store.Delete(key); err != nil {
		panic(&StorageError{Op: "Delete", Err: err})
	}

	if wantValue {
		q.stats.mergePoll(local)
		return val, true
	}
	q.stats.mergePop(local)
	return nil, true
}

// Push appends value to the tail of the queue, returning false if the
// queue is full. Panics if the store reports a write failure.
func (q *Queue) Push(value []byte) bool {
	var local localStats
	count := 0

	nextTail := q.nextTail.Load()

	for {
		local.casRepetitionCount++

		if count == yieldAfter {
			local.yieldCount++
			count = 0
			runtime.Gosched()
		}
		count++

		var newNextTail uint64
		if nextTail == q.codec.MaxID() {
			newNextTail = 0
		} else {
			newNextTail = nextTail + 1
		}

		head := q.head.Load()

		var size uint64
		if nextTail < head {
			size = (q.codec.MaxID() - head + 1) + nextTail
		} else {
			size = nextTail - head
		}

		if size+1 >= q.maxSize() {
			q.stats.mergePush(local)
			return false
		}

		if q.nextTail.CompareAndSwap(nextTail, newNextTail) {
			break
		}
		nextTail = q.nextTail.Load()
	}

	key := q.codec.ToKey(nextTail)
	if err := q.store.Set(key, value); err != nil {
		panic(&StorageError{Op: "Set", Err: err})
	}

	q.stats.mergePush(local)
	return true
}
