package perq

import (
	"fmt"
	"math"
)

// sentinelUnset marks previousCheckedHead/previousCheckedTail as never
// having been set. It can only collide with a real ID when the queue has
// no prefix and uses the full width, in which case the only place this
// value is read back is the `== 0` check in recoverQueue, so the
// collision never changes behavior.
const sentinelUnset = math.MaxUint64

// corrector walks the ascending sequence of on-disk keys found during
// queue recovery and reconstructs where the logical head and tail must
// have been before a crash, distinguishing a torn-write gap (bounded by
// maxDiff, the configured max thread count) from the single legitimate
// wraparound gap from tail back to head.
type corrector struct {
	maxID   uint64
	maxDiff uint64

	isOverEnd bool
	head      uint64
	tail      uint64

	previousCheckedHead uint64
	previousCheckedTail uint64
}

// newCorrector constructs a corrector seeded with the first ID found on
// disk (head) under a keyspace capped at maxID, treating any gap larger
// than maxDiff consecutive IDs as the queue's wraparound point rather
// than a crash-torn write.
func newCorrector(head, maxID, maxDiff uint64) (*corrector, error) {
	if head > maxID {
		return nil, &MisuseError{Msg: "corrector: provided head ID is greater than the maximum ID"}
	}
	if maxDiff == 0 || maxDiff >= maxID {
		return nil, &MisuseError{Msg: "corrector: provided maximum difference is zero, or greater or equal to the maximum ID"}
	}
	return &corrector{
		maxID:               maxID,
		maxDiff:             maxDiff,
		head:                head,
		tail:                head,
		previousCheckedHead: sentinelUnset,
		previousCheckedTail: sentinelUnset,
	}, nil
}

func (c *corrector) Head() uint64                { return c.head }
func (c *corrector) Tail() uint64                { return c.tail }
func (c *corrector) PreviousCheckedHead() uint64 { return c.previousCheckedHead }
func (c *corrector) PreviousCheckedTail() uint64 { return c.previousCheckedTail }
func (c *corrector) IsOverEnd() bool             { return c.isOverEnd }
func (c *corrector) IsTailMax() bool             { return c.tail == c.maxID }

// SetTailToPrevious rewinds tail to the last tail value seen before the
// wraparound was detected. Valid only immediately after FeedNext has
// driven the corrector over the end with tail pinned at maxID, when the
// wrapped scan's next key is 0 and the head before wraparound was 0 —
// see the zero-crossing edge case in the queue's recovery walk.
func (c *corrector) SetTailToPrevious() error {
	if !c.IsOverEnd() || !c.IsTailMax() {
		return &MisuseError{Msg: "corrector: severe misuse of SetTailToPrevious"}
	}
	c.tail = c.previousCheckedTail
	return nil
}

// FeedNext advances the corrector with the next ascending ID found on
// disk, returning the ID the tail *should* be if the sequence is
// consecutive. If the returned value differs from id, the caller must
// shift the entry at id down to fill the gap.
func (c *corrector) FeedNext(id uint64) (uint64, error) {
	if id > c.maxID {
		return 0, &MisuseError{Msg: "corrector: severe misuse of FeedNext: the provided ID is greater than the maximum ID"}
	}

	if c.tail == c.maxID {
		if !c.isOverEnd {
			return 0, &MisuseError{Msg: "corrector: severe misuse of FeedNext: the queue is not over the end, but next ID passes the end"}
		}
		c.tail = 0
		return 0, nil
	}

	if id <= c.tail {
		return 0, &MisuseError{Msg: "corrector: severe misuse of FeedNext: the provided ID is less or equal than the tail"}
	}

	if id-c.tail <= c.maxDiff {
		c.tail++
		return c.tail, nil
	}

	// The head is ahead of the tail: the queue reached the maximum ID at
	// some point and its tail wrapped to 0. Reset head/tail to id and
	// resume correction from there.
	if c.isOverEnd {
		return 0, &MisuseError{Msg: "corrector: severe misuse of FeedNext: the queue is over the end for the second time"}
	}
	c.isOverEnd = true
	c.previousCheckedHead = c.head
	c.previousCheckedTail = c.tail
	c.head, c.tail = id, id
	return id, nil
}

func (c *corrector) String() string {
	return fmt.Sprintf("corrector{head=%d tail=%d overEnd=%v}", c.head, c.tail, c.isOverEnd)
}
