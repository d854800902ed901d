package perq

import (
	"errors"
	"testing"
)

func TestCorrectorHappyPath(t *testing.T) {
	c, err := newCorrector(0, 255, 50)
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}
	for i := uint64(1); i <= 255; i++ {
		tail, err := c.FeedNext(i)
		if err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
		if tail != i {
			t.Fatalf("FeedNext(%d) = %d, want %d", i, tail, i)
		}
		if c.IsOverEnd() {
			t.Fatalf("IsOverEnd() true after feeding %d, want false", i)
		}
	}

	if _, err := c.FeedNext(256); err == nil {
		t.Fatalf("expected MisuseError feeding an ID beyond maxID")
	} else {
		var misuse *MisuseError
		if !errors.As(err, &misuse) {
			t.Fatalf("expected MisuseError, got %T: %v", err, err)
		}
	}
}

func TestCorrectorFeedPastTailAtMaxWithoutOverEndFails(t *testing.T) {
	c, err := newCorrector(0, 255, 50)
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}
	for i := uint64(1); i <= 255; i++ {
		if _, err := c.FeedNext(i); err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
	}
	// tail == maxID and isOverEnd is still false: any further feed must
	// fail, since the caller has violated walk discipline.
	if _, err := c.FeedNext(1); err == nil {
		t.Fatalf("expected MisuseError: not over the end")
	}
}

func TestCorrectorWraparound(t *testing.T) {
	c, err := newCorrector(0, 255, 50)
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}

	for i := uint64(1); i < 20; i++ {
		if _, err := c.FeedNext(i); err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
	}

	for i := uint64(70); i <= 255; i++ {
		tail, err := c.FeedNext(i)
		if err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
		if i == 70 {
			if !c.IsOverEnd() {
				t.Fatalf("expected IsOverEnd() true after crossing the gap at 70")
			}
			if c.Head() != 70 || c.Tail() != 70 {
				t.Fatalf("expected head=tail=70, got head=%d tail=%d", c.Head(), c.Tail())
			}
		} else if tail != i {
			t.Fatalf("FeedNext(%d) = %d, want %d", i, tail, i)
		}
	}

	if !c.IsTailMax() {
		t.Fatalf("expected tail == maxID after feeding up to 255")
	}

	// tail == maxID: the next FeedNext rolls the walk back to key 0.
	next, err := c.FeedNext(0)
	if err != nil {
		t.Fatalf("FeedNext(0): %v", err)
	}
	if next != 0 {
		t.Fatalf("FeedNext after reaching maxID = %d, want 0", next)
	}

	for i := uint64(1); i < 20; i++ {
		tail, err := c.FeedNext(i)
		if err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
		if tail != i {
			t.Fatalf("FeedNext(%d) = %d, want %d", i, tail, i)
		}
	}
	if c.Tail() != 19 {
		t.Fatalf("tail = %d, want 19", c.Tail())
	}

	if _, err := c.FeedNext(70); err == nil {
		t.Fatalf("expected MisuseError: over the end for the second time")
	}
}

func TestCorrectorSetTailToPreviousZeroCrossing(t *testing.T) {
	c, err := newCorrector(0, 255, 50)
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}
	for i := uint64(1); i < 20; i++ {
		if _, err := c.FeedNext(i); err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
	}
	for i := uint64(70); i <= 255; i++ {
		if _, err := c.FeedNext(i); err != nil {
			t.Fatalf("FeedNext(%d): %v", i, err)
		}
	}
	if c.PreviousCheckedHead() != 0 || c.PreviousCheckedTail() != 19 {
		t.Fatalf("previousChecked = (%d, %d), want (0, 19)", c.PreviousCheckedHead(), c.PreviousCheckedTail())
	}

	// The edge case: the wrapped scan's first key is exactly 0, and the
	// head before wraparound was 0 too. SetTailToPrevious reverts tail
	// from maxID to the tail observed just before wraparound (19 in this
	// scenario).
	if err := c.SetTailToPrevious(); err != nil {
		t.Fatalf("SetTailToPrevious: %v", err)
	}
	if c.Tail() != 19 {
		t.Fatalf("Tail() after SetTailToPrevious = %d, want 19", c.Tail())
	}
}

func TestCorrectorConstructionRejectsBadParams(t *testing.T) {
	if _, err := newCorrector(300, 255, 50); err == nil {
		t.Fatalf("expected error: head greater than maxID")
	}
	if _, err := newCorrector(0, 255, 0); err == nil {
		t.Fatalf("expected error: maxDiff == 0")
	}
	if _, err := newCorrector(0, 255, 255); err == nil {
		t.Fatalf("expected error: maxDiff >= maxID")
	}
}

func TestCorrectorFeedNonIncreasingFails(t *testing.T) {
	c, err := newCorrector(5, 255, 50)
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}
	if _, err := c.FeedNext(5); err == nil {
		t.Fatalf("expected error feeding id == tail")
	}
	if _, err := c.FeedNext(4); err == nil {
		t.Fatalf("expected error feeding id < tail")
	}
}

func TestCorrectorSetTailToPreviousMisuse(t *testing.T) {
	c, err := newCorrector(0, 255, 50)
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}
	if err := c.SetTailToPrevious(); err == nil {
		t.Fatalf("expected misuse error calling SetTailToPrevious before any wraparound")
	}
}
