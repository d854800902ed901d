package namespace

import (
	"errors"
	"testing"

	pebblestore "github.com/rzbill/perq/internal/storage/pebble"
)

func openTestStore(t *testing.T) pebblestore.Options {
	t.Helper()
	dir := t.TempDir()
	return pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways}
}

func TestEnsureQueueShapeIdempotent(t *testing.T) {
	db, err := pebblestore.Open(openTestStore(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := pebblestore.AsStore(db)

	want := QueueShape{Width: 32, PrefixWidth: 8, PrefixValue: 3, MaxThreadNumber: 64}

	s1, err := EnsureQueueShape(store, "orders", want)
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	s2, err := EnsureQueueShape(store, "orders", want)
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if s1.CreatedAtMs != s2.CreatedAtMs {
		t.Fatalf("not idempotent: %+v vs %+v", s1, s2)
	}
}

func TestEnsureQueueShapeMismatch(t *testing.T) {
	db, err := pebblestore.Open(openTestStore(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := pebblestore.AsStore(db)

	first := QueueShape{Width: 32, PrefixWidth: 8, PrefixValue: 3, MaxThreadNumber: 64}
	if _, err := EnsureQueueShape(store, "orders", first); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	second := first
	second.PrefixValue = 4
	_, err = EnsureQueueShape(store, "orders", second)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	var mismatch *ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ShapeMismatchError, got %T: %v", err, err)
	}
}
