package badgerstore

import (
	"errors"
	"testing"

	"github.com/rzbill/perq/internal/kvstore"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(Options{DataDir: dir, SyncWrites: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreCRUD(t *testing.T) {
	store := newTestDB(t).AsStore()

	if err := store.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q want v1", got)
	}

	if err := store.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get([]byte("k1")); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreSetSync(t *testing.T) {
	store := newTestDB(t).AsStore()
	if err := store.SetSync([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("setsync: %v", err)
	}
	got, err := store.Get([]byte("k1"))
	if err != nil || string(got) != "v1" {
		t.Fatalf("get after setsync = (%q, %v)", got, err)
	}
}

func TestStoreBatch(t *testing.T) {
	store := newTestDB(t).AsStore()
	if err := store.Set([]byte("old"), []byte("stale")); err != nil {
		t.Fatalf("set: %v", err)
	}

	b := store.NewBatch()
	if err := b.Delete([]byte("old")); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if err := b.Set([]byte("new"), []byte("fresh")); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if err := b.Commit(true); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := store.Get([]byte("old")); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected old key gone, got %v", err)
	}
	got, err := store.Get([]byte("new"))
	if err != nil || string(got) != "fresh" {
		t.Fatalf("get(new) = (%q, %v)", got, err)
	}
}

func TestStoreIterationOrderAndBounds(t *testing.T) {
	store := newTestDB(t).AsStore()
	keys := []string{"a", "b", "c", "d", "e"}
	for _, k := range keys {
		if err := store.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("set(%s): %v", k, err)
		}
	}

	it, err := store.NewIter([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("NewIter: %v", err)
	}
	defer it.Close()

	var got []string
	for ok := it.SeekGE([]byte("b")); ok; ok = it.Next() {
		got = append(got, string(it.Key()))
	}
	want := []string{"b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
