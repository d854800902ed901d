// Package namespace records and verifies the frozen key shape of each
// named queue, so that reopening a queue with a different width, prefix
// width, prefix value, or thread bound is caught as misuse instead of
// silently reinterpreting existing on-disk keys under a new bit layout.
package namespace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/perq/internal/kvstore"
)

// QueueShape is the durable record of one queue's codec and recovery
// configuration, written once on first use and verified on every
// subsequent open.
type QueueShape struct {
	Name            string `json:"name"`
	Width           int    `json:"width"`
	PrefixWidth     int    `json:"prefixWidth"`
	PrefixValue     uint64 `json:"prefixValue"`
	MaxThreadNumber uint64 `json:"maxThreadNumber"`
	CreatedAtMs     int64  `json:"createdAtMs"`
}

// ShapeMismatchError reports that a queue's previously recorded shape
// differs from the shape the caller is attempting to open it with.
type ShapeMismatchError struct {
	Name string
	Want QueueShape
	Got  QueueShape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("namespace: queue %q shape mismatch: recorded %+v, requested %+v", e.Name, e.Got, e.Want)
}

var shapePrefix = []byte("perq_meta/")

// IsShapeKey reports whether key lies in the reserved range shape records
// are stored under. A queue whose ID space spans the full store keyspace
// (no prefix, or a prefix partition that happens to cover this range) must
// skip these keys during its recovery walk.
func IsShapeKey(key []byte) bool { return bytes.HasPrefix(key, shapePrefix) }

func shapeKey(name string) []byte {
	k := make([]byte, 0, len(shapePrefix)+len(name))
	k = append(k, shapePrefix...)
	k = append(k, name...)
	return k
}

// GetQueueShape reads back a previously recorded shape for name without
// verifying it against a caller-supplied expectation. Used by callers
// that only know a queue's name and need to rediscover its frozen
// width/prefix/thread-bound configuration, such as the CLI operating on
// a queue created in an earlier invocation.
func GetQueueShape(store kvstore.Store, name string) (QueueShape, bool, error) {
	b, err := store.Get(shapeKey(name))
	if errors.Is(err, kvstore.ErrNotFound) {
		return QueueShape{}, false, nil
	}
	if err != nil {
		return QueueShape{}, false, err
	}
	var got QueueShape
	if err := json.Unmarshal(b, &got); err != nil {
		return QueueShape{}, false, fmt.Errorf("namespace: corrupted shape record for %q: %w", name, err)
	}
	return got, true, nil
}

// EnsureQueueShape idempotently records want as the shape for name on
// first use, or verifies that a previously recorded shape for name
// matches want. want.CreatedAtMs is ignored on input and set from the
// existing record (or the current time, on first write) in the returned
// value.
func EnsureQueueShape(store kvstore.Store, name string, want QueueShape) (QueueShape, error) {
	key := shapeKey(name)
	b, err := store.Get(key)
	if err == nil {
		var got QueueShape
		if jsonErr := json.Unmarshal(b, &got); jsonErr != nil {
			return QueueShape{}, fmt.Errorf("namespace: corrupted shape record for %q: %w", name, jsonErr)
		}
		if got.Width != want.Width || got.PrefixWidth != want.PrefixWidth ||
			got.PrefixValue != want.PrefixValue || got.MaxThreadNumber != want.MaxThreadNumber {
			want.CreatedAtMs = got.CreatedAtMs
			return QueueShape{}, &ShapeMismatchError{Name: name, Want: want, Got: got}
		}
		return got, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return QueueShape{}, err
	}

	want.Name = name
	want.CreatedAtMs = time.Now().UnixMilli()
	encoded, err := json.Marshal(want)
	if err != nil {
		return QueueShape{}, err
	}
	if err := store.SetSync(key, encoded); err != nil {
		return QueueShape{}, err
	}
	return want, nil
}
