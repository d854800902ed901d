package perq

import "fmt"

// MisuseError indicates the caller violated a precondition: a bad
// construction argument, calling a method out of sequence, or a
// configuration mismatch against a previously frozen queue shape. It is
// always a programming error, never a transient condition.
type MisuseError struct {
	Msg string
}

func (e *MisuseError) Error() string { return "perq: misuse: " + e.Msg }

// CorruptionError indicates the on-disk state violates an invariant the
// queue engine relies on: a key of the wrong length, or a recovery walk
// that cannot reconcile the stored key sequence. Operators must stop and
// investigate; the queue cannot safely continue.
type CorruptionError struct {
	Msg string
}

func (e *CorruptionError) Error() string { return "perq: corruption: " + e.Msg }

// StorageError wraps a failure returned by the underlying kvstore.Store
// that is not ErrNotFound.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("perq: storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
