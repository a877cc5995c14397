// Package kvstore is the durable keyed store the marketplace core writes
// through. Records are opaque byte values carrying a monotonically
// increasing version; CompareAndSet is the primitive every concurrent
// mutation in the system is built on.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for an absent key.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrVersionMismatch is returned by CompareAndSet when the record was
	// written by someone else since the caller's read.
	ErrVersionMismatch = errors.New("kvstore: version mismatch")
	// ErrConflict is returned by Update when the bounded retry budget is
	// exhausted without an accepted write.
	ErrConflict = errors.New("kvstore: too much contention, retries exhausted")
)

// Record is a stored value together with its version marker. Version 0
// never occurs on a stored record; it is reserved to mean "absent" in
// CompareAndSet calls.
type Record struct {
	Key     string
	Value   []byte
	Version int64
}

type Store interface {
	// Get returns the record at key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Set writes unconditionally, bumping the version.
	Set(ctx context.Context, key string, value []byte) error

	// CompareAndSet writes value only if the key's current version equals
	// version. version == 0 requires the key to be absent. Returns
	// ErrVersionMismatch when the guard fails.
	CompareAndSet(ctx context.Context, key string, value []byte, version int64) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns every record whose key starts with prefix.
	ScanPrefix(ctx context.Context, prefix string) ([]Record, error)
}
