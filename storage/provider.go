// Package storage defines the key→bytes boundary between the engine and any
// backend, and provides the in-memory and local-filesystem implementations.
//
// Keys are forward-slash-delimited path strings. Values are opaque byte
// slices; callers must not mutate a returned slice.
package storage

import "context"

// maxBulkReaders bounds the worker pool used by bulk reads.
const maxBulkReaders = 16

// Provider is an opaque key→bytes map.
//
// Every method that touches the backend is potentially blocking and takes a
// context. Get returns ErrKeyNotFound for absent keys; range operations
// return ErrOutOfRange when they exceed the stored length.
type Provider interface {
	// Get returns the full value stored at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetMany returns the values for keys, in the same order as keys.
	// The first per-item failure aborts the call.
	GetMany(ctx context.Context, keys []string) ([][]byte, error)

	// GetBytes returns length bytes of the value at key starting at offset.
	GetBytes(ctx context.Context, key string, offset, length int64) ([]byte, error)

	// Set stores value at key, overwriting any previous value and creating
	// parent containers as needed.
	Set(ctx context.Context, key string, value []byte) error

	// SetBytes writes value into the stored bytes at offset. When overwrite
	// is true this is the same as Set: the stored value becomes exactly
	// value and offset is ignored. When false and the key is absent, the
	// value is zero-padded up to offset before writing.
	SetBytes(ctx context.Context, key string, value []byte, offset int64, overwrite bool) error

	// Delete removes the value at key. Returns ErrKeyNotFound if absent.
	Delete(ctx context.Context, key string) error

	// Keys lists every key under the provider's root. Order is unspecified
	// but stable within a single call.
	Keys(ctx context.Context) ([]string, error)

	// Len returns the number of keys.
	Len(ctx context.Context) (int, error)

	// Flush persists any buffered state. Base providers no-op; caches write
	// back their dirty entries.
	Flush(ctx context.Context) error

	// Clear deletes every key under the provider's root.
	Clear(ctx context.Context) error
}
