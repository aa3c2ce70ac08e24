// Package kv defines the key/value collaborator used by persisted accessors
// and provides an in-memory implementation.
//
// Durable implementations live in internal/store (SQLite) and
// internal/kv/postgres.
package kv

import "context"

// Store is a string-keyed byte store. Each call is atomic for its key and
// returns only after the write is durable for the implementation.
type Store interface {
	// Get returns the value stored at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set writes value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
