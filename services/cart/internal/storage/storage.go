// Package storage defines the durable key-value store the cart is persisted
// in, and the change feed other engine instances watch to stay in sync.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a string-keyed byte store.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// Change is a write observed on a watched key.
type Change struct {
	Key string
	// Value is the new raw value, nil when the key was removed.
	Value []byte
	// Origin identifies the writer, empty when the backend cannot tell.
	Origin string
}

// Watcher delivers changes to a key.
type Watcher interface {
	// Watch calls fn for every change to key written by another instance
	// and blocks until ctx is done. Writes made through the same instance
	// are never delivered.
	Watch(ctx context.Context, key string, fn func(Change)) error
}

// Backend is a Storage with a change feed, owned by one engine instance.
type Backend interface {
	Storage
	Watcher

	// Origin is the id this instance tags its writes with.
	Origin() string

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
