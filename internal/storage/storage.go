// Package storage defines the durable key-value store the client keeps its
// session state in. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("the requested key does not exist")
	ErrDecoding = errors.New("stored value could not be decoded")
)

// LocalStorage is a string-keyed store of string values that survives restarts
// of the client for implementations backed by disk.
type LocalStorage interface {
	// Get returns the value stored at key. If nothing is stored there, the
	// returned error will be ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key, replacing any value already there.
	Set(ctx context.Context, key string, value string) error

	// Remove deletes the value at key. Removing a key that has no value is not
	// an error.
	Remove(ctx context.Context, key string) error

	Close() error
}
