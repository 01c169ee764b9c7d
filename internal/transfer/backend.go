package transfer

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the key does not exist.
var ErrNotFound = errors.New("not found")

// Backend defines the interface for a remote store of history files.
// Keys are slash-separated relative paths.
type Backend interface {
	// List returns all keys starting with prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)

	// Read returns the content stored under key.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores data under key, replacing any previous content.
	Write(ctx context.Context, key string, data []byte) error

	// Close releases any resources.
	Close() error
}

// Ensure interfaces are implemented
var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*S3Backend)(nil)
)
