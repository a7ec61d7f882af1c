// Package storage uploads attachment blobs and hands back durable URLs.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no blob.
var ErrNotFound = errors.New("blob not found")

// Store is a blob store addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// Opener is implemented by stores whose blobs are served by this process.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
