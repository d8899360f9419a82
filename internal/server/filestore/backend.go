package filestore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("file not found")

// Backend holds file content by key. Metadata lives in the index, not here.
type Backend interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Name() string
}
