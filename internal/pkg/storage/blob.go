// Package storage holds the blob store adapters used by the ingestion pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrExists     = errors.New("blob already exists")
	ErrInvalidKey = errors.New("invalid storage key")
)

// BlobStore is durable binary storage addressed by string keys.
type BlobStore interface {
	// Save writes payload under key. A key is written at most once; saving over
	// an existing key fails with ErrExists.
	Save(ctx context.Context, key string, payload []byte, contentType string) error
	// IssueRetrievalURL returns a URL allowing unauthenticated reads of key until expiry.
	IssueRetrievalURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageFailure is returned by every BlobStore operation that fails.
type StorageFailure struct {
	Op  string
	Key string
	Err error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageFailure) Unwrap() error {
	return e.Err
}

func failure(op, key string, err error) error {
	return &StorageFailure{Op: op, Key: key, Err: err}
}

// ValidateKey accepts relative, already clean, slash separated keys.
func ValidateKey(key string) error {
	if key == "" || strings.Contains(key, "\\") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key || key == "." || strings.HasPrefix(key, "../") || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
