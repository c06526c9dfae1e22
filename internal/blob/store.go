// Package blob defines the blob-storage capability consumed by the ingestion
// pipeline, with local-filesystem and S3-compatible implementations.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const maxKeyLength = 1024

var (
	ErrEmptyKey         = errors.New("key cannot be empty")
	ErrInvalidKey       = errors.New("key contains invalid characters")
	ErrKeyLengthExceeds = errors.New("maximal key length exceeds")
)

// Store is durable content storage keyed by opaque string keys.
//
// Put copies the content addressed by sourcePath into the store under key,
// creating any namespace segments the key implies. Overwriting an existing
// key replaces its content; there is no versioning.
//
// Resolve returns a dereferenceable locator (filesystem path, presigned URL)
// for previously stored content.
type Store interface {
	Put(ctx context.Context, sourcePath string, key string) (string, error)
	Resolve(ctx context.Context, key string) (string, error)
}

// validateKey rejects keys that could escape the store's namespace.
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) > maxKeyLength {
		return ErrKeyLengthExceeds
	}
	if filepath.IsAbs(key) {
		return fmt.Errorf("absolute paths are not allowed: %w", ErrInvalidKey)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("relative path traversal not allowed: %w", ErrInvalidKey)
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("null bytes not allowed: %w", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("key cannot start or end with slash: %w", ErrInvalidKey)
	}
	if strings.Contains(key, "//") {
		return fmt.Errorf("consecutive slashes not allowed: %w", ErrInvalidKey)
	}
	return nil
}
