package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/snapkeeper/snapkeeper/internal/common"
)

const tempDirName = ".tmp"

// FSStore keeps blobs as plain files under a root directory, mirroring the
// key's path segments. Writes go to a temp file first and are moved into
// place with os.Rename, so a reader never observes a partial blob.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	root = filepath.Clean(root)

	if err := os.MkdirAll(root, 0o770); err != nil {
		return nil, fmt.Errorf("%w: creating blob root: %v", common.ErrStorage, err)
	}
	if err := os.MkdirAll(filepath.Join(root, tempDirName), 0o770); err != nil {
		return nil, fmt.Errorf("%w: creating temp directory: %v", common.ErrStorage, err)
	}

	return &FSStore{root: root}, nil
}

// Root returns the store's root directory.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) Put(ctx context.Context, sourcePath string, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening source %q: %v", common.ErrStorage, sourcePath, err)
	}
	defer src.Close()

	tmpPath := filepath.Join(s.root, tempDirName, uuid.NewString())
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %v", common.ErrStorage, err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: copying %q: %v", common.ErrStorage, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: closing temp file: %v", common.ErrStorage, err)
	}

	dest := filepath.Join(s.root, filepath.FromSlash(key))

	// A key like "u1/a.png" implies the "u1" folder.
	if err := os.MkdirAll(filepath.Dir(dest), 0o770); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: creating key directory: %v", common.ErrStorage, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: committing blob %q: %v", common.ErrStorage, key, err)
	}

	return dest, nil
}

func (s *FSStore) Resolve(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("blob %q: %w", key, common.ErrNotFound)
		}
		return "", fmt.Errorf("%w: stat blob %q: %v", common.ErrStorage, key, err)
	}

	return path, nil
}
