package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snapkeeper/snapkeeper/internal/common"
	"github.com/snapkeeper/snapkeeper/internal/models"
)

// FileStore keeps the whole record table in memory and mirrors it to a JSON
// snapshot file on every Upsert. The snapshot is written to a temp file in
// the same directory and renamed into place, so a crash mid-write never
// leaves a reader with a partial table.
//
// Records serialize as an ordered array rather than a JSON object: the store
// is conceptually a mapping keyed by record id, but Go maps (and JSON
// objects) do not preserve insertion order, which Scan must.
type FileStore struct {
	path string

	mu      sync.RWMutex
	records []*models.PhotoRecord
	index   map[string]int
}

// NewFileStore loads the snapshot at path if one exists and starts empty
// otherwise. An existing but unreadable or corrupt snapshot is a persistence
// error; data is never silently dropped.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		index: make(map[string]int),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: reading snapshot %q: %v", common.ErrPersistence, path, err)
	}

	var records []*models.PhotoRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot %q: %v", common.ErrPersistence, path, err)
	}

	for i, r := range records {
		// A null array element decodes into a nil record; indexing it
		// would panic, so it is corruption like any other.
		if r == nil {
			return nil, fmt.Errorf("%w: corrupt snapshot %q: null record at index %d", common.ErrPersistence, path, i)
		}
		s.index[r.ID] = i
	}
	s.records = records

	return s, nil
}

// Upsert replaces the record in place when the id exists, keeping its
// original position in scan order, and appends otherwise. The snapshot is
// durable when Upsert returns.
func (s *FileStore) Upsert(ctx context.Context, record *models.PhotoRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyRecord(record)

	// Persist a candidate table first; the in-memory state is swapped only
	// after the snapshot is on disk. A failed persist leaves both the
	// table and the snapshot exactly as they were.
	i, exists := s.index[record.ID]

	candidate := make([]*models.PhotoRecord, len(s.records), len(s.records)+1)
	copy(candidate, s.records)
	if exists {
		candidate[i] = stored
	} else {
		candidate = append(candidate, stored)
	}

	if err := s.persistLocked(candidate); err != nil {
		return err
	}

	if !exists {
		s.index[record.ID] = len(s.records)
	}
	s.records = candidate

	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*models.PhotoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("record %q: %w", id, common.ErrNotFound)
	}
	return copyRecord(s.records[i]), nil
}

func (s *FileStore) Scan(ctx context.Context) ([]*models.PhotoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.PhotoRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, copyRecord(r))
	}
	return out, nil
}

// persistLocked writes the given table atomically. Callers hold s.mu.
func (s *FileStore) persistLocked(records []*models.PhotoRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding snapshot: %v", common.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp snapshot: %v", common.ErrPersistence, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing snapshot: %v", common.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing snapshot: %v", common.ErrPersistence, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: swapping snapshot: %v", common.ErrPersistence, err)
	}

	return nil
}

func copyRecord(r *models.PhotoRecord) *models.PhotoRecord {
	c := *r
	if r.Tags != nil {
		c.Tags = make([]string, len(r.Tags))
		copy(c.Tags, r.Tags)
	}
	return &c
}
