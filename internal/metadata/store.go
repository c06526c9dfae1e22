// Package metadata provides durable, keyed persistence for photo records
// with atomic snapshot semantics. Two implementations exist: a JSON snapshot
// file for single-node deployments and a PostgreSQL table.
package metadata

import (
	"context"

	"github.com/snapkeeper/snapkeeper/internal/models"
)

// Store is the metadata persistence contract.
//
// Upsert inserts or replaces the record at record.ID and makes the table
// durable before returning. Get returns common.ErrNotFound for missing ids.
// Scan returns a snapshot of all records in insertion order; the returned
// slice does not update as the store changes.
type Store interface {
	Upsert(ctx context.Context, record *models.PhotoRecord) error
	Get(ctx context.Context, id string) (*models.PhotoRecord, error)
	Scan(ctx context.Context) ([]*models.PhotoRecord, error)
}
