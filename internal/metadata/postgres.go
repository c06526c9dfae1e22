package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/snapkeeper/snapkeeper/internal/common"
	"github.com/snapkeeper/snapkeeper/internal/dbx"
	"github.com/snapkeeper/snapkeeper/internal/metadata/migrations"
	"github.com/snapkeeper/snapkeeper/internal/models"
)

// PostgresStore implements Store over a photos table. The position column
// preserves insertion order for Scan; upserts keep the original position
// because the conflict target never touches it.
type PostgresStore struct {
	db dbx.DBTX
}

// NewPostgresStore constructs a store bound to the given handle. Migrations
// are the caller's concern (see OpenPostgresStore).
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgresStore opens a pgx connection for the DSN, runs the embedded
// goose migrations, and returns a ready store.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: db open: %v", common.ErrPersistence, err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: migrations: %v", common.ErrPersistence, err)
	}

	return NewPostgresStore(db), db, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record *models.PhotoRecord) error {
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("%w: encoding tags: %v", common.ErrPersistence, err)
	}

	query := `
		INSERT INTO photos (id, user_id, created_at, tags, original_filename, location)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			created_at = EXCLUDED.created_at,
			tags = EXCLUDED.tags,
			original_filename = EXCLUDED.original_filename,
			location = EXCLUDED.location;
	`
	res, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.CreatedAt, tags, record.OriginalFilename, record.Location)
	if err != nil {
		return fmt.Errorf("%w: upsert %q: %v", common.ErrPersistence, record.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", common.ErrPersistence, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: unexpected rows affected: %d", common.ErrPersistence, n)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.PhotoRecord, error) {
	query := `
		SELECT id, user_id, created_at, tags, original_filename, location
		FROM photos WHERE id=$1
	`
	var r models.PhotoRecord
	var tags []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &tags, &r.OriginalFilename, &r.Location)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %q: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get %q: %v", common.ErrPersistence, id, err)
	}

	if err := json.Unmarshal(tags, &r.Tags); err != nil {
		return nil, fmt.Errorf("%w: decoding tags for %q: %v", common.ErrPersistence, id, err)
	}
	return &r, nil
}

func (s *PostgresStore) Scan(ctx context.Context) ([]*models.PhotoRecord, error) {
	query := `
		SELECT id, user_id, created_at, tags, original_filename, location
		FROM photos ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	var result []*models.PhotoRecord
	for rows.Next() {
		var r models.PhotoRecord
		var tags []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.CreatedAt, &tags, &r.OriginalFilename, &r.Location); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", common.ErrPersistence, err)
		}
		if err := json.Unmarshal(tags, &r.Tags); err != nil {
			return nil, fmt.Errorf("%w: decoding tags for %q: %v", common.ErrPersistence, r.ID, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", common.ErrPersistence, err)
	}
	return result, nil
}
