package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/db"
)

// CacheStorageRepository implements ports.CacheStorage on PostgreSQL.
// Deleting a generation cascades to its entries.
type CacheStorageRepository struct {
	db *db.Database
}

// NewCacheStorageRepository creates a new PostgreSQL cache storage
func NewCacheStorageRepository(database *db.Database) *CacheStorageRepository {
	return &CacheStorageRepository{db: database}
}

// Open creates the generation row if absent
func (r *CacheStorageRepository) Open(ctx context.Context, name string) (ports.CacheStore, bool, error) {
	res, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO cache_generations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &cacheStoreRepository{db: r.db, name: name}, n == 1, nil
}

func (r *CacheStorageRepository) Has(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.DB.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM cache_generations WHERE name = $1)`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check cache %s: %w", name, err)
	}
	return exists, nil
}

func (r *CacheStorageRepository) Delete(ctx context.Context, name string) (bool, error) {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM cache_generations WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return n > 0, nil
}

func (r *CacheStorageRepository) Keys(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.DB.SelectContext(ctx, &names, `SELECT name FROM cache_generations ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	return names, nil
}

type cacheEntryRow struct {
	RequestKey string    `db:"request_key"`
	Status     int       `db:"status"`
	Headers    []byte    `db:"headers"`
	Body       []byte    `db:"body"`
	StoredAt   time.Time `db:"stored_at"`
}

func (row *cacheEntryRow) toStored() (*asset.StoredResponse, error) {
	header := http.Header{}
	if len(row.Headers) > 0 {
		if err := json.Unmarshal(row.Headers, &header); err != nil {
			return nil, fmt.Errorf("corrupt cache headers for %s: %w", row.RequestKey, err)
		}
	}
	return &asset.StoredResponse{
		URL:      row.RequestKey,
		Status:   row.Status,
		Header:   header,
		Body:     row.Body,
		StoredAt: row.StoredAt,
	}, nil
}

type cacheStoreRepository struct {
	db   *db.Database
	name string
}

func (c *cacheStoreRepository) Name() string { return c.name }

func (c *cacheStoreRepository) Match(ctx context.Context, req *asset.Request) (*asset.StoredResponse, bool, error) {
	if !req.Cacheable() {
		return nil, false, nil
	}
	var row cacheEntryRow
	query := `
		SELECT request_key, status, headers, body, stored_at
		FROM cache_entries
		WHERE generation = $1 AND request_key = $2`
	err := c.db.DB.GetContext(ctx, &row, query, c.name, req.Key())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to match %s: %w", req.Key(), err)
	}
	stored, err := row.toStored()
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (c *cacheStoreRepository) Put(ctx context.Context, req *asset.Request, resp *asset.StoredResponse) error {
	return c.PutAll(ctx, []asset.Entry{{Request: req, Response: resp}})
}

// PutAll upserts all entries inside one transaction
func (c *cacheStoreRepository) PutAll(ctx context.Context, entries []asset.Entry) error {
	tx, err := c.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_generations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, c.name); err != nil {
		return fmt.Errorf("failed to ensure cache %s: %w", c.name, err)
	}
	for _, e := range entries {
		if err := upsertEntry(ctx, tx, c.name, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache entries: %w", err)
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sqlx.Tx, generation string, e asset.Entry) error {
	if !e.Request.Cacheable() {
		return asset.ErrNotCacheable
	}
	headers, err := json.Marshal(e.Response.Header)
	if err != nil {
		return err
	}
	body := e.Response.Body
	if body == nil {
		body = []byte{}
	}
	query := `
		INSERT INTO cache_entries (generation, request_key, status, headers, body, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (generation, request_key)
		DO UPDATE SET status = EXCLUDED.status, headers = EXCLUDED.headers, body = EXCLUDED.body, stored_at = EXCLUDED.stored_at`
	if _, err := tx.ExecContext(ctx, query, generation, e.Request.Key(), e.Response.Status, headers, body, e.Response.StoredAt); err != nil {
		return fmt.Errorf("failed to store %s: %w", e.Request.Key(), err)
	}
	return nil
}

func (c *cacheStoreRepository) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := c.db.DB.SelectContext(ctx, &keys,
		`SELECT request_key FROM cache_entries WHERE generation = $1 ORDER BY request_key`, c.name); err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return keys, nil
}

func (c *cacheStoreRepository) Delete(ctx context.Context, req *asset.Request) (bool, error) {
	res, err := c.db.DB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE generation = $1 AND request_key = $2`, c.name, req.Key())
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
