package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/datarep/internal/log"
)

// BlobRepository reads and writes blobs.
type BlobRepository struct {
	db *sql.DB
}

// Put inserts or replaces the blob under b.Key and sets b.Version to the stored
// version. CreatedAt is kept on replace.
func (r *BlobRepository) Put(ctx context.Context, b *Blob) error {
	if b.Key == "" {
		return errors.New("blob key is required")
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	model, err := toBlobModel(b)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO blobs (key, format, dims, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			format = excluded.format,
			dims = excluded.dims,
			data = excluded.data,
			version = blobs.version + 1,
			updated_at = excluded.updated_at
		RETURNING version`,
		model.Key, model.Format, model.Dims, model.Data, model.CreatedAt, model.UpdatedAt,
	).Scan(&b.Version)
	if err != nil {
		return fmt.Errorf("failed to put blob %q: %w", b.Key, err)
	}
	log.Debug(log.CatStore, "blob written", "key", b.Key, "bytes", len(b.Data), "version", b.Version)
	return nil
}

// Get returns the blob stored under key, or a *BlobNotFoundError.
func (r *BlobRepository) Get(ctx context.Context, key string) (*Blob, error) {
	var m blobModel
	err := r.db.QueryRowContext(ctx,
		`SELECT key, format, dims, data, version, created_at, updated_at FROM blobs WHERE key = ?`, key,
	).Scan(&m.Key, &m.Format, &m.Dims, &m.Data, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &BlobNotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %q: %w", key, err)
	}
	return m.toBlob()
}

// Version returns the current version of the blob under key without reading its data.
func (r *BlobRepository) Version(ctx context.Context, key string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM blobs WHERE key = ?`, key).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &BlobNotFoundError{Key: key}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get blob version %q: %w", key, err)
	}
	return version, nil
}

// Delete removes the blob under key. Deleting a missing key is a *BlobNotFoundError.
func (r *BlobRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return &BlobNotFoundError{Key: key}
	}
	return nil
}

// List describes every stored blob ordered by key.
func (r *BlobRepository) List(ctx context.Context) ([]BlobInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, format, dims, length(data), version, updated_at FROM blobs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var out []BlobInfo
	for rows.Next() {
		var (
			info    BlobInfo
			dims    string
			updated int64
		)
		if err := rows.Scan(&info.Key, &info.Format, &dims, &info.Size, &info.Version, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan blob: %w", err)
		}
		if info.Dims, err = decodeDims(dims); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(updated, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}
