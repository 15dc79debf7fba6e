package staging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts a blob under a new reference.
// PRE: b.Ref and b.Owner are non-empty; Ref has not been used before
// POST: the blob is retrievable by Get(b.Ref)
func (s *SQLiteStore) Save(ctx context.Context, b Blob) error {
	if b.Ref == "" || b.Owner == "" {
		return errors.New("staged image needs a ref and an owner")
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staged_image (ref, owner, filename, content_type, size, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Ref, b.Owner, b.Filename, b.ContentType, len(b.Data), b.Data, created.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save staged image: %w", err)
	}
	return nil
}

// Get retrieves a blob by reference.
// PRE: ref is non-empty
// POST: returns ErrNotFound when the reference has been released or never existed
func (s *SQLiteStore) Get(ctx context.Context, ref string) (Blob, error) {
	var b Blob
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT ref, owner, filename, content_type, data, created_at FROM staged_image WHERE ref = ?`, ref).
		Scan(&b.Ref, &b.Owner, &b.Filename, &b.ContentType, &b.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, fmt.Errorf("get staged image: %w", err)
	}
	if t, perr := time.Parse(timeLayout, created); perr == nil {
		b.CreatedAt = t
	}
	return b, nil
}

// Delete releases one reference. Deleting an unknown reference is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, ref string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM staged_image WHERE ref = ?`, ref); err != nil {
		return fmt.Errorf("delete staged image: %w", err)
	}
	return nil
}

// DeleteByOwner releases every reference held by one console session.
// POST: returns the number of blobs removed
func (s *SQLiteStore) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staged_image WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("delete staged images: %w", err)
	}
	return res.RowsAffected()
}

// PurgeBefore removes blobs staged before cutoff, left behind by sessions that never ended cleanly.
// POST: returns the number of blobs removed
func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staged_image WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge staged images: %w", err)
	}
	return res.RowsAffected()
}

// Count returns how many blobs owner holds; an empty owner counts every blob.
func (s *SQLiteStore) Count(ctx context.Context, owner string) (int, error) {
	query := `SELECT COUNT(*) FROM staged_image`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count staged images: %w", err)
	}
	return n, nil
}
