package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"satstash/internal/models"
)

const blobColumns = "sha256, size, type, uploaded, expires"

// UpsertBlob inserts blob metadata, or rewrites it when the digest already
// exists. Re-uploading identical content refreshes type and expiry.
func (s *Store) UpsertBlob(ctx context.Context, blob *models.Blob) error {
	if blob == nil {
		return fmt.Errorf("blob is required")
	}
	if blob.Uploaded.IsZero() {
		blob.Uploaded = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (sha256, size, type, uploaded, expires)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			size = excluded.size,
			type = excluded.type,
			uploaded = excluded.uploaded,
			expires = excluded.expires`,
		blob.SHA256,
		blob.Size,
		nullString(blob.Type),
		formatTime(blob.Uploaded),
		nullTime(blob.Expires),
	)
	return err
}

// GetBlob returns one blob record, or nil when the digest is unknown.
func (s *Store) GetBlob(ctx context.Context, sha256 string) (*models.Blob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE sha256 = ?`, sha256)
	return scanBlob(row)
}

// DeleteBlob deletes one blob record.
func (s *Store) DeleteBlob(ctx context.Context, sha256 string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE sha256 = ?", sha256)
	return err
}

// ExpiredBlobs lists blobs whose expiry is set and earlier than before.
func (s *Store) ExpiredBlobs(ctx context.Context, before time.Time) ([]models.Blob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blobColumns+` FROM blobs WHERE expires IS NOT NULL AND expires < ?`,
		formatTime(before),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blobs := []models.Blob{}
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		if blob == nil {
			continue
		}
		blobs = append(blobs, *blob)
	}
	return blobs, rows.Err()
}

// BlobStats reports the total count and byte size of recorded blobs.
func (s *Store) BlobStats(ctx context.Context) (count int64, bytes int64, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size), 0) FROM blobs").Scan(&count, &bytes)
	return count, bytes, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlob(row rowScanner) (*models.Blob, error) {
	var (
		blob     models.Blob
		mimeType sql.NullString
		uploaded string
		expires  sql.NullString
	)
	err := row.Scan(&blob.SHA256, &blob.Size, &mimeType, &uploaded, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	blob.Type = mimeType.String
	if blob.Uploaded, err = parseTime(uploaded); err != nil {
		return nil, fmt.Errorf("blob %s: %w", blob.SHA256, err)
	}
	if expires.Valid {
		t, err := parseTime(expires.String)
		if err != nil {
			return nil, fmt.Errorf("blob %s: %w", blob.SHA256, err)
		}
		blob.Expires = &t
	}
	return &blob, nil
}

// Times are stored as second-precision RFC3339 so that lexicographic SQL
// comparisons agree with chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
