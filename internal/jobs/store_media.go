package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"veriscope/internal/services"
)

// RegisterMedia inserts a media item, deduplicating on content hash. When a
// row with the same SHA-256 already exists it is returned and the second
// return is false; the caller should discard its freshly staged copy.
func (s *Store) RegisterMedia(ctx context.Context, item *MediaItem) (*MediaItem, bool, error) {
	if item == nil {
		return nil, false, errors.New("media item is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil, false, fmt.Errorf("%w: media id is required", services.ErrInput)
	}
	if strings.TrimSpace(item.SHA256) == "" {
		return nil, false, fmt.Errorf("%w: media hash is required", services.ErrInput)
	}

	if existing, err := s.GetMediaBySHA256(ctx, item.SHA256); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	item.CreatedAt = now

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO media_items (
            id, filename, original_filename, sha256, file_size, media_type,
            mime_type, duration_ms, storage_path, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Filename,
		item.OriginalFilename,
		item.SHA256,
		item.FileSize,
		string(item.MediaType),
		nullableString(item.MimeType),
		nullableInt64(item.DurationMs),
		item.StoragePath,
		now.Format(time.RFC3339Nano),
	); err != nil {
		if isSQLiteConstraint(err) {
			// Lost a race with a concurrent registration of the same bytes.
			existing, findErr := s.GetMediaBySHA256(ctx, item.SHA256)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert media item: %w", err)
	}

	stored, err := s.GetMedia(ctx, item.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// GetMedia fetches a media item by identifier.
func (s *Store) GetMedia(ctx context.Context, id string) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// GetMediaBySHA256 fetches a media item by content hash.
func (s *Store) GetMediaBySHA256(ctx context.Context, hash string) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_items WHERE sha256 = ?`, hash)
	item, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media by hash: %w", err)
	}
	return item, nil
}

// ListMedia returns registered media items ordered by registration time.
func (s *Store) ListMedia(ctx context.Context) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media_items ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetMediaDuration records the probed duration once validation learns it.
func (s *Store) SetMediaDuration(ctx context.Context, id string, durationMs int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE media_items SET duration_ms = ? WHERE id = ?`,
		durationMs,
		id,
	); err != nil {
		return fmt.Errorf("set media duration: %w", err)
	}
	return nil
}
