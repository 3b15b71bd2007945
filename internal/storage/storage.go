package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nailart/internal/models"
)

var ErrNotFound = errors.New("thumbnail not found")

const thumbnailColumns = `id, user_id, prompt, image_url, storage_path, preview_url, preview_path, width, height, created_at`

type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

// InsertThumbnail writes t and fills its server-assigned creation time.
// A zero ID is replaced with a new one.
func (s *Storage) InsertThumbnail(ctx context.Context, t *models.SavedThumbnail) error {
	const op = "storage.InsertThumbnail"

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO thumbnails (id, user_id, prompt, image_url, storage_path, preview_url, preview_path, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		t.ID, t.UserID, t.Prompt, t.ImageURL, t.StoragePath, t.PreviewURL, t.PreviewPath, t.Width, t.Height,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// ListThumbnails returns userID's thumbnails newest first. limit <= 0 lists all.
func (s *Storage) ListThumbnails(ctx context.Context, userID string, limit int) ([]models.SavedThumbnail, error) {
	const op = "storage.ListThumbnails"

	query := `SELECT ` + thumbnailColumns + ` FROM thumbnails WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	thumbs, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SavedThumbnail])
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return thumbs, nil
}

// DeleteThumbnail removes the row owned by userID and returns it.
func (s *Storage) DeleteThumbnail(ctx context.Context, id uuid.UUID, userID string) (*models.SavedThumbnail, error) {
	const op = "storage.DeleteThumbnail"

	rows, err := s.pool.Query(ctx,
		`DELETE FROM thumbnails WHERE id = $1 AND user_id = $2 RETURNING `+thumbnailColumns,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.SavedThumbnail])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &t, nil
}
