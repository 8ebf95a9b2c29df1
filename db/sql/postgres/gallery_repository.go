package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/adeilh/gallery/gallery"
)

var ErrUndefinedTable = errors.New("postgres: gallery tables missing, run migrations")

// GalleryRepository implements gallery.DocumentStore.
type GalleryRepository struct {
	db *sql.DB
}

// NewGalleryRepository wraps an existing *sql.DB connection.
func NewGalleryRepository(db *sql.DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

func (r *GalleryRepository) InsertImage(ctx context.Context, img gallery.Image) (string, error) {
	const query = `INSERT INTO images (url, title, caption, uploader, created_at)
                   VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var id string
	err := r.db.QueryRowContext(ctx, query, img.URL, img.Title, img.Caption, img.Uploader, img.CreatedAt).Scan(&id)
	if err != nil {
		return "", translateError(err)
	}
	return id, nil
}

func (r *GalleryRepository) ListImages(ctx context.Context) ([]gallery.Image, error) {
	const query = `SELECT id, url, title, caption, uploader, created_at FROM images ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := make([]gallery.Image, 0)
	for rows.Next() {
		var img gallery.Image
		if err := rows.Scan(&img.ID, &img.URL, &img.Title, &img.Caption, &img.Uploader, &img.CreatedAt); err != nil {
			return nil, err
		}
		img.CreatedAt = img.CreatedAt.UTC()
		out = append(out, img)
	}
	return out, rows.Err()
}

func (r *GalleryRepository) InsertComment(ctx context.Context, c gallery.Comment) (string, error) {
	const query = `INSERT INTO comments (image_id, user_id, body, rating, created_at)
                   VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var id string
	err := r.db.QueryRowContext(ctx, query, c.ImageID, c.UserID, c.Text, c.Rating, c.Timestamp).Scan(&id)
	if err != nil {
		return "", translateError(err)
	}
	return id, nil
}

func (r *GalleryRepository) ListComments(ctx context.Context, imageID string) ([]gallery.Comment, error) {
	const query = `SELECT id, image_id, user_id, body, rating, created_at FROM comments
                   WHERE image_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, imageID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := make([]gallery.Comment, 0)
	for rows.Next() {
		var c gallery.Comment
		if err := rows.Scan(&c.ID, &c.ImageID, &c.UserID, &c.Text, &c.Rating, &c.Timestamp); err != nil {
			return nil, err
		}
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01":
			return fmt.Errorf("%w: %s", ErrUndefinedTable, pqErr.Message)
		}
	}
	return err
}
