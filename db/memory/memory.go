// Package memory is a process-local gallery.DocumentStore for development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/adeilh/gallery/gallery"
)

// Store keeps records in slices guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	images   []gallery.Image
	comments []gallery.Comment
}

func New() *Store { return &Store{} }

func (s *Store) InsertImage(ctx context.Context, img gallery.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img.ID = uuid.NewString()
	s.mu.Lock()
	s.images = append(s.images, img)
	s.mu.Unlock()
	return img.ID, nil
}

func (s *Store) ListImages(ctx context.Context) ([]gallery.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]gallery.Image, len(s.images))
	copy(out, s.images)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) InsertComment(ctx context.Context, c gallery.Comment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.ID = uuid.NewString()
	s.mu.Lock()
	s.comments = append(s.comments, c)
	s.mu.Unlock()
	return c.ID, nil
}

func (s *Store) ListComments(ctx context.Context, imageID string) ([]gallery.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]gallery.Comment, 0)
	for _, c := range s.comments {
		if c.ImageID == imageID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
