// Package gallery holds the image and comment records and the cache-aside
// service that mediates reads of both collections.
package gallery

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("gallery: invalid input")
	ErrInvalidate   = errors.New("gallery: cache invalidation failed")
)

// Image is an uploaded photograph's metadata record.
type Image struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	Uploader  string    `json:"uploader"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a rating plus free text left on an image. ImageID is not
// checked against existing images.
type Comment struct {
	ID        string    `json:"id"`
	ImageID   string    `json:"imageId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentStore persists image and comment records. Insert methods return the
// identifier assigned by the store. List methods return newest first.
type DocumentStore interface {
	InsertImage(ctx context.Context, img Image) (string, error)
	ListImages(ctx context.Context) ([]Image, error)
	InsertComment(ctx context.Context, c Comment) (string, error)
	ListComments(ctx context.Context, imageID string) ([]Comment, error)
}

// Recorder observes cache behaviour. collection is "images" or "comments".
type Recorder interface {
	CacheHit(collection string)
	CacheMiss(collection string)
	CacheInvalidated(collection string)
}

const (
	CollectionImages   = "images"
	CollectionComments = "comments"
)

const (
	imagesKey         = "images"
	commentsKeyPrefix = "comments_"
)

// DefaultCacheTTL bounds how stale a cached list may be when no write evicts it.
const DefaultCacheTTL = 30 * time.Second

// ImagesKey is the cache key of the full image list.
func ImagesKey() string { return imagesKey }

// CommentsKey is the cache key of one image's comment list.
func CommentsKey(imageID string) string { return commentsKeyPrefix + imageID }

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)         {}
func (nopRecorder) CacheMiss(string)        {}
func (nopRecorder) CacheInvalidated(string) {}
