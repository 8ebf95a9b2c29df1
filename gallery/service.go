package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adeilh/gallery/blob"
	"github.com/adeilh/gallery/cache"
)

// Service serves the image list and per-image comment lists through a
// time-bounded cache and evicts the matching key after every successful
// write. There is no locking; concurrent evictions of the same key are
// harmless.
type Service struct {
	docs    DocumentStore
	blobs   blob.Store
	cache   cache.Store
	ttl     time.Duration
	now     func() time.Time
	metrics Recorder
}

// ServiceConfig wires dependencies for Service.
type ServiceConfig struct {
	Documents DocumentStore
	Blobs     blob.Store
	Cache     cache.Store
	TTL       time.Duration
	Recorder  Recorder
	Now       func() time.Time
}

// NewService validates cfg and builds a Service. Blobs may be nil when
// Upload is never called.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Documents == nil || cfg.Cache == nil {
		return nil, fmt.Errorf("%w: documents and cache are required", ErrInvalidInput)
	}
	svc := &Service{
		docs:    cfg.Documents,
		blobs:   cfg.Blobs,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		metrics: cfg.Recorder,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultCacheTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.metrics == nil {
		svc.metrics = nopRecorder{}
	}
	return svc, nil
}

// Images returns every image, newest first. A cache hit never touches the
// document store.
func (s *Service) Images(ctx context.Context) ([]Image, error) {
	return readThrough(ctx, s, CollectionImages, ImagesKey(), func(ctx context.Context) ([]Image, error) {
		return s.docs.ListImages(ctx)
	})
}

// Comments returns the comments of imageID, newest first.
func (s *Service) Comments(ctx context.Context, imageID string) ([]Comment, error) {
	return readThrough(ctx, s, CollectionComments, CommentsKey(imageID), func(ctx context.Context) ([]Comment, error) {
		return s.docs.ListComments(ctx, imageID)
	})
}

// RecordImage inserts img and evicts the image list. CreatedAt is stamped
// when the caller left it zero. When the insert fails the cache is untouched.
// An eviction failure is reported with ErrInvalidate next to the stored record.
func (s *Service) RecordImage(ctx context.Context, img Image) (Image, error) {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = s.now().UTC()
	}
	id, err := s.docs.InsertImage(ctx, img)
	if err != nil {
		return Image{}, fmt.Errorf("gallery: insert image: %w", err)
	}
	img.ID = id
	if err := s.invalidate(ctx, CollectionImages, ImagesKey()); err != nil {
		return img, err
	}
	return img, nil
}

// RecordComment inserts c and evicts the comment list of c.ImageID.
func (s *Service) RecordComment(ctx context.Context, c Comment) (Comment, error) {
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now().UTC()
	}
	id, err := s.docs.InsertComment(ctx, c)
	if err != nil {
		return Comment{}, fmt.Errorf("gallery: insert comment: %w", err)
	}
	c.ID = id
	if err := s.invalidate(ctx, CollectionComments, CommentsKey(c.ImageID)); err != nil {
		return c, err
	}
	return c, nil
}

// UploadInput carries a photo and its metadata.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	Caption     string
	Uploader    string
}

// Upload stores the photo in the object store, then records its metadata.
// If the record insert fails the stored object is left behind.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Image, error) {
	if s.blobs == nil {
		return Image{}, fmt.Errorf("%w: no object store configured", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return Image{}, fmt.Errorf("%w: empty upload", ErrInvalidInput)
	}
	now := s.now().UTC()
	name := blob.ObjectName(now, in.Filename)
	url, err := s.blobs.Put(ctx, name, in.ContentType, in.Data)
	if err != nil {
		return Image{}, fmt.Errorf("gallery: store object %s: %w", name, err)
	}
	log.Ctx(ctx).Debug().Str("object", name).Int("bytes", len(in.Data)).Msg("photo stored")

	return s.RecordImage(ctx, Image{
		URL:       url,
		Title:     in.Title,
		Caption:   in.Caption,
		Uploader:  in.Uploader,
		CreatedAt: now,
	})
}

// PostComment records a comment by userID on imageID.
func (s *Service) PostComment(ctx context.Context, imageID, userID, text string, rating int) (Comment, error) {
	if strings.TrimSpace(imageID) == "" {
		return Comment{}, fmt.Errorf("%w: image id is required", ErrInvalidInput)
	}
	return s.RecordComment(ctx, Comment{
		ImageID: imageID,
		UserID:  userID,
		Text:    text,
		Rating:  rating,
	})
}

func (s *Service) invalidate(ctx context.Context, collection, key string) error {
	if err := s.cache.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidate, key, err)
	}
	s.metrics.CacheInvalidated(collection)
	return nil
}

// readThrough implements the lookup shared by both read paths. Misses are not
// cached; an empty result is cached like any other value.
func readThrough[T any](ctx context.Context, s *Service, collection, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	logger := log.Ctx(ctx).With().Str("cache_key", key).Logger()

	payload, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached []T
		decodeErr := json.Unmarshal(payload, &cached)
		if decodeErr == nil && cached != nil {
			s.metrics.CacheHit(collection)
			return cached, nil
		}
		logger.Warn().Err(decodeErr).Msg("discarding undecodable cache entry")
	case errors.Is(err, cache.ErrNotFound):
	default:
		return nil, fmt.Errorf("gallery: cache get %s: %w", key, err)
	}

	s.metrics.CacheMiss(collection)
	items, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("gallery: load %s: %w", collection, err)
	}
	if items == nil {
		items = []T{}
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("gallery: encode %s: %w", collection, err)
	}
	if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
		logger.Warn().Err(err).Msg("cache populate failed")
	}
	return items, nil
}
