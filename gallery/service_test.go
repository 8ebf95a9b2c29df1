package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/gallery/cache"
	"github.com/adeilh/gallery/cache/memory"
)

// countingStore is an in-memory DocumentStore that counts list queries.
type countingStore struct {
	mu           sync.Mutex
	images       []Image
	comments     []Comment
	nextID       int
	imageLists   int
	commentLists int
	insertErr    error
	listErr      error
}

func (s *countingStore) InsertImage(_ context.Context, img Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.nextID++
	img.ID = fmt.Sprintf("img-%d", s.nextID)
	s.images = append(s.images, img)
	return img.ID, nil
}

func (s *countingStore) ListImages(context.Context) ([]Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageLists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := append([]Image(nil), s.images...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *countingStore) InsertComment(_ context.Context, c Comment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.nextID++
	c.ID = fmt.Sprintf("c-%d", s.nextID)
	s.comments = append(s.comments, c)
	return c.ID, nil
}

func (s *countingStore) ListComments(_ context.Context, imageID string) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commentLists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Comment
	for _, c := range s.comments {
		if c.ImageID == imageID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type countingRecorder struct {
	hits, misses, invalidations map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}, misses: map[string]int{}, invalidations: map[string]int{}}
}

func (r *countingRecorder) CacheHit(c string)         { r.hits[c]++ }
func (r *countingRecorder) CacheMiss(c string)        { r.misses[c]++ }
func (r *countingRecorder) CacheInvalidated(c string) { r.invalidations[c]++ }

type fixture struct {
	svc   *Service
	docs  *countingStore
	cache *memory.Store
	clock *fakeClock
	rec   *countingRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	docs := &countingStore{}
	store := memory.New(memory.WithClock(clock.Now))
	rec := newCountingRecorder()
	svc, err := NewService(ServiceConfig{
		Documents: docs,
		Cache:     store,
		TTL:       30 * time.Second,
		Recorder:  rec,
		Now:       clock.Now,
	})
	require.NoError(t, err)
	return fixture{svc: svc, docs: docs, cache: store, clock: clock, rec: rec}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceConfig{Cache: memory.New()})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewService(ServiceConfig{Documents: &countingStore{}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestImagesServedFromCacheWithinTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordImage(ctx, Image{Title: "A"})
	require.NoError(t, err)

	first, err := f.svc.Images(ctx)
	require.NoError(t, err)

	f.clock.Advance(29 * time.Second)
	second, err := f.svc.Images(ctx)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, 1, f.docs.imageLists, "second read must be a cache hit")
	assert.Equal(t, 1, f.rec.hits[CollectionImages])
	assert.Equal(t, 1, f.rec.misses[CollectionImages])
}

func TestImagesRefreshAfterTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Images(ctx)
	require.NoError(t, err)

	// A write that bypasses the service is only seen once the entry expires.
	_, _ = f.docs.InsertImage(ctx, Image{Title: "direct", CreatedAt: f.clock.Now()})

	stale, err := f.svc.Images(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)

	f.clock.Advance(30 * time.Second)
	fresh, err := f.svc.Images(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, 2, f.docs.imageLists)
}

func TestRecordImageInvalidatesList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.RecordImage(ctx, Image{Title: "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	list, err := f.svc.Images(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Title)

	f.clock.Advance(time.Second)
	_, err = f.svc.RecordImage(ctx, Image{Title: "B"})
	require.NoError(t, err)

	list, err = f.svc.Images(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].Title)
	assert.Equal(t, "A", list[1].Title)
	assert.Equal(t, 2, f.docs.imageLists)
	assert.Equal(t, 2, f.rec.invalidations[CollectionImages])
}

func TestRecordImageKeepsCallerTimestamp(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	img, err := f.svc.RecordImage(context.Background(), Image{Title: "old", CreatedAt: at})
	require.NoError(t, err)
	assert.True(t, img.CreatedAt.Equal(at))
}

func TestRecordImageFailureLeavesCacheIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Images(ctx)
	require.NoError(t, err)

	f.docs.insertErr = errors.New("insert refused")
	_, err = f.svc.RecordImage(ctx, Image{Title: "X"})
	require.Error(t, err)

	_, err = f.cache.Get(ctx, ImagesKey())
	require.NoError(t, err, "cache entry must survive a failed insert")
	assert.Zero(t, f.rec.invalidations[CollectionImages])
}

func TestCommentsScopedToImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostComment(ctx, "img1", "u1", "nice", 5)
	require.NoError(t, err)
	_, err = f.svc.PostComment(ctx, "img2", "u1", "meh", 2)
	require.NoError(t, err)

	for _, id := range []string{"img1", "img2", "img3"} {
		comments, err := f.svc.Comments(ctx, id)
		require.NoError(t, err)
		for _, c := range comments {
			assert.Equal(t, id, c.ImageID)
		}
	}
}

func TestEmptyCommentsAreCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Comments(ctx, "img1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Empty(t, first)

	second, err := f.svc.Comments(ctx, "img1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Empty(t, second)
	assert.Equal(t, 1, f.docs.commentLists)

	raw, err := f.cache.Get(ctx, CommentsKey("img1"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestRecordCommentInvalidatesOnlyItsImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Comments(ctx, "img1")
	_, _ = f.svc.Comments(ctx, "img2")
	_, _ = f.svc.Images(ctx)

	c, err := f.svc.PostComment(ctx, "img1", "u1", "great", 4)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.Timestamp.IsZero())

	_, err = f.cache.Get(ctx, CommentsKey("img1"))
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = f.cache.Get(ctx, CommentsKey("img2"))
	assert.NoError(t, err)
	_, err = f.cache.Get(ctx, ImagesKey())
	assert.NoError(t, err)

	comments, err := f.svc.Comments(ctx, "img1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "great", comments[0].Text)
}

func TestCommentsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.PostComment(ctx, "img1", "u1", "first", 3)
	f.clock.Advance(time.Minute)
	_, _ = f.svc.PostComment(ctx, "img1", "u2", "second", 4)

	comments, err := f.svc.Comments(ctx, "img1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Text)
}

func TestPostCommentRequiresImageID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PostComment(context.Background(), " ", "u1", "x", 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvalidateAbsentKeyIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cache.Get(ctx, ImagesKey())
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, err = f.svc.RecordImage(ctx, Image{Title: "A"})
	require.NoError(t, err)
}

type scriptedCache struct {
	getErr, setErr, delErr error
	payload                []byte
	sets                   int
}

func (c *scriptedCache) Get(context.Context, string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.payload == nil {
		return nil, cache.ErrNotFound
	}
	return c.payload, nil
}

func (c *scriptedCache) Set(_ context.Context, _ string, v []byte, _ time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.payload = v
	return nil
}

func (c *scriptedCache) Delete(context.Context, string) error { return c.delErr }

func newScriptedService(t *testing.T, c *scriptedCache, docs *countingStore) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Documents: docs, Cache: c})
	require.NoError(t, err)
	return svc
}

func TestCacheReadFailurePropagates(t *testing.T) {
	docs := &countingStore{}
	svc := newScriptedService(t, &scriptedCache{getErr: errors.New("redis down")}, docs)

	_, err := svc.Images(context.Background())
	require.Error(t, err)
	assert.Zero(t, docs.imageLists)
}

func TestCachePopulateFailureStillReturnsData(t *testing.T) {
	docs := &countingStore{}
	_, _ = docs.InsertImage(context.Background(), Image{Title: "A"})
	svc := newScriptedService(t, &scriptedCache{setErr: errors.New("readonly")}, docs)

	images, err := svc.Images(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestUndecodableCacheEntryIsReplaced(t *testing.T) {
	docs := &countingStore{}
	c := &scriptedCache{payload: []byte("{not json")}
	svc := newScriptedService(t, c, docs)

	images, err := svc.Images(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Equal(t, 1, docs.imageLists)
	assert.Equal(t, "[]", string(c.payload))
}

func TestStoreReadFailureIsNotCached(t *testing.T) {
	docs := &countingStore{listErr: errors.New("mongo down")}
	c := &scriptedCache{}
	svc := newScriptedService(t, c, docs)

	_, err := svc.Comments(context.Background(), "img1")
	require.Error(t, err)
	assert.Zero(t, c.sets)
}

func TestInvalidationFailureReturnsRecord(t *testing.T) {
	docs := &countingStore{}
	svc := newScriptedService(t, &scriptedCache{delErr: errors.New("redis down")}, docs)

	img, err := svc.RecordImage(context.Background(), Image{Title: "A"})
	require.ErrorIs(t, err, ErrInvalidate)
	assert.NotEmpty(t, img.ID)
}

func TestInvalidationToleratesNotFound(t *testing.T) {
	docs := &countingStore{}
	svc := newScriptedService(t, &scriptedCache{delErr: cache.ErrNotFound}, docs)

	_, err := svc.RecordComment(context.Background(), Comment{ImageID: "img1"})
	require.NoError(t, err)
}
