// Package mongo implements gallery.DocumentStore on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adeilh/gallery/gallery"
)

var ErrMissingURI = errors.New("mongo: URI is required")

// Store persists images and comments in two collections.
type Store struct {
	client   *mongo.Client
	images   *mongo.Collection
	comments *mongo.Collection
}

type imageDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Title     string        `bson:"title"`
	Caption   string        `bson:"caption"`
	URL       string        `bson:"url"`
	Uploader  string        `bson:"uploader"`
	CreatedAt time.Time     `bson:"createdAt"`
}

type commentDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ImageID   string        `bson:"imageId"`
	UserID    string        `bson:"userId"`
	Text      string        `bson:"text"`
	Rating    int           `bson:"rating"`
	Timestamp time.Time     `bson:"timestamp"`
}

// Open connects, pings, and returns a Store. Close must be called on shutdown.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.URI == "" {
		return nil, ErrMissingURI
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		client:   client,
		images:   db.Collection(cfg.ImagesCollection),
		comments: db.Collection(cfg.CommentsCollection),
	}, nil
}

// EnsureIndexes creates the indexes backing the two list queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.images.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("mongo: images index: %w", err)
	}
	if _, err := s.comments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "imageId", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		return fmt.Errorf("mongo: comments index: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) InsertImage(ctx context.Context, img gallery.Image) (string, error) {
	res, err := s.images.InsertOne(ctx, imageDoc{
		Title:     img.Title,
		Caption:   img.Caption,
		URL:       img.URL,
		Uploader:  img.Uploader,
		CreatedAt: img.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("mongo: insert image: %w", err)
	}
	return insertedID(res.InsertedID), nil
}

func (s *Store) ListImages(ctx context.Context) ([]gallery.Image, error) {
	cur, err := s.images.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find images: %w", err)
	}
	var docs []imageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode images: %w", err)
	}
	out := make([]gallery.Image, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toImage())
	}
	return out, nil
}

func (s *Store) InsertComment(ctx context.Context, c gallery.Comment) (string, error) {
	res, err := s.comments.InsertOne(ctx, commentDoc{
		ImageID:   c.ImageID,
		UserID:    c.UserID,
		Text:      c.Text,
		Rating:    c.Rating,
		Timestamp: c.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("mongo: insert comment: %w", err)
	}
	return insertedID(res.InsertedID), nil
}

func (s *Store) ListComments(ctx context.Context, imageID string) ([]gallery.Comment, error) {
	cur, err := s.comments.Find(ctx,
		bson.D{{Key: "imageId", Value: imageID}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: find comments: %w", err)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode comments: %w", err)
	}
	out := make([]gallery.Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toComment())
	}
	return out, nil
}

func (d imageDoc) toImage() gallery.Image {
	return gallery.Image{
		ID:        d.ID.Hex(),
		URL:       d.URL,
		Title:     d.Title,
		Caption:   d.Caption,
		Uploader:  d.Uploader,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (d commentDoc) toComment() gallery.Comment {
	return gallery.Comment{
		ID:        d.ID.Hex(),
		ImageID:   d.ImageID,
		UserID:    d.UserID,
		Text:      d.Text,
		Rating:    d.Rating,
		Timestamp: d.Timestamp.UTC(),
	}
}

func insertedID(v any) string {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(v)
	}
}
