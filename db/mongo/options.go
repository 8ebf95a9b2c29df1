package mongo

import "time"

// Options configures the MongoDB (or Cosmos DB for Mongo API) document store.
type Options struct {
	URI                string
	Database           string
	ImagesCollection   string
	CommentsCollection string
	ConnectTimeout     time.Duration
}

type Option func(*Options)

// WithURI sets the connection string.
func WithURI(uri string) Option {
	return func(o *Options) {
		if uri != "" {
			o.URI = uri
		}
	}
}

// WithDatabase overrides the database name.
func WithDatabase(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Database = name
		}
	}
}

// WithCollections overrides the images and comments collection names.
func WithCollections(images, comments string) Option {
	return func(o *Options) {
		if images != "" {
			o.ImagesCollection = images
		}
		if comments != "" {
			o.CommentsCollection = comments
		}
	}
}

// WithConnectTimeout bounds the initial connect and ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

func defaultOptions() Options {
	return Options{
		Database:           "ImageDB",
		ImagesCollection:   "Images",
		CommentsCollection: "Comments",
		ConnectTimeout:     10 * time.Second,
	}
}
