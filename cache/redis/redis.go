package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/gallery/cache"
)

// Options controls the go-redis client behind Store. Zero values take the
// defaults noted on each field.
type Options struct {
	Addr     string // 127.0.0.1:6379
	Password string
	DB       int
	// Prefix namespaces every key so several deployments can share a server.
	Prefix string
	// ClientName shows up in CLIENT LIST when set.
	ClientName  string
	DialTimeout time.Duration // 5s
	// IOTimeout bounds each read and write. Defaults to 2s.
	IOTimeout time.Duration
	PoolSize  int // 8
}

func (o Options) client() *goredis.Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = 2 * time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 8
	}
	return &goredis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           max(o.DB, 0),
		ClientName:   o.ClientName,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.IOTimeout,
		WriteTimeout: o.IOTimeout,
		PoolSize:     o.PoolSize,
	}
}

// Store implements cache.Store on top of go-redis.
type Store struct {
	client *goredis.Client
	prefix string
}

// NewStore builds a Redis-backed cache store. Connections are dialled lazily
// by the pool; call Ping to fail fast at startup.
func NewStore(opts Options) *Store {
	return &Store{client: goredis.NewClient(opts.client()), prefix: opts.Prefix}
}

// NewStoreFromClient wraps an existing client.
func NewStoreFromClient(client *goredis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: GET %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: SET %s: %w", key, err)
	}
	return nil
}

// Delete removes key. DEL on a missing key replies 0, which is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: DEL %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
