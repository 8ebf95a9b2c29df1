package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adeilh/gallery/api"
	"github.com/adeilh/gallery/auth"
	"github.com/adeilh/gallery/blob"
	"github.com/adeilh/gallery/blob/azure"
	"github.com/adeilh/gallery/blob/fs"
	"github.com/adeilh/gallery/cache"
	cachememory "github.com/adeilh/gallery/cache/memory"
	"github.com/adeilh/gallery/cache/redis"
	"github.com/adeilh/gallery/config"
	docmemory "github.com/adeilh/gallery/db/memory"
	"github.com/adeilh/gallery/db/mongo"
	"github.com/adeilh/gallery/db/sql/postgres"
	"github.com/adeilh/gallery/gallery"
	"github.com/adeilh/gallery/httpx"
	"github.com/adeilh/gallery/logging"
	"github.com/adeilh/gallery/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("gallery stopped")
	}
	log.Info().Msg("gallery stopped")
}

// closers run in reverse registration order on shutdown.
type closers []func(context.Context) error

func (c *closers) add(fn func(context.Context) error) { *c = append(*c, fn) }

func (c closers) close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](ctx); err != nil {
			log.Warn().Err(err).Msg("close dependency")
		}
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var cleanup closers
	defer func() { cleanup.close(cfg.ShutdownTimeout) }()

	health := map[string]api.HealthCheck{}

	docs, err := openDocuments(ctx, cfg.Documents, &cleanup, health)
	if err != nil {
		return err
	}
	blobs, uploadDir, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openCache(ctx, cfg.Cache, &cleanup, health)
	if err != nil {
		return err
	}
	authn, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}

	mod, err := metrics.New(metrics.Options{})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	svc, err := gallery.NewService(gallery.ServiceConfig{
		Documents: docs,
		Blobs:     blobs,
		Cache:     store,
		TTL:       cfg.Cache.TTL,
		Recorder:  mod,
	})
	if err != nil {
		return err
	}

	authMW, err := auth.NewMiddleware(authn, auth.WithAnonymous())
	if err != nil {
		return err
	}

	cors := httpx.DefaultCORSConfig
	cors.AllowOrigins = cfg.CORSOrigins
	server := httpx.NewServer(
		httpx.WithAddress(cfg.Addr()),
		httpx.WithBodyLimit(cfg.MaxUploadBytes),
		httpx.WithMiddlewares(httpx.RecoverMiddleware(), httpx.RequestLogger(mod), httpx.AuthMiddleware(authMW)),
		httpx.WithCORS(&cors),
	)
	server.RegisterRoutes(func(a *httpx.App) {
		api.Register(a, api.Deps{
			Gallery:   svc,
			Metrics:   mod.Handler(),
			UploadDir: uploadDir,
			StaticDir: cfg.StaticDir,
			Health:    health,
		})
	})

	log.Info().
		Str("documents", cfg.Documents.Backend).
		Str("blobs", cfg.Blobs.Backend).
		Str("cache", cfg.Cache.Backend).
		Str("auth", cfg.Auth.Mode).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("gallery starting")

	return server.Start(ctx, httpx.WithShutdownTimeout(cfg.ShutdownTimeout))
}

func openDocuments(ctx context.Context, cfg config.Documents, cleanup *closers, health map[string]api.HealthCheck) (gallery.DocumentStore, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		store, err := mongo.Open(ctx, mongo.WithURI(cfg.CosmosConn), mongo.WithDatabase(cfg.Database))
		if err != nil {
			return nil, err
		}
		cleanup.add(store.Close)
		if err := store.EnsureIndexes(ctx); err != nil {
			// Cosmos accounts may reject index management; queries still work.
			log.Warn().Err(err).Msg("mongo indexes not ensured")
		}
		health["documents"] = store.Ping
		return store, nil
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, postgres.WithDSN(cfg.PostgresDSN))
		if err != nil {
			return nil, err
		}
		cleanup.add(func(context.Context) error { return db.Close() })
		if err := postgres.Migrate(ctx, db, postgres.Schema...); err != nil {
			return nil, err
		}
		health["documents"] = db.PingContext
		return postgres.NewGalleryRepository(db), nil
	default:
		log.Warn().Msg("using in-memory document store; records are lost on restart")
		return docmemory.New(), nil
	}
}

func openBlobs(ctx context.Context, cfg config.Config) (blob.Store, string, error) {
	if cfg.Blobs.Backend == config.BackendAzure {
		store, err := azure.New(cfg.Blobs.StorageConn, cfg.Blobs.Container)
		if err != nil {
			return nil, "", err
		}
		if err := store.EnsureContainer(ctx); err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	base := strings.TrimRight(cfg.Blobs.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	store, err := fs.New(cfg.Blobs.UploadDir, base+"/uploads")
	if err != nil {
		return nil, "", err
	}
	return store, store.Dir(), nil
}

func openCache(ctx context.Context, cfg config.Cache, cleanup *closers, health map[string]api.HealthCheck) (cache.Store, error) {
	if cfg.Backend != config.BackendRedis {
		return cachememory.New(), nil
	}
	store := redis.NewStore(redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   "gallery:",
	})
	cleanup.add(func(context.Context) error { return store.Close() })
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	health["cache"] = store.Ping
	return store, nil
}

func newAuthenticator(cfg config.Auth) (auth.Authenticator, error) {
	if cfg.Mode == config.AuthJWT {
		return auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:    []byte(cfg.Secret),
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			Extractor: auth.ChainExtractors(auth.BearerTokenExtractor(), auth.CookieTokenExtractor("gallery_token")),
		})
	}
	log.Warn().Strs("roles", cfg.Roles).Msg("mock authentication enabled; every request is the same user")
	return auth.NewStaticAuthenticator(auth.Identity{
		ID:    cfg.UserID,
		Name:  cfg.UserName,
		Email: cfg.UserEmail,
		Roles: cfg.Roles,
	}), nil
}
