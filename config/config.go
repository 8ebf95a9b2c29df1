// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendAzure    = "azure"
	BackendFS       = "fs"

	AuthMock = "mock"
	AuthJWT  = "jwt"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Port            int           `env:"PORT" envDefault:"3000"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	StaticDir       string        `env:"STATIC_DIR"`

	Documents Documents
	Blobs     Blobs
	Cache     Cache
	Auth      Auth
}

type Documents struct {
	Backend     string `env:"DOCUMENT_BACKEND" envDefault:"memory"`
	CosmosConn  string `env:"COSMOS_CONN"`
	Database    string `env:"MONGO_DATABASE" envDefault:"ImageDB"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

type Blobs struct {
	Backend       string `env:"BLOB_BACKEND" envDefault:"fs"`
	StorageConn   string `env:"STORAGE_CONN"`
	Container     string `env:"BLOB_CONTAINER" envDefault:"images"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

type Cache struct {
	Backend  string        `env:"CACHE_BACKEND" envDefault:"memory"`
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"30s"`
}

type Auth struct {
	Mode      string   `env:"AUTH_MODE" envDefault:"mock"`
	UserID    string   `env:"MOCK_USER_ID" envDefault:"user-1"`
	UserName  string   `env:"MOCK_USER_NAME" envDefault:"Demo User"`
	UserEmail string   `env:"MOCK_USER_EMAIL" envDefault:"demo@example.com"`
	Roles     []string `env:"MOCK_ROLES" envSeparator:"," envDefault:"creator"`
	Secret    string   `env:"JWT_SECRET"`
	Issuer    string   `env:"JWT_ISSUER"`
	Audience  string   `env:"JWT_AUDIENCE"`
}

// Load reads .env when present, then parses the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse reads configuration from environ instead of the process environment.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Validate checks that every selected backend has what it needs.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}

	switch c.Documents.Backend {
	case BackendMongo:
		if strings.TrimSpace(c.Documents.CosmosConn) == "" {
			errs = append(errs, errors.New("COSMOS_CONN is required for the mongo backend"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Documents.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DOCUMENT_BACKEND %q", c.Documents.Backend))
	}

	switch c.Blobs.Backend {
	case BackendAzure:
		if strings.TrimSpace(c.Blobs.StorageConn) == "" {
			errs = append(errs, errors.New("STORAGE_CONN is required for the azure backend"))
		}
	case BackendFS:
		if strings.TrimSpace(c.Blobs.UploadDir) == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the fs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.Blobs.Backend))
	}

	switch c.Cache.Backend {
	case BackendRedis:
		if strings.TrimSpace(c.Cache.Addr) == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend))
	}

	switch c.Auth.Mode {
	case AuthMock:
		if strings.TrimSpace(c.Auth.UserID) == "" {
			errs = append(errs, errors.New("MOCK_USER_ID is required in mock mode"))
		}
	case AuthJWT:
		if c.Auth.Secret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in jwt mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
