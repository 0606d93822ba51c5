// Package config builds a wired documentum.Service from defaults, a YAML
// file, the environment and functional options.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/events/natsevents"
	"github.com/tendant/documentum/pkg/documentum/metrics"
	"github.com/tendant/documentum/pkg/documentum/repo/memory"
	repopg "github.com/tendant/documentum/pkg/documentum/repo/postgres"
	fsstorage "github.com/tendant/documentum/pkg/documentum/storage/fs"
	memorystorage "github.com/tendant/documentum/pkg/documentum/storage/memory"
	s3storage "github.com/tendant/documentum/pkg/documentum/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DBSchema:              "documentum",
		LockTimeout:           repopg.DefaultLockTimeout,
		EditLockTTL:           30 * time.Minute,
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]any{},
			},
		},
		NATSSubjectPrefix:  natsevents.DefaultSubjectPrefix,
		EnableEventLogging: true,
		EnableMetrics:      true,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// ServerConfig is the configuration of a documentum server or admin tool.
type ServerConfig struct {
	Port        string `yaml:"port" env:"DOCUMENTUM_PORT"`
	Environment string `yaml:"environment" env:"DOCUMENTUM_ENVIRONMENT"` // development, production, testing

	// Content Store
	DatabaseType string        `yaml:"database_type" env:"DOCUMENTUM_DATABASE_TYPE"` // "memory", "postgres"
	DatabaseURL  string        `yaml:"database_url" env:"DOCUMENTUM_DATABASE_URL"`
	DBSchema     string        `yaml:"db_schema" env:"DOCUMENTUM_DB_SCHEMA"`
	LockTimeout  time.Duration `yaml:"lock_timeout" env:"DOCUMENTUM_LOCK_TIMEOUT"`

	// Rubrique edit locks
	EditLockTTL      time.Duration `yaml:"edit_lock_ttl" env:"DOCUMENTUM_EDIT_LOCK_TTL"`
	EnforceEditLocks bool          `yaml:"enforce_edit_locks" env:"DOCUMENTUM_ENFORCE_EDIT_LOCKS"`

	// Blob storage for media and exports
	DefaultStorageBackend string                 `yaml:"default_storage_backend" env:"DOCUMENTUM_DEFAULT_STORAGE_BACKEND"`
	StorageBackends       []StorageBackendConfig `yaml:"storage_backends"`

	// Audit events
	EnableEventLogging bool   `yaml:"enable_event_logging" env:"DOCUMENTUM_ENABLE_EVENT_LOGGING"`
	NATSURL            string `yaml:"nats_url" env:"DOCUMENTUM_NATS_URL"`
	NATSSubjectPrefix  string `yaml:"nats_subject_prefix" env:"DOCUMENTUM_NATS_SUBJECT_PREFIX"`

	EnableMetrics bool   `yaml:"enable_metrics" env:"DOCUMENTUM_ENABLE_METRICS"`
	APIKeySHA256  string `yaml:"api_key_sha256" env:"DOCUMENTUM_API_KEY_SHA256"`

	LogLevel  string `yaml:"log_level" env:"DOCUMENTUM_LOG_LEVEL"`   // debug, info, warn, error
	LogFormat string `yaml:"log_format" env:"DOCUMENTUM_LOG_FORMAT"` // text, json

	// Registerer receives the operation metrics. Nil means the default registerer.
	Registerer prometheus.Registerer `yaml:"-"`
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"` // "memory", "fs", "s3"
	Config map[string]any `yaml:"config"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.LockTimeout < 0 {
		return errors.New("lock_timeout cannot be negative")
	}
	if c.EditLockTTL < 0 {
		return errors.New("edit_lock_ttl cannot be negative")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unsupported log_level: %s", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported log_format: %s", c.LogFormat)
	}

	// Ensure default storage backend exists in configured backends
	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	return nil
}

// NewLogger returns a slog logger honouring LogLevel and LogFormat.
func (c *ServerConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// BuildService creates the Service described by the configuration. The
// returned cleanup func releases the database pool and NATS connection.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (documentum.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	options := []documentum.Option{
		documentum.WithLogger(logger),
		documentum.WithEditLockTTL(c.EditLockTTL),
		documentum.WithEditLockEnforcement(c.EnforceEditLocks),
	}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	closers = append(closers, closeRepo)
	options = append(options, documentum.WithRepository(repo))

	for _, backendConfig := range c.StorageBackends {
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, documentum.WithBlobStore(backendConfig.Name, store))
	}
	options = append(options, documentum.WithDefaultBlobStore(c.DefaultStorageBackend))

	var sinks documentum.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, documentum.LoggingEventSink{Logger: logger})
	}
	if c.NATSURL != "" {
		sink, err := natsevents.Connect(c.NATSURL, c.NATSSubjectPrefix)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := sink.Close(); err != nil {
				logger.Warn("failed to drain NATS connection", "error", err)
			}
		})
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		options = append(options, documentum.WithEventSink(sinks))
	}

	if c.EnableMetrics {
		options = append(options, documentum.WithObserver(metrics.New(c.Registerer)))
	}

	svc, err := documentum.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (documentum.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(memory.WithLockTimeout(c.LockTimeout)), func() {}, nil
	case "postgres":
		pool, err := c.OpenPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repopg.NewWithPool(pool, repopg.WithLockTimeout(c.LockTimeout)), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// OpenPool connects to Postgres with search_path set to DBSchema and
// verifies the connection.
func (c *ServerConfig) OpenPool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (documentum.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]any, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]any, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	if backend.Config == nil {
		backend.Config = map[string]any{}
	}
	for i := range backends {
		if backends[i].Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
