package config

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// WithFile overlays the YAML file at path. Keys absent from the file keep
// their current values; a storage_backends list replaces the configured one.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		for i := range c.StorageBackends {
			if c.StorageBackends[i].Config == nil {
				c.StorageBackends[i].Config = map[string]any{}
			}
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the Content Store backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithLockTimeout bounds how long a transaction waits for a row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d < 0 {
			return fmt.Errorf("lock timeout cannot be negative, got: %s", d)
		}
		c.LockTimeout = d
		return nil
	}
}

// WithEditLocks sets the edit-lock TTL (0 = locks never go stale) and
// whether updates are refused while another user holds a fresh lock.
func WithEditLocks(ttl time.Duration, enforce bool) Option {
	return func(c *ServerConfig) error {
		if ttl < 0 {
			return fmt.Errorf("edit lock TTL cannot be negative, got: %s", ttl)
		}
		c.EditLockTTL = ttl
		c.EnforceEditLocks = enforce
		return nil
	}
}

// WithDefaultStorage sets the default storage backend name
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("default storage backend name cannot be empty")
		}
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithStorageBackend adds or replaces a named storage backend.
func WithStorageBackend(name, backendType string, config map[string]any) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("storage backend name cannot be empty")
		}
		switch backendType {
		case "memory", "fs", "s3":
		default:
			return fmt.Errorf("unsupported storage backend type: %s", backendType)
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   name,
			Type:   backendType,
			Config: config,
		})
		return nil
	}
}

// WithFilesystemStorage adds a filesystem storage backend
// If name is empty, defaults to "fs"
func WithFilesystemStorage(name, baseDir string) Option {
	if name == "" {
		name = "fs"
	}
	if baseDir == "" {
		return func(*ServerConfig) error {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
	}
	return WithStorageBackend(name, "fs", map[string]any{"base_dir": baseDir})
}

// WithS3Storage adds an S3 storage backend
// If name is empty, defaults to "s3"
func WithS3Storage(name, bucket, region string) Option {
	if name == "" {
		name = "s3"
	}
	if bucket == "" {
		return func(*ServerConfig) error {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
	}
	if region == "" {
		region = "us-east-1"
	}
	return WithStorageBackend(name, "s3", map[string]any{"bucket": bucket, "region": region})
}

// WithNATS publishes audit events to the NATS server at url.
func WithNATS(url, subjectPrefix string) Option {
	return func(c *ServerConfig) error {
		c.NATSURL = url
		if subjectPrefix != "" {
			c.NATSSubjectPrefix = subjectPrefix
		}
		return nil
	}
}

// WithMetrics toggles the Prometheus operation metrics.
func WithMetrics(enabled bool, reg prometheus.Registerer) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		c.Registerer = reg
		return nil
	}
}

// WithEventLogging toggles logging of audit events.
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithLogging sets the log level and format.
func WithLogging(level, format string) Option {
	return func(c *ServerConfig) error {
		if level != "" {
			c.LogLevel = level
		}
		if format != "" {
			c.LogFormat = format
		}
		return nil
	}
}

// WithAPIKeySHA256 sets the hex SHA-256 of the accepted API key.
func WithAPIKeySHA256(hash string) Option {
	return func(c *ServerConfig) error {
		c.APIKeySHA256 = hash
		return nil
	}
}
