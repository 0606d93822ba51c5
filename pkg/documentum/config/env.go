package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies DOCUMENTUM_* environment variable overrides. Unset
// variables keep the current values.
//
//	DOCUMENTUM_PORT, DOCUMENTUM_ENVIRONMENT
//	DOCUMENTUM_DATABASE_URL     postgres://... selects the postgres store,
//	                            "memory" or empty keeps the in-memory one
//	DOCUMENTUM_DB_SCHEMA, DOCUMENTUM_LOCK_TIMEOUT (e.g. "5s")
//	DOCUMENTUM_EDIT_LOCK_TTL, DOCUMENTUM_ENFORCE_EDIT_LOCKS
//	DOCUMENTUM_STORAGE_URL      memory:// | file:///path | s3://bucket?region=..&endpoint=..&path_style=true
//	DOCUMENTUM_NATS_URL, DOCUMENTUM_NATS_SUBJECT_PREFIX
//	DOCUMENTUM_ENABLE_METRICS, DOCUMENTUM_API_KEY_SHA256
//	DOCUMENTUM_LOG_LEVEL, DOCUMENTUM_LOG_FORMAT
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		if err := applyDatabaseURL(c); err != nil {
			return err
		}
		if storageURL, ok := os.LookupEnv("DOCUMENTUM_STORAGE_URL"); ok && storageURL != "" {
			return applyStorageURL(storageURL, c)
		}
		return nil
	}
}

// applyDatabaseURL infers the database type from the URL scheme.
func applyDatabaseURL(c *ServerConfig) error {
	switch {
	case c.DatabaseURL == "":
	case c.DatabaseURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(c.DatabaseURL, "postgresql://"), strings.HasPrefix(c.DatabaseURL, "postgres://"):
		c.DatabaseType = "postgres"
	default:
		return fmt.Errorf("unsupported DATABASE_URL format (use 'memory' or 'postgresql://...')")
	}
	return nil
}

// applyStorageURL makes the backend described by raw the default one.
func applyStorageURL(raw string, c *ServerConfig) error {
	if raw == "memory" || raw == "memory://" {
		c.DefaultStorageBackend = "memory"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{Name: "memory", Type: "memory"})
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	var backend StorageBackendConfig
	switch u.Scheme {
	case "file":
		path := u.Host + u.Path
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		backend = StorageBackendConfig{Name: "fs", Type: "fs", Config: map[string]any{"base_dir": path}}

	case "s3":
		if u.Host == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		backend = StorageBackendConfig{Name: "s3", Type: "s3", Config: map[string]any{
			"bucket": u.Host,
			"region": "us-east-1",
		}}
		if v := q.Get("region"); v != "" {
			backend.Config["region"] = v
		}
		if v := q.Get("endpoint"); v != "" {
			backend.Config["endpoint"] = v
		}
		if v := q.Get("path_style"); v != "" {
			backend.Config["use_path_style"] = v
		}
		if v := q.Get("create_bucket"); v != "" {
			backend.Config["create_bucket_if_not_exist"] = v
		}
		// Credentials follow the AWS SDK conventions.
		if v, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && v != "" {
			backend.Config["access_key_id"] = v
		}
		if v, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && v != "" {
			backend.Config["secret_access_key"] = v
		}
		if v, ok := os.LookupEnv("AWS_REGION"); ok && v != "" && q.Get("region") == "" {
			backend.Config["region"] = v
		}

	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
	}

	c.DefaultStorageBackend = backend.Name
	c.StorageBackends = upsertStorageBackend(c.StorageBackends, backend)
	return nil
}
