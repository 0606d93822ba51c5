package s3

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.NotNil(t, backend.uploader)
	})
}

// TestS3Backend_MinIO runs against a real S3-compatible endpoint, e.g.
// DOCUMENTUM_TEST_S3_ENDPOINT=http://localhost:9000 with minioadmin credentials.
func TestS3Backend_MinIO(t *testing.T) {
	endpoint := os.Getenv("DOCUMENTUM_TEST_S3_ENDPOINT")
	if testing.Short() || endpoint == "" {
		t.Skip("skipping S3 integration test; DOCUMENTUM_TEST_S3_ENDPOINT not set")
	}

	ctx := context.Background()
	backend, err := New(Config{
		Bucket:                 "documentum-test",
		Endpoint:               endpoint,
		AccessKeyID:            envOr("DOCUMENTUM_TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretAccessKey:        envOr("DOCUMENTUM_TEST_S3_SECRET_KEY", "minioadmin"),
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	key := "media/" + uuid.NewString() + "/schema.svg"
	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("<svg/>"), "image/svg+xml"))
	t.Cleanup(func() { _ = backend.Delete(context.Background(), key) })

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(6), meta.Size)
	assert.Equal(t, "image/svg+xml", meta.ContentType)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "<svg/>", string(data))

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.GetObjectMeta(ctx, key)
	assert.ErrorIs(t, err, documentum.ErrNotFound)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
