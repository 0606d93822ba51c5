package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/documentum/pkg/documentum"
)

func TestFSBackend(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()

	b, err := New(Config{BaseDir: baseDir})
	require.NoError(t, err)

	key := "exports/abc/topics/rubrique-1.dita"
	require.NoError(t, b.Upload(ctx, key, strings.NewReader("<topic/>"), "application/xml"))

	_, err = os.Stat(filepath.Join(baseDir, "exports", "abc", "topics", "rubrique-1.dita"))
	require.NoError(t, err)

	meta, err := b.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(8), meta.Size)
	assert.Equal(t, key, meta.Key)

	rc, err := b.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "<topic/>", string(data))

	// Overwrite replaces content
	require.NoError(t, b.Upload(ctx, key, strings.NewReader("<topic id=\"x\"/>"), "application/xml"))
	meta, err = b.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(15), meta.Size)

	require.NoError(t, b.Delete(ctx, key))
	_, err = b.Download(ctx, key)
	assert.ErrorIs(t, err, documentum.ErrNotFound)

	// Empty parents are removed, base directory stays
	_, err = os.Stat(filepath.Join(baseDir, "exports"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(baseDir)
	assert.NoError(t, err)

	assert.NoError(t, b.Delete(ctx, key))
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	b, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		err := b.Upload(context.Background(), key, strings.NewReader("x"), "")
		assert.Error(t, err, key)
	}
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory is required")
}
