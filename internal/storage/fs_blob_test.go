package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
)

func TestFSBlobStore_PutGetDelete(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := VideoKey("01CHANNEL", "01VIDEO")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("mp4 bytes"), 9, "video/mp4"))

	_, err = os.Stat(filepath.Join(store.Root(), "videos", "01CHANNEL", "01VIDEO.mp4"))
	require.NoError(t, err)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "mp4 bytes", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrBlobNotFound)

	assert.NoError(t, store.Delete(ctx, key), "delete is idempotent")
}

func TestFSBlobStore_ShortBody(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = store.Put(ctx, "videos/c/v.mp4", bytes.NewReader([]byte("abc")), 10, "video/mp4")
	require.Error(t, err)

	_, err = store.Get(ctx, "videos/c/v.mp4")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFSBlobStore_CanceledContext(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Put(ctx, "videos/c/v.mp4", strings.NewReader("data"), 4, "video/mp4")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSBlobStore_RejectsBadKeys(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "/abs", "../up", "a/../../b", "a//b", "a\\b", "."} {
		err := store.Put(ctx, key, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "videos/ch/vid.mp4", VideoKey("ch", "vid"))
	assert.Equal(t, "thumbnails/ch/vid.jpg", ThumbnailKey("ch", "vid"))
	assert.NoError(t, ValidateKey(VideoKey("ch", "vid")))
}

func TestNew_SelectsBackend(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	store, err := New(context.Background(), config.StorageConfig{Backend: "fs", BaseDir: dir, BlobDir: "blobs"}, logger)
	require.NoError(t, err)
	fs, ok := store.(*FSBlobStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "blobs"), fs.Root())
	assert.Contains(t, logs.String(), "root="+fs.Root())

	_, err = New(context.Background(), config.StorageConfig{Backend: "ftp"}, nil)
	assert.Error(t, err)
}
