// internal/services/storage_service_test.go
package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAssetStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalAssetStore(dir, "http://localhost:8080/")
	require.NoError(t, err)
	ctx := context.Background()

	key := GenerateAssetKey(FolderPreviews, ".JPG")
	assert.True(t, strings.HasPrefix(key, FolderPreviews+"/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	url, err := store.Put(ctx, key, []byte("bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/"+key, url)

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "bytes", string(data))

	_, err = store.PresignedURL(ctx, key, time.Minute)
	assert.True(t, errors.Is(err, ErrPresignUnsupported))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is fine")
	_, err = store.Open(ctx, key)
	assert.Error(t, err)
}

func TestLocalAssetStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalAssetStore(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.jpg", []byte("x"), "image/jpeg")
	assert.Error(t, err)
	_, err = store.Open(context.Background(), "")
	assert.Error(t, err)
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForKey("originals/a.JPEG"))
	assert.Equal(t, "image/webp", ContentTypeForKey("originals/a.webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeForKey("originals/a.bin"))
}
