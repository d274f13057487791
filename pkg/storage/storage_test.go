package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	key := ReceiptKey(at, ".PNG")

	assert.True(t, strings.HasPrefix(key, "receipts/2026/03/01/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.NotEqual(t, key, ReceiptKey(at, "png"))
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Success - put then get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "receipts/2026/03/01/a.png", strings.NewReader("image-bytes"), "image/png"))

		rc, err := store.Get(ctx, "receipts/2026/03/01/a.png")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "image-bytes", string(data))
	})

	t.Run("Success - delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "receipts/2026/03/01/a.png"))
		require.NoError(t, store.Delete(ctx, "receipts/2026/03/01/a.png"))

		_, err := store.Get(ctx, "receipts/2026/03/01/a.png")
		assert.Error(t, err)
	})

	t.Run("Failure - keys cannot escape the root", func(t *testing.T) {
		err := store.Put(ctx, "../outside.png", strings.NewReader("x"), "")
		assert.Error(t, err)
	})
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestNew_S3RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "s3", AWSRegion: "eu-west-3"})
	assert.Error(t, err)
}
