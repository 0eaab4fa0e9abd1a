package minio

import (
	"context"
	"io"
	"net/url"
	"os"
	"testing"

	"github.com/hupe1980/knnbridge/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory(t *testing.T) {
	client, err := NewClient("localhost:9000", "minioadmin", "minioadmin", false)
	require.NoError(t, err)

	f := Factory(client)
	u, _ := url.Parse("minio://bucket/a/b.knn")
	store, name, err := f(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "a/b.knn", name)
	assert.Equal(t, "bucket", store.(*Store).bucket)

	u, _ = url.Parse("minio:///nobucket")
	_, _, err = f(context.Background(), u)
	assert.ErrorIs(t, err, blobstore.ErrInvalidLocation)
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "b", "root/")
	assert.Equal(t, "root/x", s.key("x"))
	assert.Equal(t, "x", NewStore(nil, "b", "").key("x"))
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	bucket := "test-knnbridge"

	client, err := NewClient(endpoint, "minioadmin", "minioadmin", false)
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	wb, err := store.Create(ctx, "stream.txt")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	blob, err := store.Open(ctx, "stream.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(13), blob.Size())

	content, err := io.ReadAll(blobstore.NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, "streamed data", string(content))

	require.NoError(t, store.Delete(ctx, "stream.txt"))
	_, err = store.Open(ctx, "stream.txt")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	wb, err = store.Create(ctx, "aborted.txt")
	require.NoError(t, err)
	require.NoError(t, wb.Abort())
	_, err = store.Open(ctx, "aborted.txt")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
