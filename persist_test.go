package knnbridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/knnbridge/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullStore accepts Create but fails every write.
type fullStore struct {
	*blobstore.MemoryStore
	aborted atomic.Bool
	closed  atomic.Bool
}

func (s *fullStore) Create(context.Context, string) (blobstore.WritableBlob, error) {
	return &fullBlob{store: s}, nil
}

type fullBlob struct {
	store *fullStore
}

var errDiskFull = errors.New("no space left on device")

func (b *fullBlob) Write([]byte) (int, error) { return 0, errDiskFull }

func (b *fullBlob) Close() error {
	b.store.closed.Store(true)
	return nil
}

func (b *fullBlob) Abort() error {
	b.store.aborted.Store(true)
	return nil
}

type singleStoreResolver struct {
	store blobstore.BlobStore
}

func (r singleStoreResolver) Resolve(_ context.Context, location string) (blobstore.BlobStore, string, error) {
	return r.store, location, nil
}

func TestPersist_WriteFailureAborts(t *testing.T) {
	ctx := context.Background()
	store := &fullStore{MemoryStore: blobstore.NewMemoryStore()}
	b := New(WithStoreResolver(singleStoreResolver{store: store}))

	ids, vecs := randomVectors(10, 4, 11)
	err := b.BuildAndPersist(ctx, ids, vecs, "full.knn", nil, "l2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, errDiskFull)

	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Message, "Failed to write index full.knn")

	assert.True(t, store.aborted.Load())
	assert.False(t, store.closed.Load())
	assert.Zero(t, store.Len())
	assert.Zero(t, b.MemoryUsage())
}

func TestPersist_LevelRatioRejected(t *testing.T) {
	b := New()
	ids, vecs := randomVectors(5, 2, 12)
	path := filepath.Join(t.TempDir(), "ml.knn")

	err := b.BuildAndPersist(context.Background(), ids, vecs, path, []string{"ml=1"}, "l2")
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, KindOperationFailed, be.Kind)
	assert.Equal(t, "Parameter 'ml' must be in (0, 1), got '1'", be.Message)
	assert.NoFileExists(t, path)
	assert.Zero(t, b.MemoryUsage())
}

func TestDeleteIndex(t *testing.T) {
	ctx := context.Background()
	b := New()
	path := filepath.Join(t.TempDir(), "del.knn")

	ids, vecs := randomVectors(10, 3, 13)
	require.NoError(t, b.BuildAndPersist(ctx, ids, vecs, path, nil, "l2"))
	h, err := b.LoadIndex(ctx, path, nil, "l2")
	require.NoError(t, err)

	require.NoError(t, b.DeleteIndex(ctx, path))
	assert.NoFileExists(t, path)
	require.NoError(t, b.DeleteIndex(ctx, path))

	// Loaded handles keep working.
	res, err := b.Query(ctx, h, vecs[0], 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.NoError(t, b.Destroy(h))

	_, err = b.LoadIndex(ctx, path, nil, "l2")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.ErrorIs(t, b.DeleteIndex(ctx, "ftp://host/x.knn"), ErrInvalidArgument)
}

func TestDeleteIndex_Memory(t *testing.T) {
	ctx := context.Background()
	ids, vecs := randomVectors(4, 2, 14)

	require.NoError(t, BuildAndPersist(ctx, ids, vecs, "mem://deletes/a.knn", nil, "l2"))
	require.NoError(t, DeleteIndex(ctx, "mem://deletes/a.knn"))

	_, err := LoadIndex(ctx, "mem://deletes/a.knn", nil, "l2")
	assert.ErrorIs(t, err, ErrOperationFailed)
}
