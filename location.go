package knnbridge

import (
	"context"
	"io"

	"github.com/hupe1980/knnbridge/blobstore"
	"github.com/hupe1980/knnbridge/internal/native"
)

// blobLocation adapts a blob in a store to the native persistence target.
type blobLocation struct {
	store blobstore.BlobStore
	name  string
	raw   string
}

var _ native.Location = blobLocation{}

func (l blobLocation) Create(ctx context.Context) (io.WriteCloser, error) {
	return l.store.Create(ctx, l.name)
}

func (l blobLocation) Open(ctx context.Context) (io.ReadCloser, error) {
	blob, err := l.store.Open(ctx, l.name)
	if err != nil {
		return nil, err
	}
	return blobstore.NewReader(blob), nil
}

func (l blobLocation) String() string {
	return l.raw
}

func (b *Bridge) locate(ctx context.Context, persistPath string) (native.Location, error) {
	store, name, err := b.resolver.Resolve(ctx, persistPath)
	if err != nil {
		return nil, err
	}
	return blobLocation{store: store, name: name, raw: persistPath}, nil
}
