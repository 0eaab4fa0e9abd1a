package blobstore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrAborted is reported to readers of a write that was aborted.
var ErrAborted = errors.New("blobstore: write aborted")

// BlobStore is an abstraction for reading and writing persisted blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a write that is committed by Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is an in-progress write.
type WritableBlob interface {
	io.Writer
	// Close commits the blob.
	Close() error
	// Abort discards the write. Abort after Close is a no-op.
	Abort() error
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

const readBufferSize = 1 << 20

type blobReader struct {
	io.Reader
	blob Blob
}

func (r *blobReader) Close() error {
	return r.blob.Close()
}

// NewReader returns a sequential reader over b that closes b when closed.
// Mappable blobs are read from their mapping without an extra buffer.
func NewReader(b Blob) io.ReadCloser {
	if m, ok := b.(Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			return &blobReader{Reader: bytes.NewReader(data), blob: b}
		}
	}

	size := int(min(b.Size(), readBufferSize))
	if size <= 0 {
		size = 16
	}
	return &blobReader{
		Reader: bufio.NewReaderSize(io.NewSectionReader(b, 0, b.Size()), size),
		blob:   b,
	}
}
