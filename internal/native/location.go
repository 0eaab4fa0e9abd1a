package native

import (
	"context"
	"io"
)

// Location is where an index is persisted. The engine opens and closes the
// streams itself.
type Location interface {
	Create(ctx context.Context) (io.WriteCloser, error)
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

type aborter interface {
	Abort() error
}

func abortWrite(w io.WriteCloser) {
	if a, ok := w.(aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}
