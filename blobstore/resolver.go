package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrInvalidLocation is returned for empty or unparsable locations.
	ErrInvalidLocation = errors.New("blobstore: invalid location")
	// ErrUnsupportedScheme is returned when no factory handles a URI scheme.
	ErrUnsupportedScheme = errors.New("blobstore: unsupported scheme")
)

// Resolver maps a persist location to a store and a blob name.
type Resolver interface {
	Resolve(ctx context.Context, location string) (BlobStore, string, error)
}

// Factory builds the store for a parsed location URI and returns the blob
// name within it.
type Factory func(ctx context.Context, u *url.URL) (BlobStore, string, error)

var sharedMemory = NewMemoryStore()

// SharedMemoryStore returns the process-wide store behind mem:// locations.
func SharedMemoryStore() *MemoryStore {
	return sharedMemory
}

// SchemeResolver dispatches on the URI scheme. Locations without a scheme
// are treated as local file paths.
type SchemeResolver struct {
	mu        sync.RWMutex
	local     *LocalStore
	factories map[string]Factory
}

// NewResolver returns a resolver that understands local paths, file:// and
// mem:// locations.
func NewResolver() *SchemeResolver {
	r := &SchemeResolver{
		local:     NewLocalStore(""),
		factories: make(map[string]Factory),
	}
	r.Register("file", func(_ context.Context, u *url.URL) (BlobStore, string, error) {
		if u.Path == "" {
			return nil, "", fmt.Errorf("%w: %s", ErrInvalidLocation, u)
		}
		return r.local, filepath.FromSlash(u.Path), nil
	})
	r.Register("mem", func(_ context.Context, u *url.URL) (BlobStore, string, error) {
		name := u.Host + u.Path
		if name == "" {
			return nil, "", fmt.Errorf("%w: %s", ErrInvalidLocation, u)
		}
		return sharedMemory, name, nil
	})
	return r
}

// Register installs f for scheme, replacing any previous factory.
func (r *SchemeResolver) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = f
}

// Resolve implements Resolver.
func (r *SchemeResolver) Resolve(ctx context.Context, location string) (BlobStore, string, error) {
	if strings.TrimSpace(location) == "" {
		return nil, "", ErrInvalidLocation
	}
	if !strings.Contains(location, "://") {
		return r.local, location, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(u.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f(ctx, u)
}

// BucketKey splits a bucket-style URI (scheme://bucket/key) into its parts.
func BucketKey(u *url.URL) (string, string, error) {
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidLocation, u)
	}
	return u.Host, key, nil
}
