package knnbridge

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

var defaultBridge = New()

// Default returns the Bridge behind the package-level functions.
func Default() *Bridge {
	return defaultBridge
}

// owner routes handle operations to the bridge that created h.
func owner(h *Handle) *Bridge {
	if h != nil && h.owner != nil {
		return h.owner
	}
	return defaultBridge
}

// InitLibrary initializes the native library. It must be called before any
// other operation; further calls are no-ops.
func InitLibrary() {
	defaultBridge.InitLibrary()
}

// BuildAndPersist builds an index with the default bridge.
// See Bridge.BuildAndPersist.
func BuildAndPersist(ctx context.Context, ids []int64, vectors [][]float32, persistPath string, buildParams []string, spaceType string) error {
	return defaultBridge.BuildAndPersist(ctx, ids, vectors, persistPath, buildParams, spaceType)
}

// LoadIndex loads an index with the default bridge. See Bridge.LoadIndex.
func LoadIndex(ctx context.Context, persistPath string, queryParams []string, spaceType string) (*Handle, error) {
	return defaultBridge.LoadIndex(ctx, persistPath, queryParams, spaceType)
}

// DeleteIndex removes a persisted index with the default bridge.
// See Bridge.DeleteIndex.
func DeleteIndex(ctx context.Context, persistPath string) error {
	return defaultBridge.DeleteIndex(ctx, persistPath)
}

// Query searches the index behind h. See Bridge.Query.
func Query(ctx context.Context, h *Handle, query []float32, k int) ([]Result, error) {
	return owner(h).Query(ctx, h, query, k)
}

// QueryFiltered searches the index behind h within an allow-list.
// See Bridge.QueryFiltered.
func QueryFiltered(ctx context.Context, h *Handle, query []float32, k int, allow *roaring64.Bitmap) ([]Result, error) {
	return owner(h).QueryFiltered(ctx, h, query, k, allow)
}

// Destroy releases the index behind h. See Bridge.Destroy.
func Destroy(h *Handle) error {
	return owner(h).Destroy(h)
}

// Stats describes the index behind h.
func Stats(h *Handle) (IndexStats, error) {
	return owner(h).Stats(h)
}
