package knnbridge

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/knnbridge/blobstore"
	"github.com/hupe1980/knnbridge/internal/native"
	"github.com/hupe1980/knnbridge/internal/packer"
	"github.com/hupe1980/knnbridge/internal/registry"
	"github.com/hupe1980/knnbridge/internal/resource"
)

const (
	opBuild          = "BuildAndPersist"
	opBuildFromBatch = "BuildFromBatch"
	opLoad           = "LoadIndex"
	opQuery          = "Query"
	opQueryFiltered  = "QueryFiltered"
	opDestroy        = "Destroy"
	opTransfer       = "TransferVectors"
	opStats          = "Stats"
	opDelete         = "DeleteIndex"
)

// Bridge owns the handle registry and the resources shared by operations.
// A Bridge is safe for concurrent use; operations on the same handle must be
// serialized by the caller.
type Bridge struct {
	opts     options
	rc       *resource.Controller
	resolver blobstore.Resolver
	handles  *registry.Registry[*native.IndexWrapper]
}

// New creates a Bridge.
func New(optFns ...Option) *Bridge {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	resolver := opts.resolver
	if resolver == nil {
		resolver = blobstore.NewResolver()
	}

	return &Bridge{
		opts: opts,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   opts.memoryLimit,
			IOLimitBytesPerSec: opts.ioRateLimit,
		}),
		resolver: resolver,
		handles:  registry.New[*native.IndexWrapper](),
	}
}

// InitLibrary initializes the native library. It is process-wide and
// idempotent.
func (b *Bridge) InitLibrary() {
	native.InitLibrary()
}

// MemoryUsage returns the native memory currently held through b.
func (b *Bridge) MemoryUsage() int64 {
	return b.rc.MemoryUsage()
}

// LiveHandles returns the number of loaded, not yet destroyed indexes.
func (b *Bridge) LiveHandles() int {
	return b.handles.Len()
}

// ready reports a missing initialization or a pending caller failure.
func ready(ctx context.Context) error {
	if !native.Initialized() {
		return ErrNotInitialized
	}
	return checkpoint(ctx, nil)
}

// checkpoint surfaces caller-side failures before the next native call.
func checkpoint(ctx context.Context, src VectorSource) error {
	if err := ctx.Err(); err != nil {
		return &pendingFailure{err: err}
	}
	if src != nil {
		if err := src.Err(); err != nil {
			return &pendingFailure{err: err}
		}
	}
	return nil
}

// BuildAndPersist builds an index over ids and vectors and persists it at
// persistPath. No handle is retained.
func (b *Bridge) BuildAndPersist(ctx context.Context, ids []int64, vectors [][]float32, persistPath string, buildParams []string, spaceType string) error {
	if len(ids) != len(vectors) {
		err := translate(opBuild, ErrLengthMismatch)
		b.opts.metricsCollector.RecordBuild(0, 0, err)
		b.opts.logger.LogBuild(ctx, persistPath, spaceType, len(ids), 0, err)
		return err
	}
	return b.build(ctx, opBuild, Records(ids, vectors), persistPath, buildParams, spaceType)
}

// Build is BuildAndPersist over an arbitrary VectorSource.
func (b *Bridge) Build(ctx context.Context, src VectorSource, persistPath string, buildParams []string, spaceType string) error {
	return b.build(ctx, opBuild, src, persistPath, buildParams, spaceType)
}

func (b *Bridge) build(ctx context.Context, op string, src VectorSource, persistPath string, buildParams []string, spaceType string) error {
	start := time.Now()
	count, dim := 0, 0

	err := guard(op, func() error {
		if err := ready(ctx); err != nil {
			return err
		}

		var err error
		dim, err = packer.Validate(src)
		if err != nil {
			return err
		}
		count = src.Len()

		loc, err := b.locate(ctx, persistPath)
		if err != nil {
			return err
		}

		space, err := native.NewSpace(spaceType)
		if err != nil {
			return err
		}
		defer space.Release()

		if err := checkpoint(ctx, src); err != nil {
			return err
		}

		buf, err := packer.Pack(src, b.rc)
		if err != nil {
			return err
		}
		defer buf.Release()

		return b.createAndSave(ctx, space, buf, loc, buildParams)
	})

	b.opts.metricsCollector.RecordBuild(count, time.Since(start), err)
	b.opts.logger.LogBuild(ctx, persistPath, spaceType, count, dim, err)
	return err
}

// createAndSave builds the graph over buf and persists it. The index and
// the record views are released before returning, the buffer and the space
// stay with the caller.
func (b *Bridge) createAndSave(ctx context.Context, space *native.Space, buf *packer.Buffer, loc native.Location, params []string) error {
	objs := buf.Objects()
	defer native.ReleaseObjects(objs)

	index, err := native.NewIndex(space, objs, b.rc)
	if err != nil {
		return err
	}
	defer index.Release()

	if err := index.CreateIndex(params); err != nil {
		return err
	}
	if err := checkpoint(ctx, nil); err != nil {
		return err
	}
	return index.SaveIndex(ctx, loc)
}

// LoadIndex loads the index persisted at persistPath and applies the
// query-time parameters.
func (b *Bridge) LoadIndex(ctx context.Context, persistPath string, queryParams []string, spaceType string) (*Handle, error) {
	start := time.Now()
	var h *Handle

	err := guard(opLoad, func() error {
		if err := ready(ctx); err != nil {
			return err
		}

		loc, err := b.locate(ctx, persistPath)
		if err != nil {
			return err
		}

		w, err := native.NewIndexWrapper(spaceType, b.rc)
		if err != nil {
			return err
		}
		registered := false
		defer func() {
			if !registered {
				w.Release()
			}
		}()

		if err := w.Index().LoadIndex(ctx, loc); err != nil {
			return err
		}
		if err := checkpoint(ctx, nil); err != nil {
			return err
		}
		if err := w.Index().SetQueryTimeParams(queryParams); err != nil {
			return err
		}

		nh := &Handle{owner: b, space: spaceType}
		nh.id.Store(b.handles.Register(w))
		registered = true
		h = nh
		return nil
	})
	if err != nil {
		h = nil
	}

	b.opts.metricsCollector.RecordLoad(time.Since(start), err)
	b.opts.logger.LogLoad(ctx, persistPath, spaceType, h.ID(), err)
	return h, err
}

func (b *Bridge) lookup(h *Handle) (*native.IndexWrapper, error) {
	if h == nil || h.owner != b {
		return nil, ErrInvalidHandle
	}
	id := h.id.Load()
	if id == 0 {
		return nil, ErrInvalidHandle
	}
	w, ok := b.handles.Lookup(id)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return w, nil
}

// Query returns up to k nearest neighbors of query, nearest first.
func (b *Bridge) Query(ctx context.Context, h *Handle, query []float32, k int) ([]Result, error) {
	return b.query(ctx, opQuery, h, query, k, nil)
}

// QueryFiltered is Query restricted to ids contained in allow. A nil allow
// list does not restrict results; negative ids never match a non-nil one.
func (b *Bridge) QueryFiltered(ctx context.Context, h *Handle, query []float32, k int, allow *roaring64.Bitmap) ([]Result, error) {
	var filter func(int64) bool
	if allow != nil {
		filter = func(id int64) bool {
			return id >= 0 && allow.Contains(uint64(id))
		}
	}
	return b.query(ctx, opQueryFiltered, h, query, k, filter)
}

func (b *Bridge) query(ctx context.Context, op string, h *Handle, vec []float32, k int, filter func(int64) bool) ([]Result, error) {
	start := time.Now()
	var results []Result

	err := guard(op, func() error {
		if err := ready(ctx); err != nil {
			return err
		}
		if k <= 0 {
			return ErrInvalidK
		}
		w, err := b.lookup(h)
		if err != nil {
			return err
		}

		q := native.NewKNNQuery(w.Space(), k, native.NewQueryObject(vec))
		if filter != nil {
			q.SetFilter(filter)
		}
		if err := w.Index().Search(q); err != nil {
			return err
		}

		res := q.Result()
		results = make([]Result, 0, res.Size())
		for !res.Empty() {
			dist := res.TopDistance()
			id := res.Pop()
			results = append(results, Result{ID: id, Distance: dist})
		}
		return nil
	})
	if err != nil {
		results = nil
	}

	b.opts.metricsCollector.RecordQuery(k, len(results), time.Since(start), err)
	b.opts.logger.LogQuery(ctx, h.ID(), k, len(results), err)
	return results, err
}

// Destroy releases the index behind h and invalidates h. Destroying the
// null handle or an already destroyed handle is a no-op.
func (b *Bridge) Destroy(h *Handle) error {
	if h == nil {
		return nil
	}
	if h.owner != b {
		return translate(opDestroy, ErrInvalidHandle)
	}
	id := h.id.Swap(0)
	if id == 0 {
		return nil
	}

	released := false
	err := guard(opDestroy, func() error {
		w, ok := b.handles.Remove(id)
		if !ok {
			return nil
		}
		released = true
		w.Release()
		return nil
	})

	if released {
		b.opts.metricsCollector.RecordDestroy(err)
		b.opts.logger.LogDestroy(context.Background(), id, err)
	}
	return err
}

// DeleteIndex removes the index persisted at persistPath. Handles already
// loaded from it are unaffected. Deleting a missing index is not an error.
func (b *Bridge) DeleteIndex(ctx context.Context, persistPath string) error {
	err := guard(opDelete, func() error {
		if err := ready(ctx); err != nil {
			return err
		}
		store, name, err := b.resolver.Resolve(ctx, persistPath)
		if err != nil {
			return err
		}
		return store.Delete(ctx, name)
	})

	b.opts.logger.LogDelete(ctx, persistPath, err)
	return err
}

// Stats describes the index behind h.
func (b *Bridge) Stats(h *Handle) (IndexStats, error) {
	var stats IndexStats
	err := guard(opStats, func() error {
		w, err := b.lookup(h)
		if err != nil {
			return err
		}
		stats = IndexStats{
			Handle:    h.ID(),
			Space:     w.Space().Name(),
			Dimension: w.Index().Dim(),
			Count:     w.Index().Len(),
			EfSearch:  w.Index().EfSearch(),
		}
		return nil
	})
	return stats, err
}

// Close destroys every index still loaded through b. Handles referring to
// them become invalid.
func (b *Bridge) Close() error {
	for _, w := range b.handles.Drain() {
		w.Release()
		b.opts.metricsCollector.RecordDestroy(nil)
	}
	return nil
}
