package native

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/hnsw"
	"github.com/hupe1980/knnbridge/internal/resource"
)

// MethodHNSW is the only index method the engine provides.
const MethodHNSW = "hnsw"

// per-node bookkeeping beyond the vector itself: key, level links and map
// overhead.
const nodeOverheadBytes = 64

// Index is a graph-based k-NN index over a Space.
type Index struct {
	mu sync.RWMutex

	space *Space
	data  []*Object
	rc    *resource.Controller

	graph       *hnsw.Graph[int64]
	dim         int
	m           int
	efSearch    int
	compression Compression
	reservation *resource.Reservation
	released    atomic.Bool
}

// NewIndex creates an empty index over space. data are the objects a later
// CreateIndex call inserts; they are not copied and must stay valid until
// the index is released. rc may be nil.
func NewIndex(space *Space, data []*Object, rc *resource.Controller) (*Index, error) {
	calls.Add(1)

	if space == nil || space.Released() {
		return nil, RuntimeError("space is not available")
	}
	return &Index{
		space:    space,
		data:     data,
		rc:       rc,
		efSearch: DefaultEfSearch,
	}, nil
}

// footprint estimates the memory held by a graph of count nodes. Vector
// bytes are only charged when the graph owns them. It returns -1 when the
// estimate does not fit in an int64.
func footprint(count, dim, m int, ownsVectors bool) int64 {
	if count < 0 || dim < 0 || m < 0 || m > math.MaxUint32 || dim > math.MaxUint32 {
		return -1
	}
	per := int64(nodeOverheadBytes) + 2*int64(m)*8
	if ownsVectors {
		per += int64(dim) * float32Size
	}
	if count > 0 && int64(count) > math.MaxInt64/per {
		return -1
	}
	return int64(count) * per
}

var errFootprint = errors.New("memory estimate out of range")

func (ix *Index) reserve(bytes int64) error {
	if bytes < 0 {
		return BadAlloc(errFootprint)
	}
	r, err := ix.rc.Reserve(bytes)
	if err != nil {
		return BadAlloc(err)
	}
	ix.reservation.Release()
	ix.reservation = r
	return nil
}

// CreateIndex builds the graph from the objects passed to NewIndex.
func (ix *Index) CreateIndex(params []string) error {
	calls.Add(1)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.released.Load() {
		return RuntimeError("index has been released")
	}

	p, err := ParseParams(params)
	if err != nil {
		return err
	}
	m, err := p.Int(ParamM, DefaultM)
	if err != nil {
		return err
	}
	if m > maxM {
		return RuntimeError("Parameter '%s' must be at most %d, got '%d'", ParamM, maxM, m)
	}
	efc, err := p.Int(ParamEfConstruction, DefaultEfConstruction)
	if err != nil {
		return err
	}
	efs, err := p.Int(ParamEfSearch, DefaultEfSearch)
	if err != nil {
		return err
	}
	ml, err := p.Float(ParamML, DefaultML)
	if err != nil {
		return err
	}
	// Level assignment draws from a geometric distribution with ratio ml.
	if ml >= 1 {
		return RuntimeError("Parameter '%s' must be in (0, 1), got '%s'", ParamML, strconv.FormatFloat(ml, 'g', -1, 64))
	}
	comp, err := ParseCompression(p.String(ParamCompression, "none"))
	if err != nil {
		return err
	}

	dim := 0
	if len(ix.data) > 0 {
		dim = ix.data[0].Dim()
	}

	// Last occurrence of a repeated id wins.
	last := make(map[int64]int, len(ix.data))
	for i, obj := range ix.data {
		if obj == nil || obj.Released() {
			return RuntimeError("object %d has been released", i)
		}
		if obj.Dim() != dim {
			return RuntimeError("object %d has dimension %d, expected %d", i, obj.Dim(), dim)
		}
		last[obj.ID()] = i
	}

	if err := ix.reserve(footprint(len(last), dim, m, false)); err != nil {
		return err
	}

	g := hnsw.NewGraph[int64]()
	g.Distance = ix.space.def.distance
	g.M = m
	g.Ml = ml
	g.EfSearch = efc

	nodes := make([]hnsw.Node[int64], 0, len(last))
	for i, obj := range ix.data {
		if last[obj.ID()] != i {
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(obj.ID(), obj.Vector()))
	}
	if len(nodes) > 0 {
		g.Add(nodes...)
	}
	g.EfSearch = efs

	ix.graph = g
	ix.dim = dim
	ix.m = m
	ix.efSearch = efs
	ix.compression = comp
	return nil
}

// SaveIndex persists the graph to loc.
func (ix *Index) SaveIndex(ctx context.Context, loc Location) error {
	calls.Add(1)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.released.Load() || ix.graph == nil {
		return RuntimeError("index has not been created")
	}

	var raw bytes.Buffer
	if ix.graph.Len() > 0 {
		if err := ix.graph.Export(&raw); err != nil {
			return wrapRuntime(err, "Failed to serialize index")
		}
	}

	payload, used, err := compress(raw.Bytes(), ix.compression)
	if err != nil {
		return wrapRuntime(err, "Failed to compress index")
	}

	h := fileHeader{
		Compression: used,
		Dim:         uint32(ix.dim),
		M:           uint32(ix.m),
		Count:       uint64(ix.graph.Len()),
		RawSize:     uint64(raw.Len()),
		PayloadSize: uint64(len(payload)),
		Space:       ix.space.Name(),
	}
	header := h.encode(payload)

	w, err := loc.Create(ctx)
	if err != nil {
		return wrapRuntime(err, "Cannot open file %s for writing", loc)
	}

	rw := resource.NewRateLimitedWriter(ctx, w, ix.rc)
	if _, err := rw.Write(header); err != nil {
		abortWrite(w)
		return wrapRuntime(err, "Failed to write index %s", loc)
	}
	if _, err := rw.Write(payload); err != nil {
		abortWrite(w)
		return wrapRuntime(err, "Failed to write index %s", loc)
	}
	if err := w.Close(); err != nil {
		return wrapRuntime(err, "Failed to write index %s", loc)
	}
	return nil
}

// LoadIndex replaces the graph with the one persisted at loc.
func (ix *Index) LoadIndex(ctx context.Context, loc Location) error {
	calls.Add(1)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.released.Load() {
		return RuntimeError("index has been released")
	}

	r, err := loc.Open(ctx)
	if err != nil {
		return wrapRuntime(err, "Cannot open file %s for reading", loc)
	}
	defer func() { _ = r.Close() }()

	rr := resource.NewRateLimitedReader(ctx, r, ix.rc)

	h, err := readHeader(rr)
	if err != nil {
		return wrapRuntime(err, "Failed to read index %s", loc)
	}
	if err := h.validate(); err != nil {
		return wrapRuntime(err, "Failed to read index %s", loc)
	}
	if h.Space != ix.space.Name() {
		return RuntimeError("Index %s was built for space %s, not %s", loc, h.Space, ix.space.Name())
	}

	payload, err := readPayload(rr, h)
	if err != nil {
		return wrapRuntime(err, "Failed to read index %s", loc)
	}

	m := int(h.M)
	if h.Count == 0 {
		m = DefaultM
	}
	fp := footprint(int(h.Count), int(h.Dim), m, true)
	if fp < 0 {
		return BadAlloc(errFootprint)
	}
	res, err := ix.rc.Reserve(fp)
	if err != nil {
		return BadAlloc(err)
	}
	committed := false
	defer func() {
		if !committed {
			res.Release()
		}
	}()

	// The decoded codec stream is transient; charge it until the import
	// is done.
	var scratch *resource.Reservation
	if h.Compression != CompressionNone {
		if scratch, err = ix.rc.Reserve(int64(h.RawSize)); err != nil {
			return BadAlloc(err)
		}
		defer scratch.Release()
	}

	raw, err := decompress(payload, h.Compression, int(h.RawSize))
	if err != nil {
		return wrapRuntime(err, "Failed to read index %s", loc)
	}

	g := hnsw.NewGraph[int64]()
	g.Distance = ix.space.def.distance
	g.M = m
	if h.Count > 0 {
		if err := g.Import(bytes.NewReader(raw)); err != nil {
			return wrapRuntime(err, "Failed to deserialize index %s", loc)
		}
		g.Distance = ix.space.def.distance
	}
	if uint64(g.Len()) != h.Count {
		return wrapRuntime(errors.New("node count mismatch"), "Failed to deserialize index %s", loc)
	}
	if h.Count > 0 && (g.Dims() != int(h.Dim) || g.M != m) {
		return RuntimeError("Index %s header does not match its graph: dimension %d, M %d", loc, h.Dim, h.M)
	}

	committed = true
	ix.reservation.Release()
	ix.reservation = res
	ix.graph = g
	ix.dim = int(h.Dim)
	ix.m = m
	ix.efSearch = g.EfSearch
	if ix.efSearch <= 0 {
		ix.efSearch = DefaultEfSearch
		g.EfSearch = DefaultEfSearch
	}
	ix.compression = h.Compression
	return nil
}

// SetQueryTimeParams applies query-time parameters such as efSearch.
func (ix *Index) SetQueryTimeParams(params []string) error {
	calls.Add(1)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.released.Load() || ix.graph == nil {
		return RuntimeError("index has not been created")
	}

	p, err := ParseParams(params)
	if err != nil {
		return err
	}
	efs, err := p.Int(ParamEfSearch, ix.efSearch)
	if err != nil {
		return err
	}
	ix.efSearch = efs
	ix.graph.EfSearch = efs
	return nil
}

// Search runs q against the graph and fills its result queue.
func (ix *Index) Search(q *KNNQuery) error {
	calls.Add(1)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.released.Load() || ix.graph == nil {
		return RuntimeError("index has not been created")
	}

	n := ix.graph.Len()
	if n == 0 {
		return nil
	}

	vec := q.query.Vector()
	if len(vec) != ix.dim {
		return RuntimeError("Query vector dimension %d does not match index dimension %d", len(vec), ix.dim)
	}

	fetch := min(q.k, n)
	if q.filter != nil {
		fetch = n
		if q.k < n/filterOversample {
			fetch = q.k * filterOversample
		}
	}

	for {
		q.result.Reset()
		for _, node := range ix.graph.Search(vec, fetch) {
			if q.filter != nil && !q.filter(node.Key) {
				continue
			}
			q.push(node.Key, ix.space.Distance(vec, node.Value))
		}
		if q.filter == nil || q.result.Len() >= q.k || fetch >= n {
			return nil
		}
		fetch = min(fetch*2, n)
	}
}

// Len returns the number of indexed objects.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return 0
	}
	return ix.graph.Len()
}

// Dim returns the vector dimension, or 0 for an empty index.
func (ix *Index) Dim() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// EfSearch returns the current query-time beam width.
func (ix *Index) EfSearch() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.efSearch
}

// Compression returns the compression recorded for persistence.
func (ix *Index) Compression() Compression {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.compression
}

// Space returns the index space.
func (ix *Index) Space() *Space {
	return ix.space
}

// Released reports whether Release has been called.
func (ix *Index) Released() bool {
	return ix.released.Load()
}

// Release drops the graph and returns its memory reservation. Releasing
// twice is a no-op.
func (ix *Index) Release() {
	if ix.released.Swap(true) {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.graph = nil
	ix.data = nil
	ix.reservation.Release()
	ix.reservation = nil
}
