package native

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"testing"

	"github.com/hupe1980/knnbridge/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	InitLibrary()
	os.Exit(m.Run())
}

type memLocation struct {
	name      string
	data      []byte
	failWrite error
	writer    *memWriter
}

type memWriter struct {
	bytes.Buffer
	loc     *memLocation
	aborted bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.loc.failWrite != nil {
		return 0, w.loc.failWrite
	}
	return w.Buffer.Write(p)
}

func (w *memWriter) Close() error {
	w.loc.data = append([]byte(nil), w.Bytes()...)
	return nil
}

func (w *memWriter) Abort() error {
	w.aborted = true
	return nil
}

func (l *memLocation) Create(context.Context) (io.WriteCloser, error) {
	l.writer = &memWriter{loc: l}
	return l.writer, nil
}

func (l *memLocation) Open(context.Context) (io.ReadCloser, error) {
	if l.data == nil {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(l.data)), nil
}

func (l *memLocation) String() string { return l.name }

// rewriteHeader applies edit to the header of a saved index and re-encodes
// it with a matching checksum.
func rewriteHeader(t *testing.T, data []byte, edit func(h *fileHeader)) []byte {
	t.Helper()
	h, err := readHeader(bytes.NewReader(data))
	require.NoError(t, err)
	payload := data[len(h.raw):]
	edit(h)
	return append(h.encode(payload), payload...)
}

func savedIndex(t *testing.T, comp string) []byte {
	t.Helper()
	ids := make([]int64, 100)
	vecs := make([][]float32, 100)
	for i := range ids {
		ids[i] = int64(i)
		vecs[i] = []float32{float32(i), float32(i % 5), 1}
	}
	ix := buildIndex(t, SpaceL2, ids, vecs, "M=8", "compression="+comp)
	defer ix.Release()
	loc := &memLocation{name: "saved"}
	require.NoError(t, ix.SaveIndex(context.Background(), loc))
	return loc.data
}

func loadInto(t *testing.T, rc *resource.Controller, data []byte) (*IndexWrapper, error) {
	t.Helper()
	w, err := NewIndexWrapper(SpaceL2, rc)
	require.NoError(t, err)
	t.Cleanup(w.Release)
	return w, w.Index().LoadIndex(context.Background(), &memLocation{name: "edited", data: data})
}

func makeObjects(ids []int64, vectors [][]float32) []*Object {
	objs := make([]*Object, len(ids))
	for i := range ids {
		rec := make([]byte, RecordSize(len(vectors[i])))
		WriteRecord(rec, ids[i], vectors[i])
		objs[i] = NewObject(rec)
	}
	return objs
}

func buildIndex(t *testing.T, space string, ids []int64, vectors [][]float32, params ...string) *Index {
	t.Helper()
	s, err := NewSpace(space)
	require.NoError(t, err)
	ix, err := NewIndex(s, makeObjects(ids, vectors), nil)
	require.NoError(t, err)
	require.NoError(t, ix.CreateIndex(params))
	return ix
}

func drain(q *KNNQuery) ([]int64, []float32) {
	res := q.Result()
	var ids []int64
	var dists []float32
	for !res.Empty() {
		dists = append(dists, res.TopDistance())
		ids = append(ids, res.Pop())
	}
	return ids, dists
}

func TestObject(t *testing.T) {
	rec := make([]byte, RecordSize(2))
	WriteRecord(rec, 42, []float32{1.5, -2})
	o := NewObject(rec)

	assert.Equal(t, int64(42), o.ID())
	assert.Equal(t, NoLabel, o.Label())
	assert.Equal(t, 8, o.DataLength())
	assert.Equal(t, []float32{1.5, -2}, o.Vector())

	o.Vector()[0] = 3
	o2 := NewObject(rec)
	assert.Equal(t, float32(3), o2.Vector()[0], "views alias the record")

	q := NewQueryObject([]float32{1})
	assert.Equal(t, int64(-1), q.ID())

	o.Release()
	assert.True(t, o.Released())
}

func TestSpace(t *testing.T) {
	for _, name := range SpaceNames() {
		s, err := NewSpace(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
		assert.Zero(t, s.Distance([]float32{1, 0}, []float32{1, 0}), name)
	}

	_, err := NewSpace("hamming")
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindRuntime, ex.Kind)
	assert.Contains(t, ex.Msg, "hamming")

	l2, _ := NewSpace(SpaceL2)
	assert.Equal(t, float32(25), l2.Distance([]float32{0, 0}, []float32{3, 4}))
	linf, _ := NewSpace(SpaceLInf)
	assert.Equal(t, float32(4), linf.Distance([]float32{0, 0}, []float32{3, 4}))
	l1, _ := NewSpace(SpaceL1)
	assert.Equal(t, float32(7), l1.Distance([]float32{0, 0}, []float32{3, 4}))
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams([]string{"M=32", " efConstruction = 100 ", "unknown=x"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())

	m, err := p.Int(ParamM, DefaultM)
	require.NoError(t, err)
	assert.Equal(t, 32, m)

	efc, err := p.Int(ParamEfConstruction, DefaultEfConstruction)
	require.NoError(t, err)
	assert.Equal(t, 100, efc)

	efs, err := p.Int(ParamEfSearch, DefaultEfSearch)
	require.NoError(t, err)
	assert.Equal(t, DefaultEfSearch, efs)

	_, err = ParseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseParams([]string{"M=1", "M=2"})
	assert.Error(t, err)

	p, _ = ParseParams([]string{"M=abc"})
	_, err = p.Int(ParamM, DefaultM)
	assert.Error(t, err)
}

func TestIndex_BuildSearch(t *testing.T) {
	ix := buildIndex(t, SpaceL2,
		[]int64{10, 20, 30},
		[][]float32{{0, 0}, {1, 1}, {5, 5}})
	defer ix.Release()

	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 2, ix.Dim())

	q := NewKNNQuery(ix.Space(), 2, NewQueryObject([]float32{0.9, 0.9}))
	require.NoError(t, ix.Search(q))

	ids, dists := drain(q)
	assert.Equal(t, []int64{20, 10}, ids)
	assert.InDelta(t, 0.02, dists[0], 1e-5)
	assert.InDelta(t, 1.62, dists[1], 1e-5)
}

func TestIndex_KLargerThanCount(t *testing.T) {
	ix := buildIndex(t, SpaceL2, []int64{1, 2}, [][]float32{{0}, {1}})
	defer ix.Release()

	q := NewKNNQuery(ix.Space(), 10, NewQueryObject([]float32{0}))
	require.NoError(t, ix.Search(q))
	ids, _ := drain(q)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := buildIndex(t, SpaceL2, []int64{1}, [][]float32{{0, 0}})
	defer ix.Release()

	q := NewKNNQuery(ix.Space(), 1, NewQueryObject([]float32{0, 0, 0}))
	err := ix.Search(q)
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Contains(t, ex.Msg, "dimension")
}

func TestIndex_Filter(t *testing.T) {
	ids := make([]int64, 50)
	vecs := make([][]float32, 50)
	for i := range ids {
		ids[i] = int64(i)
		vecs[i] = []float32{float32(i)}
	}
	ix := buildIndex(t, SpaceL2, ids, vecs)
	defer ix.Release()

	q := NewKNNQuery(ix.Space(), 2, NewQueryObject([]float32{0}))
	q.SetFilter(func(id int64) bool { return id%10 == 0 })
	require.NoError(t, ix.Search(q))

	got, _ := drain(q)
	assert.Equal(t, []int64{0, 10}, got)
}

func TestIndex_DuplicateIDsLastWins(t *testing.T) {
	ix := buildIndex(t, SpaceL2, []int64{1, 1}, [][]float32{{0}, {9}})
	defer ix.Release()

	assert.Equal(t, 1, ix.Len())
	q := NewKNNQuery(ix.Space(), 1, NewQueryObject([]float32{9}))
	require.NoError(t, ix.Search(q))
	_, dists := drain(q)
	assert.Equal(t, []float32{0}, dists)
}

func TestIndex_BadParams(t *testing.T) {
	s, _ := NewSpace(SpaceL2)
	ix, err := NewIndex(s, makeObjects([]int64{1}, [][]float32{{1}}), nil)
	require.NoError(t, err)
	defer ix.Release()

	err = ix.CreateIndex([]string{"M=-1"})
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindRuntime, ex.Kind)
}

func TestIndex_LevelRatio(t *testing.T) {
	s, _ := NewSpace(SpaceL2)
	ix, err := NewIndex(s, makeObjects([]int64{1, 2}, [][]float32{{1}, {2}}), nil)
	require.NoError(t, err)
	defer ix.Release()

	for _, ml := range []string{"1", "3"} {
		err = ix.CreateIndex([]string{"ml=" + ml})
		ex, ok := AsException(err)
		require.True(t, ok)
		assert.Equal(t, KindRuntime, ex.Kind)
		assert.Equal(t, "Parameter 'ml' must be in (0, 1), got '"+ml+"'", ex.Msg)
	}

	require.NoError(t, ix.CreateIndex([]string{"ml=0.5"}))
	assert.Equal(t, 2, ix.Len())
}

func TestIndex_MaxM(t *testing.T) {
	s, _ := NewSpace(SpaceL2)
	ix, err := NewIndex(s, makeObjects([]int64{1}, [][]float32{{1}}), nil)
	require.NoError(t, err)
	defer ix.Release()

	err = ix.CreateIndex([]string{"M=70000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Parameter 'M' must be at most")
}

func TestFootprint(t *testing.T) {
	assert.Equal(t, int64(10*(64+16*16)), footprint(10, 3, 16, false))
	assert.Equal(t, int64(10*(64+16*16+12)), footprint(10, 3, 16, true))
	assert.Equal(t, int64(-1), footprint(math.MaxInt64/8, 1<<20, 1<<16, true))
	assert.Equal(t, int64(-1), footprint(-1, 3, 16, true))

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	ix := &Index{rc: rc}
	err := ix.reserve(-1)
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindBadAlloc, ex.Kind)
	assert.ErrorIs(t, err, errFootprint)
	assert.Zero(t, rc.MemoryUsage())
}

func TestIndex_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	s, _ := NewSpace(SpaceL2)
	ix, err := NewIndex(s, makeObjects([]int64{1, 2}, [][]float32{{1}, {2}}), rc)
	require.NoError(t, err)
	defer ix.Release()

	err = ix.CreateIndex(nil)
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindBadAlloc, ex.Kind)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
}

func TestIndex_SaveLoad(t *testing.T) {
	for _, comp := range []string{"none", "lz4", "zstd"} {
		t.Run(comp, func(t *testing.T) {
			ids := make([]int64, 100)
			vecs := make([][]float32, 100)
			for i := range ids {
				ids[i] = int64(i * 3)
				vecs[i] = []float32{float32(i), float32(i % 7), 1}
			}
			ix := buildIndex(t, SpaceCosine, ids, vecs, "M=8", "efConstruction=64", "compression="+comp)
			loc := &memLocation{name: "mem://" + comp}
			require.NoError(t, ix.SaveIndex(context.Background(), loc))
			ix.Release()

			rc := resource.NewController(resource.Config{})
			w, err := NewIndexWrapper(SpaceCosine, rc)
			require.NoError(t, err)
			require.NoError(t, w.Index().LoadIndex(context.Background(), loc))
			require.NoError(t, w.Index().SetQueryTimeParams([]string{"efSearch=50"}))

			assert.Equal(t, 100, w.Index().Len())
			assert.Equal(t, 3, w.Index().Dim())
			assert.Equal(t, 50, w.Index().EfSearch())
			assert.Positive(t, rc.MemoryUsage())

			q := NewKNNQuery(w.Space(), 5, NewQueryObject(vecs[10]))
			require.NoError(t, w.Index().Search(q))
			got, dists := drain(q)
			require.Len(t, got, 5)
			assert.InDelta(t, 0, dists[0], 1e-5)

			w.Release()
			w.Release()
			assert.True(t, w.Index().Released())
			assert.True(t, w.Space().Released())
			assert.Zero(t, rc.MemoryUsage())
		})
	}
}

func TestIndex_SaveLoadEmpty(t *testing.T) {
	ix := buildIndex(t, SpaceL2, nil, nil)
	loc := &memLocation{name: "empty"}
	require.NoError(t, ix.SaveIndex(context.Background(), loc))
	ix.Release()

	w, err := NewIndexWrapper(SpaceL2, nil)
	require.NoError(t, err)
	defer w.Release()
	require.NoError(t, w.Index().LoadIndex(context.Background(), loc))

	q := NewKNNQuery(w.Space(), 3, NewQueryObject([]float32{1, 2}))
	require.NoError(t, w.Index().Search(q))
	assert.True(t, q.Result().Empty())
}

func TestIndex_LoadErrors(t *testing.T) {
	w, err := NewIndexWrapper(SpaceL2, nil)
	require.NoError(t, err)
	defer w.Release()

	err = w.Index().LoadIndex(context.Background(), &memLocation{name: "missing"})
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Contains(t, ex.Msg, "missing")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err = w.Index().LoadIndex(context.Background(), &memLocation{name: "garbage", data: []byte("not an index")})
	_, ok = AsException(err)
	assert.True(t, ok)

	ix := buildIndex(t, SpaceL1, []int64{1}, [][]float32{{1}})
	loc := &memLocation{name: "l1"}
	require.NoError(t, ix.SaveIndex(context.Background(), loc))
	ix.Release()

	err = w.Index().LoadIndex(context.Background(), loc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "space")

	loc.data[len(loc.data)-1] ^= 0xFF
	l1, err := NewIndexWrapper(SpaceL1, nil)
	require.NoError(t, err)
	defer l1.Release()
	err = l1.Index().LoadIndex(context.Background(), loc)
	assert.ErrorIs(t, err, errChecksum)
}

func TestIndex_SaveAbortsOnWriteFailure(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	s, _ := NewSpace(SpaceL2)
	ix, err := NewIndex(s, makeObjects([]int64{1, 2}, [][]float32{{1}, {2}}), rc)
	require.NoError(t, err)
	require.NoError(t, ix.CreateIndex(nil))

	loc := &memLocation{name: "full", failWrite: errors.New("no space left on device")}
	err = ix.SaveIndex(context.Background(), loc)
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindRuntime, ex.Kind)
	assert.Contains(t, ex.Msg, "Failed to write index full")
	require.NotNil(t, loc.writer)
	assert.True(t, loc.writer.aborted)
	assert.Nil(t, loc.data)

	ix.Release()
	assert.Zero(t, rc.MemoryUsage())
}

func TestIndex_LoadRawSizeBounds(t *testing.T) {
	for _, comp := range []string{"none", "lz4", "zstd"} {
		t.Run(comp, func(t *testing.T) {
			data := savedIndex(t, comp)
			rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})

			// Stored bytes edited in place: rejected before any allocation.
			edited := append([]byte(nil), data...)
			binary.LittleEndian.PutUint64(edited[offRawSize:], 1<<44)
			_, err := loadInto(t, rc, edited)
			assert.ErrorIs(t, err, errCorrupt)
			assert.Zero(t, rc.MemoryUsage())

			// Same edit with a matching checksum.
			_, err = loadInto(t, rc, rewriteHeader(t, data, func(h *fileHeader) { h.RawSize = 1 << 44 }))
			assert.ErrorIs(t, err, errCorrupt)
			assert.Zero(t, rc.MemoryUsage())

			// Within bounds but not the recorded value.
			edited = append([]byte(nil), data...)
			raw := binary.LittleEndian.Uint64(edited[offRawSize:])
			payload := binary.LittleEndian.Uint64(edited[offPayloadSize:])
			binary.LittleEndian.PutUint64(edited[offRawSize:], raw+1)
			if comp == "none" {
				binary.LittleEndian.PutUint64(edited[offPayloadSize:], payload+1)
			}
			_, err = loadInto(t, rc, edited)
			require.Error(t, err)
			assert.Zero(t, rc.MemoryUsage())
		})
	}
}

func TestIndex_LoadChecksumCoversHeader(t *testing.T) {
	data := savedIndex(t, "lz4")
	for _, off := range []int{offDim, offM, offCount, offRawSize} {
		edited := append([]byte(nil), data...)
		edited[off]++
		_, err := loadInto(t, nil, edited)
		assert.Error(t, err, "offset %d", off)
		if !errors.Is(err, errCorrupt) {
			assert.ErrorIs(t, err, errChecksum, "offset %d", off)
		}
	}
}

func TestIndex_LoadChargesDecodeBuffer(t *testing.T) {
	data := savedIndex(t, "zstd")
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 18})

	_, err := loadInto(t, rc, rewriteHeader(t, data, func(h *fileHeader) { h.RawSize = 1 << 20 }))
	ex, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindBadAlloc, ex.Kind)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Zero(t, rc.MemoryUsage())

	w, err := loadInto(t, rc, data)
	require.NoError(t, err)
	assert.Equal(t, 100, w.Index().Len())
	assert.Positive(t, rc.MemoryUsage())
}

func TestIndex_LoadHeaderMismatch(t *testing.T) {
	data := savedIndex(t, "none")
	rc := resource.NewController(resource.Config{})

	w, err := loadInto(t, rc, rewriteHeader(t, data, func(h *fileHeader) { h.Dim = 4 }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match its graph")
	assert.Zero(t, w.Index().Dim())
	assert.Zero(t, rc.MemoryUsage())

	_, err = loadInto(t, rc, rewriteHeader(t, data, func(h *fileHeader) { h.M = 9 }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match its graph")
	assert.Zero(t, rc.MemoryUsage())
}

func TestIndex_LoadCountBounds(t *testing.T) {
	data := savedIndex(t, "none")
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})

	for _, count := range []uint64{1 << 60, math.MaxUint64} {
		_, err := loadInto(t, rc, rewriteHeader(t, data, func(h *fileHeader) { h.Count = count }))
		assert.ErrorIs(t, err, errCorrupt)
		assert.Zero(t, rc.MemoryUsage())
	}

	_, err := loadInto(t, rc, rewriteHeader(t, data, func(h *fileHeader) { h.Count = 101 }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node count mismatch")
	assert.Zero(t, rc.MemoryUsage())
}

func TestCallCount(t *testing.T) {
	before := CallCount()
	_, _ = NewSpace(SpaceL2)
	assert.Greater(t, CallCount(), before)
}
