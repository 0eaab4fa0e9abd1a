package knnbridge

// VectorSource yields the records of a build.
//
// Vector may be called more than once for the same index. Err reports a
// failure raised on the caller's side while producing a record; the bridge
// checks it after every access and before every native call, and aborts
// with ErrPendingRuntimeFailure when it is non-nil.
type VectorSource interface {
	Len() int
	ID(i int) int64
	Vector(i int) []float32
	Err() error
}

// Record is one id and its vector.
type Record struct {
	ID     int64
	Vector []float32
}

// Result is one query hit.
type Result struct {
	ID       int64
	Distance float32
}

type sliceSource struct {
	ids     []int64
	vectors [][]float32
}

// Records returns a VectorSource over parallel id and vector slices. The
// slices must have the same length.
func Records(ids []int64, vectors [][]float32) VectorSource {
	return sliceSource{ids: ids, vectors: vectors}
}

func (s sliceSource) Len() int               { return len(s.ids) }
func (s sliceSource) ID(i int) int64         { return s.ids[i] }
func (s sliceSource) Vector(i int) []float32 { return s.vectors[i] }
func (s sliceSource) Err() error             { return nil }

// RecordSlice is a VectorSource over a slice of records.
type RecordSlice []Record

func (s RecordSlice) Len() int               { return len(s) }
func (s RecordSlice) ID(i int) int64         { return s[i].ID }
func (s RecordSlice) Vector(i int) []float32 { return s[i].Vector }
func (s RecordSlice) Err() error             { return nil }
