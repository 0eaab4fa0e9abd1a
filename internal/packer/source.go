package packer

// Source yields the records to pack. Vector(i) may be called more than once
// for the same i. Err reports a failure raised while producing the most
// recent record; it is checked after every access.
type Source interface {
	Len() int
	ID(i int) int64
	Vector(i int) []float32
	Err() error
}

// Validate checks that src is non-empty-dimensional and uniform, and returns
// its dimension. An empty source has dimension 0.
func Validate(src Source) (int, error) {
	n := src.Len()
	if err := src.Err(); err != nil {
		return 0, &SourceError{Index: -1, Err: err}
	}
	if n == 0 {
		return 0, nil
	}

	dim := -1
	for i := 0; i < n; i++ {
		v := src.Vector(i)
		if err := src.Err(); err != nil {
			return 0, &SourceError{Index: i, Err: err}
		}
		if dim < 0 {
			dim = len(v)
			if dim == 0 {
				return 0, ErrEmptyVector
			}
			continue
		}
		if len(v) != dim {
			return 0, &DimensionError{Index: i, Expected: dim, Actual: len(v)}
		}
	}

	if err := (Layout{Count: n, Dim: dim}).Validate(); err != nil {
		return 0, err
	}
	return dim, nil
}
