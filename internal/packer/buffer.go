package packer

import (
	"github.com/hupe1980/knnbridge/internal/mmap"
	"github.com/hupe1980/knnbridge/internal/native"
	"github.com/hupe1980/knnbridge/internal/resource"
)

// Buffer is an off-heap region holding packed records.
//
// An empty Buffer owns no mapping. Buffers are not safe for concurrent use.
type Buffer struct {
	rc          *resource.Controller
	layout      Layout
	mapping     *mmap.Mapping
	reservation *resource.Reservation
	released    bool
}

// New returns an empty buffer whose allocations are charged to rc. rc may
// be nil.
func New(rc *resource.Controller) *Buffer {
	return &Buffer{rc: rc}
}

// Pack packs every record of src into a new buffer.
func Pack(src Source, rc *resource.Controller) (*Buffer, error) {
	b := New(rc)
	if err := b.Append(src); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// Append packs the records of src after the existing ones. The buffer is
// left unchanged if Append fails.
func (b *Buffer) Append(src Source) error {
	if b.released {
		return ErrReleased
	}

	dim, err := Validate(src)
	if err != nil {
		return err
	}
	n := src.Len()
	if n == 0 {
		return nil
	}
	if b.layout.Count > 0 && dim != b.layout.Dim {
		return &DimensionError{Index: 0, Expected: b.layout.Dim, Actual: dim}
	}

	next := Layout{Count: b.layout.Count + n, Dim: dim}
	if err := next.Validate(); err != nil {
		return err
	}
	size := next.Size()

	res, err := b.rc.Reserve(int64(size))
	if err != nil {
		return &AllocError{Size: size, Err: err}
	}
	m, err := mmap.MapAnon(size)
	if err != nil {
		res.Release()
		return &AllocError{Size: size, Err: err}
	}

	data := m.Bytes()
	copy(data, b.Bytes())

	recSize := next.RecordSize()
	for i := 0; i < n; i++ {
		id := src.ID(i)
		v := src.Vector(i)
		if err := src.Err(); err != nil {
			_ = m.Close()
			res.Release()
			return &SourceError{Index: i, Err: err}
		}
		if len(v) != dim {
			_ = m.Close()
			res.Release()
			return &DimensionError{Index: i, Expected: dim, Actual: len(v)}
		}
		off := next.Offset(b.layout.Count + i)
		native.WriteRecord(data[off:off+recSize], id, v)
	}

	b.free()
	b.mapping = m
	b.reservation = res
	b.layout = next
	return nil
}

// Layout returns the current layout.
func (b *Buffer) Layout() Layout {
	return b.layout
}

// Len returns the number of records.
func (b *Buffer) Len() int {
	return b.layout.Count
}

// Dim returns the record dimension, or 0 when empty.
func (b *Buffer) Dim() int {
	return b.layout.Dim
}

// Bytes returns the packed records. The slice is valid until the next
// Append or Release.
func (b *Buffer) Bytes() []byte {
	if b.mapping == nil {
		return nil
	}
	return b.mapping.Bytes()[:b.layout.Size()]
}

// Record returns the bytes of record i.
func (b *Buffer) Record(i int) []byte {
	off := b.layout.Offset(i)
	return b.Bytes()[off : off+b.layout.RecordSize()]
}

// Objects returns one native view per record. The views alias the buffer
// and must be released before it.
func (b *Buffer) Objects() []*native.Object {
	objs := make([]*native.Object, b.layout.Count)
	for i := range objs {
		objs[i] = native.NewObject(b.Record(i))
	}
	return objs
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.released
}

// Release unmaps the buffer and returns its reservation. Releasing twice is
// a no-op.
func (b *Buffer) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true
	b.free()
	b.layout = Layout{}
}

func (b *Buffer) free() {
	if b.mapping != nil {
		_ = b.mapping.Close()
		b.mapping = nil
	}
	b.reservation.Release()
	b.reservation = nil
}
