package packer

import (
	"math"

	"github.com/hupe1980/knnbridge/internal/native"
)

// Layout describes count records of dim float32 components.
type Layout struct {
	Count int
	Dim   int
}

// RecordSize returns the packed size of one record.
func (l Layout) RecordSize() int {
	return native.RecordSize(l.Dim)
}

// Size returns the packed size of all records.
func (l Layout) Size() int {
	return l.Count * l.RecordSize()
}

// Offset returns the byte offset of record i.
func (l Layout) Offset(i int) int {
	return i * l.RecordSize()
}

// Validate rejects layouts whose size does not fit in an int.
func (l Layout) Validate() error {
	if l.Count < 0 || l.Dim < 0 {
		return ErrInvalidLayout
	}
	if l.Count > 0 && l.Dim == 0 {
		return ErrEmptyVector
	}
	if l.Dim > (math.MaxInt32-native.HeaderSize)/4 {
		return ErrInvalidLayout
	}
	if l.Count > 0 && l.RecordSize() > math.MaxInt/l.Count {
		return ErrInvalidLayout
	}
	return nil
}
