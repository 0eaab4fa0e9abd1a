package packer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVector is returned when records would carry no components.
	ErrEmptyVector = errors.New("vectors must have at least one component")
	// ErrInvalidLayout is returned when the packed size is not representable.
	ErrInvalidLayout = errors.New("invalid record layout")
	// ErrReleased is returned when a released buffer is used.
	ErrReleased = errors.New("buffer released")
)

// DimensionError reports a vector whose length differs from the first one.
type DimensionError struct {
	Index    int
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector %d has dimension %d, expected %d", e.Index, e.Actual, e.Expected)
}

// SourceError carries a failure reported by the Source itself.
type SourceError struct {
	Index int
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source failed at record %d: %v", e.Index, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// AllocError reports that the off-heap buffer could not be obtained.
type AllocError struct {
	Size int
	Err  error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("allocate %d bytes: %v", e.Size, e.Err)
}

func (e *AllocError) Unwrap() error {
	return e.Err
}
