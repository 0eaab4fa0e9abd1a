package knnbridge

import "sync/atomic"

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle refers to a loaded native index. It is valid from LoadIndex until
// Destroy; after Destroy it is the null handle. Handles must not be copied.
type Handle struct {
	_ noCopy

	id    atomic.Uint64
	owner *Bridge
	space string
}

// ID returns the registry id, or 0 for the null handle.
func (h *Handle) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id.Load()
}

// Valid reports whether h still refers to a loaded index.
func (h *Handle) Valid() bool {
	return h.ID() != 0
}

// Space returns the space type the index was loaded with.
func (h *Handle) Space() string {
	if h == nil {
		return ""
	}
	return h.space
}

// IndexStats describes a loaded index.
type IndexStats struct {
	Handle    uint64
	Space     string
	Dimension int
	Count     int
	EfSearch  int
}
