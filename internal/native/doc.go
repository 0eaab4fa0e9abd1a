// Package native is the in-process ANN engine the bridge drives.
//
// It owns everything the bridge treats as opaque: distance spaces, the
// packed object layout, graph construction, the persisted index format and
// k-NN search. The graph itself is provided by github.com/coder/hnsw.
//
// The package follows the conventions of a foreign library rather than of
// an idiomatic Go API. Failures surface either as *Exception values or as
// panics escaping from the graph implementation; callers are expected to
// translate both at their boundary.
//
// # Lifecycle
//
// InitLibrary must run once per process before any Space or Index is
// created. Spaces, objects and indexes are released explicitly with
// Release and must be released in reverse order of acquisition.
package native
