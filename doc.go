// Package knnbridge builds, persists, loads, queries and destroys
// approximate nearest neighbor indexes held by a native engine, without
// exposing the caller to native memory.
//
// # Lifecycle
//
//	knnbridge.InitLibrary()
//
//	err := knnbridge.BuildAndPersist(ctx, ids, vectors, "/data/a.knn",
//	    []string{"M=16", "efConstruction=200"}, "l2")
//
//	h, err := knnbridge.LoadIndex(ctx, "/data/a.knn", []string{"efSearch=100"}, "l2")
//	defer knnbridge.Destroy(h)
//
//	results, err := knnbridge.Query(ctx, h, query, 10)
//
// Vectors are packed into one off-heap buffer per build, which is released
// as soon as the native build returns. A Handle owns its native index until
// Destroy; destroying twice is a no-op and using a destroyed handle fails
// with ErrInvalidHandle.
//
// # Errors
//
// Every failure is returned as a *Error whose Kind is one of
// ErrInvalidArgument, ErrResourceExhausted, ErrOperationFailed or
// ErrPendingRuntimeFailure. Native messages are carried verbatim, and all
// native resources acquired by the failing call are released before it
// returns.
//
// # Spaces and parameters
//
// Space types are l2 (squared euclidean), cosinesimil, innerproduct, l1 and
// linf. Build parameters are M, efConstruction, ml and compression
// (none, lz4 or zstd); efSearch is accepted at build and load time.
// Unknown keys are ignored.
//
// # Locations
//
// Persist paths are local file paths or file://, mem:// URIs. Further
// schemes such as s3:// and minio:// are enabled with WithStoreResolver.
package knnbridge
