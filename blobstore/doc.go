// Package blobstore abstracts where persisted indexes live.
//
// A BlobStore opens blobs for reading and creates them for writing. Writes
// become visible only when the WritableBlob is closed; Abort discards them.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, reads are memory-mapped
//   - MemoryStore: process memory, for tests and ephemeral indexes
//   - s3.Store: Amazon S3 with multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Locations
//
// A Resolver turns a persist location into a store and a blob name. The
// default resolver accepts plain filesystem paths, file:// and mem:// URIs;
// additional schemes are added with Register:
//
//	r := blobstore.NewResolver()
//	r.Register("s3", s3.Factory(client))
//	store, name, err := r.Resolve(ctx, "s3://bucket/indexes/a.knn")
package blobstore
