// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// To resolve s3:// persist locations, register a factory:
//
//	resolver := blobstore.NewResolver()
//	resolver.Register("s3", s3.Factory(client))
//
// # Features
//
//   - Range reads for index loading
//   - Streaming multipart uploads for large indexes
//   - Aborted writes never become visible
package s3
