// Package packer lays caller vectors out as contiguous native records in an
// off-heap buffer.
//
// Each record is id (8 bytes) | label (4 bytes) | length (4 bytes) |
// payload (4·dim bytes) with no padding, as defined by the native package.
// Buffers are anonymous memory mappings and are charged against an optional
// resource.Controller.
package packer
