// Package mmap provides memory mappings that live outside the Go heap.
//
// # Overview
//
// Two kinds of mappings are supported:
//
//   - Open maps an existing file read-only. LocalStore uses it so loading a
//     persisted index never copies the blob through kernel buffers twice.
//   - MapAnon creates a read-write anonymous mapping. The packed batch buffer
//     handed to the native index builder is one such mapping, so a build of
//     any size is a single allocation that is returned to the OS on Close.
//
// # Usage
//
//	m, err := mmap.MapAnon(size)
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := m.Bytes()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) / munmap(2), madvise(2) for hints
//   - Windows: CreateFileMapping/MapViewOfFile and VirtualAlloc (advise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure
// no goroutine touches the slice returned by Bytes after Close returns.
package mmap
