// Package resource accounts for memory handed to the native index layer and
// throttles its persistence IO.
//
//	┌──────────────────────────────────────────────┐
//	│                 Controller                   │
//	├──────────────────────┬───────────────────────┤
//	│  Memory Limit        │  IO Rate Limiter      │
//	│  (fail-fast)         │  (token bucket)       │
//	├──────────────────────┼───────────────────────┤
//	│  Reserve             │  AcquireIO            │
//	│  AcquireMemory       │  NewRateLimitedWriter │
//	│  ReleaseMemory       │  NewRateLimitedReader │
//	└──────────────────────┴───────────────────────┘
//
// # Memory
//
// AcquireMemory never blocks. When the configured limit would be exceeded it
// returns ErrMemoryLimitExceeded, which the native layer reports as an
// allocation failure:
//
//	r, err := rc.Reserve(int64(layout.Size()))
//	if err != nil {
//	    return err // ErrMemoryLimitExceeded
//	}
//	defer r.Release()
//
// # IO
//
// Index blobs are written and read through rate-limited wrappers so a large
// persist does not starve other users of the disk or network:
//
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
