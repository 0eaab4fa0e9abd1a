package native

import (
	"sync"
	"sync/atomic"

	"github.com/coder/hnsw"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool

	// calls counts native entry-point invocations.
	calls atomic.Uint64
)

// InitLibrary performs process-wide setup: it registers the distance
// functions of every supported space with the graph codec so that persisted
// indexes can name them. Subsequent calls are no-ops.
func InitLibrary() {
	initOnce.Do(func() {
		for _, def := range spaceDefs {
			hnsw.RegisterDistanceFunc(def.codecName, def.distance)
		}
		initialized.Store(true)
	})
}

// Initialized reports whether InitLibrary has completed.
func Initialized() bool {
	return initialized.Load()
}

// CallCount returns the number of native entry points invoked so far in
// this process. It is a diagnostic for verifying that validation happens
// before any native work.
func CallCount() uint64 {
	return calls.Load()
}
