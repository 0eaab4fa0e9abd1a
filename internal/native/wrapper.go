package native

import (
	"sync"

	"github.com/hupe1980/knnbridge/internal/resource"
)

// IndexWrapper owns a Space together with the Index built on it, so the two
// are always released as one unit.
type IndexWrapper struct {
	space *Space
	index *Index
	once  sync.Once
}

// NewIndexWrapper creates the space named spaceName and an empty index over
// it.
func NewIndexWrapper(spaceName string, rc *resource.Controller) (*IndexWrapper, error) {
	space, err := NewSpace(spaceName)
	if err != nil {
		return nil, err
	}
	index, err := NewIndex(space, nil, rc)
	if err != nil {
		space.Release()
		return nil, err
	}
	return &IndexWrapper{space: space, index: index}, nil
}

// Space returns the wrapped space.
func (w *IndexWrapper) Space() *Space {
	return w.space
}

// Index returns the wrapped index.
func (w *IndexWrapper) Index() *Index {
	return w.index
}

// Release releases the index and then the space. Only the first call has
// an effect.
func (w *IndexWrapper) Release() {
	w.once.Do(func() {
		w.index.Release()
		w.space.Release()
	})
}
