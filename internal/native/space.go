package native

import (
	"sync/atomic"

	"github.com/chewxy/math32"
)

// Supported space names.
const (
	SpaceL2           = "l2"
	SpaceCosine       = "cosinesimil"
	SpaceInnerProduct = "innerproduct"
	SpaceL1           = "l1"
	SpaceLInf         = "linf"
)

type spaceDef struct {
	name      string
	codecName string
	distance  func(a, b []float32) float32
}

var spaceDefs = []spaceDef{
	{name: SpaceL2, codecName: "knn_l2", distance: squaredL2},
	{name: SpaceCosine, codecName: "knn_cosinesimil", distance: cosineDistance},
	{name: SpaceInnerProduct, codecName: "knn_innerproduct", distance: innerProductDistance},
	{name: SpaceL1, codecName: "knn_l1", distance: manhattan},
	{name: SpaceLInf, codecName: "knn_linf", distance: chebyshev},
}

func lookupSpace(name string) (spaceDef, bool) {
	for _, def := range spaceDefs {
		if def.name == name {
			return def, true
		}
	}
	return spaceDef{}, false
}

func lookupCodec(codecName string) (spaceDef, bool) {
	for _, def := range spaceDefs {
		if def.codecName == codecName {
			return def, true
		}
	}
	return spaceDef{}, false
}

// SpaceNames lists the supported space names.
func SpaceNames() []string {
	names := make([]string, len(spaceDefs))
	for i, def := range spaceDefs {
		names[i] = def.name
	}
	return names
}

// Space is a distance space over float32 vectors.
type Space struct {
	def      spaceDef
	released atomic.Bool
}

// NewSpace creates the space registered under name.
func NewSpace(name string) (*Space, error) {
	calls.Add(1)

	if !Initialized() {
		return nil, RuntimeError("library is not initialized")
	}

	def, ok := lookupSpace(name)
	if !ok {
		return nil, RuntimeError("It looks like the space %s is not defined for the type float", name)
	}
	return &Space{def: def}, nil
}

// Name returns the space name.
func (s *Space) Name() string {
	return s.def.name
}

// Distance returns the distance between a and b. Smaller is nearer.
func (s *Space) Distance(a, b []float32) float32 {
	return s.def.distance(a, b)
}

// Released reports whether Release has been called.
func (s *Space) Released() bool {
	return s.released.Load()
}

// Release marks the space released. Releasing twice is a no-op.
func (s *Space) Release() {
	s.released.Store(true)
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math32.Sqrt(na)*math32.Sqrt(nb))
}

func innerProductDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

func manhattan(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += math32.Abs(a[i] - b[i])
	}
	return sum
}

func chebyshev(a, b []float32) float32 {
	var m float32
	for i := range a {
		if d := math32.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}
