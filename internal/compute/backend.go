// Package compute implements the vector-field operation contract over two
// interchangeable backends: a sequential in-process implementation and an
// OpenCL-accelerated one, selected at runtime by the Dispatcher.
package compute

import (
	"errors"

	"github.com/tomren/fieldloop/internal/field"
)

// Kind names a backend device.
type Kind string

const (
	Sequential  Kind = "sequential"
	Accelerated Kind = "accelerated"
)

// ParseKind validates a device name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Sequential, Accelerated:
		return Kind(s), nil
	default:
		return "", errors.New("unknown device kind: " + s)
	}
}

// ErrUnavailable is returned by compute entry points of a backend that
// failed to initialize. The Dispatcher never routes calls to such a
// backend, so seeing this error indicates a caller bug.
var ErrUnavailable = errors.New("compute backend unavailable")

// CrossSplat is one entry of a batched cross-pattern seed: a position and
// the magnitude of the four directional splats issued around it.
type CrossSplat struct {
	X   float32
	Y   float32
	Mag float32
}

// Backend is the field-operation contract implemented identically by the
// sequential and accelerated devices. Grids are borrowed per call; backends
// hold no internal locks and assume one writer at a time.
//
// Point queries (SumAdjacent) treat out-of-range neighbors as zero, while
// Diffuse replicates edge values into its virtual border. The asymmetry is
// part of the contract.
type Backend interface {
	Kind() Kind
	Available() bool
	Describe() Descriptor

	SumAdjacent(g *field.Grid, x, y int, selfW, neighborW float32) (field.Vec2, error)
	Diffuse(g *field.Grid, selfW, neighborW float32) error
	Splat(g *field.Grid, x, y, vx, vy float32) error
	SplatCross(g *field.Grid, x, y, mag float32) error
	SplatCrossBatch(g *field.Grid, entries []CrossSplat) error
	Sample(g *field.Grid, x, y float32) (field.Vec2, error)
	SampleBatch(g *field.Grid, coords []field.Vec2, out []field.Vec2) ([]field.Vec2, error)

	// Close releases device resources. Idempotent.
	Close()
}

// Descriptor reports a backend's identity and construction outcome. Set
// once when the backend is built; immutable afterward.
type Descriptor struct {
	Kind      Kind
	Available bool
	Device    string
	InitErr   error
}
