//go:build !opencl

package compute

import (
	"errors"
	"log/slog"

	"github.com/tomren/fieldloop/internal/field"
)

var errNotBuilt = errors.New("OpenCL support is not enabled; rebuild with -tags opencl")

// acceleratedStub stands in for the OpenCL backend when the build excludes
// it. It reports unavailable and rejects every compute entry point.
type acceleratedStub struct{}

func newAccelerated(_ *slog.Logger) Backend { return &acceleratedStub{} }

func (s *acceleratedStub) Kind() Kind      { return Accelerated }
func (s *acceleratedStub) Available() bool { return false }
func (s *acceleratedStub) Close()          {}

func (s *acceleratedStub) Describe() Descriptor {
	return Descriptor{Kind: Accelerated, InitErr: errNotBuilt}
}

func (s *acceleratedStub) SumAdjacent(*field.Grid, int, int, float32, float32) (field.Vec2, error) {
	return field.Vec2{}, ErrUnavailable
}

func (s *acceleratedStub) Diffuse(*field.Grid, float32, float32) error { return ErrUnavailable }

func (s *acceleratedStub) Splat(*field.Grid, float32, float32, float32, float32) error {
	return ErrUnavailable
}

func (s *acceleratedStub) SplatCross(*field.Grid, float32, float32, float32) error {
	return ErrUnavailable
}

func (s *acceleratedStub) SplatCrossBatch(*field.Grid, []CrossSplat) error { return ErrUnavailable }

func (s *acceleratedStub) Sample(*field.Grid, float32, float32) (field.Vec2, error) {
	return field.Vec2{}, ErrUnavailable
}

func (s *acceleratedStub) SampleBatch(*field.Grid, []field.Vec2, []field.Vec2) ([]field.Vec2, error) {
	return nil, ErrUnavailable
}
