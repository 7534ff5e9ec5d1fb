// Package particles owns the particle state and the per-tick feedback
// integration against the vector field.
package particles

import (
	"errors"
	"fmt"
	"math"

	"github.com/tomren/fieldloop/internal/compute"
	"github.com/tomren/fieldloop/internal/field"
)

// ErrZeroMagnitude rejects particles whose field feedback would divide by
// zero during integration.
var ErrZeroMagnitude = errors.New("particle magnitude must be non-zero")

// Particle is a point entity coupled to the field: it seeds the field with
// a cross splat scaled by its magnitude and reads the field back, with the
// response inversely proportional to the same magnitude. Negative
// magnitudes invert the seeded field direction.
type Particle struct {
	X   float32
	Y   float32
	VX  float32
	VY  float32
	Mag float32
}

// Params are the per-tick integration inputs.
type Params struct {
	Dt       float32
	Gravity  float32
	Damping  float32
	CellSize float32
}

// FieldOps is the slice of the compute contract the integrator needs. The
// dispatcher and both backends satisfy it.
type FieldOps interface {
	SplatCrossBatch(g *field.Grid, entries []compute.CrossSplat) error
	SampleBatch(g *field.Grid, coords []field.Vec2, out []field.Vec2) ([]field.Vec2, error)
}

// Set is an insertion-ordered particle collection. Order is preserved for
// reproducibility; duplicates by position are allowed; particles are only
// ever removed in bulk by Clear. The set assumes a single simulation
// goroutine and holds no locks.
type Set struct {
	items []Particle

	seeds   []compute.CrossSplat
	coords  []field.Vec2
	sampled []field.Vec2
}

// NewSet returns an empty particle set.
func NewSet() *Set {
	return &Set{}
}

// Add stores a particle with raw, unclamped values; positions are only
// clamped during integration. A zero magnitude is rejected here so the
// feedback phase stays total.
func (s *Set) Add(x, y, mag, vx, vy float32) error {
	if mag == 0 {
		return ErrZeroMagnitude
	}
	s.items = append(s.items, Particle{X: x, Y: y, VX: vx, VY: vy, Mag: mag})
	return nil
}

// Clear empties the collection.
func (s *Set) Clear() {
	s.items = s.items[:0]
}

// Len returns the particle count.
func (s *Set) Len() int {
	return len(s.items)
}

// Snapshot returns a copy of the particle state. Mutating the copy does not
// affect engine state.
func (s *Set) Snapshot() []Particle {
	out := make([]Particle, len(s.items))
	copy(out, s.items)
	return out
}

// Step executes one feedback tick. Each phase is a barrier across the whole
// set: every particle completes a phase before any particle enters the
// next, and phases 1 and 2 both use positions from the start of the tick.
//
//  1. seed: cross-splat every particle's magnitude into the grid
//  2. sample: batch-read the field (which now includes this tick's seeds)
//  3. feedback: velocity += sampled / magnitude
//  4. speed clamp: |velocity| rescaled to at most cellSize
//  5. integrate: position += velocity*dt, clamped into the grid
//  6. gravity then isotropic damping, in that order, last
func (s *Set) Step(g *field.Grid, ops FieldOps, p Params) error {
	if len(s.items) == 0 {
		return nil
	}

	s.seeds = s.seeds[:0]
	s.coords = s.coords[:0]
	for _, pt := range s.items {
		s.seeds = append(s.seeds, compute.CrossSplat{X: pt.X, Y: pt.Y, Mag: pt.Mag})
		s.coords = append(s.coords, field.Vec2{X: pt.X, Y: pt.Y})
	}

	if err := ops.SplatCrossBatch(g, s.seeds); err != nil {
		return fmt.Errorf("seeding field: %w", err)
	}

	var err error
	s.sampled, err = ops.SampleBatch(g, s.coords, s.sampled)
	if err != nil {
		return fmt.Errorf("sampling field: %w", err)
	}

	for i := range s.items {
		s.items[i].VX += s.sampled[i].X / s.items[i].Mag
		s.items[i].VY += s.sampled[i].Y / s.items[i].Mag
	}

	for i := range s.items {
		clampSpeed(&s.items[i], p.CellSize)
	}

	maxX := float32(g.Width() - 1)
	maxY := float32(g.Height() - 1)
	for i := range s.items {
		pt := &s.items[i]
		pt.X = clampf(pt.X+pt.VX*p.Dt, 0, maxX)
		pt.Y = clampf(pt.Y+pt.VY*p.Dt, 0, maxY)
	}

	for i := range s.items {
		pt := &s.items[i]
		pt.VY += p.Gravity * p.Dt
		pt.VX *= p.Damping
		pt.VY *= p.Damping
	}
	return nil
}

// clampSpeed rescales velocity to norm cellSize when it exceeds it, so a
// particle never moves more than one cell per tick.
func clampSpeed(pt *Particle, cellSize float32) {
	speed := float32(math.Sqrt(float64(pt.VX*pt.VX + pt.VY*pt.VY)))
	if speed > cellSize && speed > 0 {
		pt.VX = pt.VX / speed * cellSize
		pt.VY = pt.VY / speed * cellSize
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
