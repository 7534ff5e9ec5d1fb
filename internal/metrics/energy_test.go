package metrics

import (
	"math"
	"testing"

	"github.com/tomren/fieldloop/internal/field"
	"github.com/tomren/fieldloop/internal/particles"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestFieldEnergy(t *testing.T) {
	g, _ := field.New(2, 2, field.Vec2{X: 1, Y: 1})
	// Every cell has squared magnitude 2, so the mean is 2.
	if got := FieldEnergy(g); !approx(got, 2) {
		t.Errorf("uniform energy = %f, want 2", got)
	}

	g.Clear()
	if got := FieldEnergy(g); got != 0 {
		t.Errorf("empty energy = %f, want 0", got)
	}
	g.Set(0, 0, field.Vec2{X: 3, Y: 4})
	if got := FieldEnergy(g); !approx(got, 25.0/4) {
		t.Errorf("point energy = %f, want 6.25", got)
	}
}

func TestKineticEnergy(t *testing.T) {
	parts := []particles.Particle{
		{VX: 3, VY: 4, Mag: 2},
		{VX: 0, VY: 0, Mag: 5},
	}
	// 0.5 * 2 * 25 for the first, zero for the second.
	if got := KineticEnergy(parts); !approx(got, 25) {
		t.Errorf("kinetic energy = %f, want 25", got)
	}
	// Magnitude sign does not affect the mass analogue.
	parts[0].Mag = -2
	if got := KineticEnergy(parts); !approx(got, 25) {
		t.Errorf("kinetic energy with negative magnitude = %f, want 25", got)
	}
	if got := KineticEnergy(nil); got != 0 {
		t.Errorf("kinetic energy of nil = %f", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3})
	if !approx(s.Mean, 2) || !approx(s.Min, 1) || !approx(s.Max, 3) || !approx(s.Final, 3) {
		t.Errorf("unexpected summary %+v", s)
	}
	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("empty summary = %+v", got)
	}
}
