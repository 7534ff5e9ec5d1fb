// Package metrics computes diagnostic reductions over field and particle
// state for run summaries and the live view.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/tomren/fieldloop/internal/field"
	"github.com/tomren/fieldloop/internal/particles"
)

// FieldEnergy returns the mean squared vector magnitude of the grid.
func FieldEnergy(g *field.Grid) float64 {
	data := g.Data()
	var total float64
	for _, f := range data {
		total += float64(f) * float64(f)
	}
	return total / float64(g.Cells())
}

// KineticEnergy returns the summed kinetic energy of the particles, using
// |magnitude| as the mass analogue.
func KineticEnergy(parts []particles.Particle) float64 {
	var total float64
	for _, p := range parts {
		v2 := float64(p.VX)*float64(p.VX) + float64(p.VY)*float64(p.VY)
		total += 0.5 * math.Abs(float64(p.Mag)) * v2
	}
	return total
}

// Summary reduces a per-tick series.
type Summary struct {
	Mean  float64
	Min   float64
	Max   float64
	Final float64
}

// Summarize computes series statistics. A nil or empty series yields the
// zero Summary.
func Summarize(series []float64) Summary {
	if len(series) == 0 {
		return Summary{}
	}
	return Summary{
		Mean:  floats.Sum(series) / float64(len(series)),
		Min:   floats.Min(series),
		Max:   floats.Max(series),
		Final: series[len(series)-1],
	}
}
