// Package field owns the vector grid storage shared by the compute backends
// and the particle integrator.
package field

import "fmt"

// Vec2 is a single grid cell: a 2-component vector.
type Vec2 struct {
	X float32
	Y float32
}

// Grid is a fixed-size 2D array of 2-component vectors stored as a flat
// float32 slice, x/y components interleaved, row-major by y then x.
type Grid struct {
	width  int
	height int
	data   []float32
}

// New allocates a width×height grid with every cell set to def.
func New(width, height int, def Vec2) (*Grid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", width, height)
	}
	g := &Grid{
		width:  width,
		height: height,
		data:   make([]float32, width*height*2),
	}
	if def != (Vec2{}) {
		g.Fill(def)
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Cells returns the number of cells in the grid.
func (g *Grid) Cells() int { return g.width * g.height }

// Data exposes the raw backing slice for backend kernels and persistence.
// Layout: index (y*width+x)*2 holds X, +1 holds Y.
func (g *Grid) Data() []float32 { return g.data }

func (g *Grid) idx(x, y int) int { return (y*g.width + x) * 2 }

// InBounds reports whether (x, y) addresses a cell of the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// At returns the cell value. (x, y) must be in bounds.
func (g *Grid) At(x, y int) Vec2 {
	i := g.idx(x, y)
	return Vec2{X: g.data[i], Y: g.data[i+1]}
}

// Set overwrites the cell value. (x, y) must be in bounds.
func (g *Grid) Set(x, y int, v Vec2) {
	i := g.idx(x, y)
	g.data[i] = v.X
	g.data[i+1] = v.Y
}

// Add accumulates into the cell value. (x, y) must be in bounds.
func (g *Grid) Add(x, y int, vx, vy float32) {
	i := g.idx(x, y)
	g.data[i] += vx
	g.data[i+1] += vy
}

// Fill sets every cell to def.
func (g *Grid) Fill(def Vec2) {
	for i := 0; i < len(g.data); i += 2 {
		g.data[i] = def.X
		g.data[i+1] = def.Y
	}
}

// Clear zeroes every cell.
func (g *Grid) Clear() {
	for i := range g.data {
		g.data[i] = 0
	}
}
