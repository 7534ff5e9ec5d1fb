package compute

import "github.com/tomren/fieldloop/internal/field"

// CPUBackend is the sequential backend. It is always available and is the
// reference implementation of the operation contract.
type CPUBackend struct {
	// scratch holds the pre-pass snapshot used by Diffuse, reused across
	// calls to limit allocations.
	scratch []float32
}

// NewCPU constructs the sequential backend.
func NewCPU() *CPUBackend {
	return &CPUBackend{}
}

func (c *CPUBackend) Kind() Kind      { return Sequential }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Close()          {}

func (c *CPUBackend) Describe() Descriptor {
	return Descriptor{Kind: Sequential, Available: true, Device: "cpu"}
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

// bilinear resolves a continuous coordinate to its four surrounding cell
// indices and weights. Coordinates are clamped into [0,W-1]×[0,H-1] before
// flooring and the +1 neighbor index is clamped rather than wrapped, so at
// the boundary two corners legitimately address the same cell with
// overlapping weight.
func bilinear(g *field.Grid, x, y float32) (x0, x1, y0, y1 int, wx, wy float32) {
	w, h := g.Width(), g.Height()
	x = clampf(x, 0, float32(w-1))
	y = clampf(y, 0, float32(h-1))
	x0 = int(x)
	y0 = int(y)
	x1 = x0 + 1
	if x1 > w-1 {
		x1 = w - 1
	}
	y1 = y0 + 1
	if y1 > h-1 {
		y1 = h - 1
	}
	wx = x - float32(x0)
	wy = y - float32(y0)
	return
}

// SumAdjacent returns the weighted sum of the cell at (x, y) and its four
// axis neighbors. Out-of-range cells contribute zero.
func (c *CPUBackend) SumAdjacent(g *field.Grid, x, y int, selfW, neighborW float32) (field.Vec2, error) {
	var sum field.Vec2
	if g.InBounds(x, y) {
		v := g.At(x, y)
		sum.X += v.X * selfW
		sum.Y += v.Y * selfW
	}
	for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		nx, ny := x+d[0], y+d[1]
		if g.InBounds(nx, ny) {
			v := g.At(nx, ny)
			sum.X += v.X * neighborW
			sum.Y += v.Y * neighborW
		}
	}
	return sum, nil
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Diffuse blends every cell with its four axis neighbors in a single pass,
// overwriting the grid in place. Boundary cells reuse their own edge value
// as the missing neighbor (edge-replicated virtual padding), unlike the
// zero contribution of SumAdjacent.
func (c *CPUBackend) Diffuse(g *field.Grid, selfW, neighborW float32) error {
	data := g.Data()
	if cap(c.scratch) < len(data) {
		c.scratch = make([]float32, len(data))
	}
	src := c.scratch[:len(data)]
	copy(src, data)

	w, h := g.Width(), g.Height()
	for y := 0; y < h; y++ {
		ym := clampi(y-1, 0, h-1)
		yp := clampi(y+1, 0, h-1)
		for x := 0; x < w; x++ {
			xm := clampi(x-1, 0, w-1)
			xp := clampi(x+1, 0, w-1)
			i := (y*w + x) * 2
			up := (ym*w + x) * 2
			down := (yp*w + x) * 2
			left := (y*w + xm) * 2
			right := (y*w + xp) * 2
			data[i] = selfW*src[i] + neighborW*(src[up]+src[down]+src[left]+src[right])
			data[i+1] = selfW*src[i+1] + neighborW*(src[up+1]+src[down+1]+src[left+1]+src[right+1])
		}
	}
	return nil
}

// Splat scatter-adds (vx, vy) into the four cells surrounding the
// continuous coordinate using standard bilinear weights.
func (c *CPUBackend) Splat(g *field.Grid, x, y, vx, vy float32) error {
	x0, x1, y0, y1, wx, wy := bilinear(g, x, y)
	w00 := (1 - wx) * (1 - wy)
	w01 := wx * (1 - wy)
	w10 := (1 - wx) * wy
	w11 := wx * wy
	g.Add(x0, y0, w00*vx, w00*vy)
	g.Add(x1, y0, w01*vx, w01*vy)
	g.Add(x0, y1, w10*vx, w10*vy)
	g.Add(x1, y1, w11*vx, w11*vy)
	return nil
}

// SplatCross seeds a small cross pattern around (x, y): four splats at the
// axis-neighbor offsets, each directional component scaled by ±mag. The
// center coordinate is clamped before offsetting; each splat clamps again.
func (c *CPUBackend) SplatCross(g *field.Grid, x, y, mag float32) error {
	x = clampf(x, 0, float32(g.Width()-1))
	y = clampf(y, 0, float32(g.Height()-1))
	for _, d := range [4][2]float32{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		if err := c.Splat(g, x+d[0], y+d[1], d[0]*mag, d[1]*mag); err != nil {
			return err
		}
	}
	return nil
}

// SplatCrossBatch applies SplatCross per entry. Splats are additive, so the
// result is independent of entry order.
func (c *CPUBackend) SplatCrossBatch(g *field.Grid, entries []CrossSplat) error {
	for _, e := range entries {
		if err := c.SplatCross(g, e.X, e.Y, e.Mag); err != nil {
			return err
		}
	}
	return nil
}

// Sample reads the bilinearly interpolated field value at a continuous
// coordinate, using the same clamp-and-corner-duplication rule as Splat.
func (c *CPUBackend) Sample(g *field.Grid, x, y float32) (field.Vec2, error) {
	x0, x1, y0, y1, wx, wy := bilinear(g, x, y)
	v00 := g.At(x0, y0)
	v01 := g.At(x1, y0)
	v10 := g.At(x0, y1)
	v11 := g.At(x1, y1)
	w00 := (1 - wx) * (1 - wy)
	w01 := wx * (1 - wy)
	w10 := (1 - wx) * wy
	w11 := wx * wy
	return field.Vec2{
		X: w00*v00.X + w01*v01.X + w10*v10.X + w11*v11.X,
		Y: w00*v00.Y + w01*v01.Y + w10*v10.Y + w11*v11.Y,
	}, nil
}

// SampleBatch samples every coordinate, writing results index-aligned with
// the input into out (allocated when nil or too small).
func (c *CPUBackend) SampleBatch(g *field.Grid, coords []field.Vec2, out []field.Vec2) ([]field.Vec2, error) {
	if cap(out) < len(coords) {
		out = make([]field.Vec2, len(coords))
	}
	out = out[:len(coords)]
	for i, p := range coords {
		v, err := c.Sample(g, p.X, p.Y)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
