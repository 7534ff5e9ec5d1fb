package field

import "testing"

func TestNewGrid(t *testing.T) {
	g, err := New(4, 3, Vec2{})
	if err != nil {
		t.Fatalf("creating grid: %v", err)
	}
	if g.Width() != 4 || g.Height() != 3 {
		t.Errorf("expected 4x3, got %dx%d", g.Width(), g.Height())
	}
	if len(g.Data()) != 4*3*2 {
		t.Errorf("expected %d floats, got %d", 4*3*2, len(g.Data()))
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if v := g.At(x, y); v != (Vec2{}) {
				t.Errorf("cell (%d,%d) not zero: %v", x, y, v)
			}
		}
	}
}

func TestNewGridDefault(t *testing.T) {
	g, err := New(5, 5, Vec2{X: 1.5, Y: -2})
	if err != nil {
		t.Fatalf("creating grid: %v", err)
	}
	if v := g.At(3, 4); v != (Vec2{X: 1.5, Y: -2}) {
		t.Errorf("expected default value, got %v", v)
	}
}

func TestNewGridInvalidDims(t *testing.T) {
	for _, dims := range [][2]int{{0, 4}, {4, 0}, {-1, 2}} {
		if _, err := New(dims[0], dims[1], Vec2{}); err == nil {
			t.Errorf("expected error for %dx%d grid", dims[0], dims[1])
		}
	}
}

func TestGridSetAtAdd(t *testing.T) {
	g, _ := New(3, 3, Vec2{})
	g.Set(1, 2, Vec2{X: 1, Y: 2})
	g.Add(1, 2, 0.5, -0.5)
	if v := g.At(1, 2); v != (Vec2{X: 1.5, Y: 1.5}) {
		t.Errorf("expected (1.5, 1.5), got %v", v)
	}
}

func TestGridClear(t *testing.T) {
	g, _ := New(3, 3, Vec2{X: 1, Y: 1})
	g.Clear()
	for _, f := range g.Data() {
		if f != 0 {
			t.Fatal("clear left nonzero data")
		}
	}
}

func TestInBounds(t *testing.T) {
	g, _ := New(3, 2, Vec2{})
	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, true}, {2, 1, true}, {3, 1, false}, {2, 2, false}, {-1, 0, false}, {0, -1, false},
	}
	for _, c := range cases {
		if got := g.InBounds(c.x, c.y); got != c.want {
			t.Errorf("InBounds(%d,%d) = %t, want %t", c.x, c.y, got, c.want)
		}
	}
}
