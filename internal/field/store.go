package field

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
)

// ErrDimensionMismatch is returned when a persisted buffer does not match
// the target grid's declared shape. The grid is left untouched.
var ErrDimensionMismatch = fmt.Errorf("persisted buffer shape does not match grid dimensions")

// Store owns a Grid and guards it for the span of whole operations. The
// compute engine never owns buffer lifetime; it borrows the handle under
// the store's lock for a full tick so the seed→sample ordering inside a
// tick is never observed partially.
type Store struct {
	mu   sync.Mutex
	grid *Grid
}

// NewStore wraps an existing grid.
func NewStore(g *Grid) *Store {
	return &Store{grid: g}
}

// With runs fn with exclusive access to the grid.
func (s *Store) With(fn func(g *Grid) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.grid)
}

// Clear zeroes the grid.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.Clear()
}

// Dims returns the grid dimensions.
func (s *Store) Dims() (w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.width, s.grid.height
}

// Snapshot returns a copy of the raw buffer.
func (s *Store) Snapshot() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.grid.data))
	copy(out, s.grid.data)
	return out
}

// Save writes the grid as a flat little-endian float32 sequence of
// width*height*2 values, row-major by y then x then component.
func (s *Store) Save(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(s.grid.data)*4)
	for i, f := range s.grid.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing field buffer: %w", err)
	}
	return nil
}

// Load replaces the grid contents from a flat float32 sequence. The stored
// shape must exactly match the grid's declared dimensions; on any mismatch
// the load fails and the prior buffer state is unchanged.
func (s *Store) Load(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading field buffer: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	want := len(s.grid.data) * 4
	if len(raw) != want {
		return fmt.Errorf("%w: got %d bytes, want %d (%dx%d)",
			ErrDimensionMismatch, len(raw), want, s.grid.width, s.grid.height)
	}
	for i := range s.grid.data {
		s.grid.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return nil
}

// SaveFile dumps the buffer to path.
func (s *Store) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating field dump: %w", err)
	}
	defer f.Close()
	return s.Save(f)
}

// LoadFile restores the buffer from path.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening field dump: %w", err)
	}
	defer f.Close()
	return s.Load(f)
}
