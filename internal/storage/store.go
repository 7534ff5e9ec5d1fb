// Package storage persists simulation runs: metadata, particle snapshots,
// and the raw field buffer.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/tomren/fieldloop/internal/field"
	"github.com/tomren/fieldloop/internal/particles"
)

const (
	metadataFile  = "metadata.json"
	particlesFile = "particles.csv"
	fieldFile     = "field.f32"
)

// Store manages a directory of saved runs.
type Store struct {
	baseDir string
}

// New creates a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init ensures the base directory exists.
func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one saved run.
type RunMetadata struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Device    string             `json:"device"`
	Ticks     int                `json:"ticks"`
	GridW     int                `json:"grid_width"`
	GridH     int                `json:"grid_height"`
	Dt        float64            `json:"dt"`
	Gravity   float64            `json:"gravity"`
	Damping   float64            `json:"damping"`
	Particles int                `json:"particles"`
	Metrics   map[string]float64 `json:"metrics"`
}

type particleRow struct {
	X   float32 `csv:"x"`
	Y   float32 `csv:"y"`
	VX  float32 `csv:"vx"`
	VY  float32 `csv:"vy"`
	Mag float32 `csv:"mag"`
}

// Save writes one run directory: metadata JSON, the particle snapshot as
// CSV, and the field buffer as a flat float32 dump. It returns the run ID.
func (s *Store) Save(meta RunMetadata, parts []particles.Particle, grid *field.Store) (string, error) {
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("run_%d", time.Now().Unix())
	}
	meta.Timestamp = time.Now()
	meta.Particles = len(parts)
	meta.GridW, meta.GridH = grid.Dims()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, metadataFile), data, 0644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}

	rows := make([]particleRow, len(parts))
	for i, p := range parts {
		rows[i] = particleRow{X: p.X, Y: p.Y, VX: p.VX, VY: p.VY, Mag: p.Mag}
	}
	pf, err := os.Create(filepath.Join(runDir, particlesFile))
	if err != nil {
		return "", fmt.Errorf("creating particle export: %w", err)
	}
	defer pf.Close()
	if err := gocsv.MarshalFile(&rows, pf); err != nil {
		return "", fmt.Errorf("writing particle export: %w", err)
	}

	if err := grid.SaveFile(filepath.Join(runDir, fieldFile)); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// LoadParticles reads a saved particle snapshot back.
func (s *Store) LoadParticles(runID string) ([]particles.Particle, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, particlesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rows []particleRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("reading particle export: %w", err)
	}
	out := make([]particles.Particle, len(rows))
	for i, r := range rows {
		out[i] = particles.Particle{X: r.X, Y: r.Y, VX: r.VX, VY: r.VY, Mag: r.Mag}
	}
	return out, nil
}

// LoadField restores a saved field dump into the grid store. The dump's
// shape must match; the store's load enforces that atomically.
func (s *Store) LoadField(runID string, grid *field.Store) error {
	return grid.LoadFile(filepath.Join(s.baseDir, runID, fieldFile))
}

// List returns metadata for every saved run.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name(), metadataFile))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}
