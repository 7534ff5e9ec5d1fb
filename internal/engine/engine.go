// Package engine composes the grid store, backend dispatcher, and particle
// set into the per-tick feedback loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tomren/fieldloop/internal/compute"
	"github.com/tomren/fieldloop/internal/config"
	"github.com/tomren/fieldloop/internal/events"
	"github.com/tomren/fieldloop/internal/field"
	"github.com/tomren/fieldloop/internal/metrics"
	"github.com/tomren/fieldloop/internal/particles"
)

// Engine drives the simulation from a single goroutine. Each tick borrows
// the grid from its store for the whole seed→sample→integrate span, then
// optionally applies diffusion.
type Engine struct {
	store *field.Store
	disp  *compute.Dispatcher
	set   *particles.Set
	cfg   *config.Store
	bus   *events.Bus
	log   *slog.Logger

	tick       int
	lastEnergy float64
}

// New wires an engine. bus and log may be nil.
func New(store *field.Store, disp *compute.Dispatcher, set *particles.Set, cfg *config.Store, bus *events.Bus, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, disp: disp, set: set, cfg: cfg, bus: bus, log: log}
}

func (e *Engine) Store() *field.Store             { return e.store }
func (e *Engine) Particles() *particles.Set       { return e.set }
func (e *Engine) Dispatcher() *compute.Dispatcher { return e.disp }

// Tick runs one simulation step. Errors are returned to the caller, who
// decides between log-and-continue and abort; nothing is swallowed here.
func (e *Engine) Tick() error {
	p := particles.Params{
		Dt:       float32(e.cfg.Float(config.KeyDt, config.DefaultDt)),
		Gravity:  float32(e.cfg.Float(config.KeyGravity, config.DefaultGravity)),
		Damping:  float32(e.cfg.Float(config.KeyDamping, config.DefaultDamping)),
		CellSize: float32(e.cfg.Float(config.KeyCellSize, config.DefaultCellSize)),
	}
	diffuse := e.cfg.Bool(config.KeyDiffusePerTick, false)
	selfW := float32(e.cfg.Float(config.KeySelfWeight, config.DefaultSelfWeight))
	neighborW := float32(e.cfg.Float(config.KeyNeighborWeight, config.DefaultNeighborWeight))

	var energy float64
	err := e.store.With(func(g *field.Grid) error {
		if err := e.set.Step(g, e.disp, p); err != nil {
			return err
		}
		if diffuse {
			if err := e.disp.Diffuse(g, selfW, neighborW); err != nil {
				return fmt.Errorf("diffusing field: %w", err)
			}
		}
		energy = metrics.FieldEnergy(g)
		return nil
	})
	if err != nil {
		return fmt.Errorf("tick %d: %w", e.tick, err)
	}

	e.tick++
	e.lastEnergy = energy
	if e.bus != nil {
		e.bus.Publish(events.Event{
			Kind:        events.TickCompleted,
			Device:      string(e.disp.Active()),
			Tick:        e.tick,
			FieldEnergy: energy,
			Particles:   e.set.Len(),
		})
	}
	return nil
}

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() int { return e.tick }

// Result collects per-tick series from a Run.
type Result struct {
	Ticks       int
	FieldEnergy []float64
	Kinetic     []float64
}

// Run executes up to ticks steps, honoring ctx cancellation between steps.
// The partial result is returned alongside any error.
func (e *Engine) Run(ctx context.Context, ticks int) (*Result, error) {
	if ticks < 1 {
		return nil, fmt.Errorf("tick count must be positive, got %d", ticks)
	}
	result := &Result{
		FieldEnergy: make([]float64, 0, ticks),
		Kinetic:     make([]float64, 0, ticks),
	}
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		if err := e.Tick(); err != nil {
			return result, err
		}
		result.Ticks++
		result.FieldEnergy = append(result.FieldEnergy, e.lastEnergy)
		result.Kinetic = append(result.Kinetic, metrics.KineticEnergy(e.set.Snapshot()))
	}
	return result, nil
}
