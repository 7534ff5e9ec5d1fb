package compute

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tomren/fieldloop/internal/config"
	"github.com/tomren/fieldloop/internal/events"
	"github.com/tomren/fieldloop/internal/field"
)

// Dispatcher holds both backends and exposes one active device. Compute
// calls always delegate to the active backend; device unavailability only
// ever blocks SetDevice, never an in-flight compute call.
type Dispatcher struct {
	mu     sync.Mutex
	cpu    Backend
	accel  Backend
	active Kind

	cfg *config.Store
	bus *events.Bus
	log *slog.Logger
}

// NewDispatcher constructs both backends and selects the initial device
// from config. Accelerated construction never fails the dispatcher: a
// broken device is recorded as unavailable and stays that way for the
// process lifetime.
func NewDispatcher(cfg *config.Store, bus *events.Bus, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	d := &Dispatcher{
		cpu:    NewCPU(),
		accel:  newAccelerated(log),
		active: Sequential,
		cfg:    cfg,
		bus:    bus,
		log:    log,
	}

	desc := d.accel.Describe()
	if desc.Available {
		d.log.Info("accelerated backend initialized", "device", desc.Device)
		d.publish(events.Event{Kind: events.DeviceInitialized, Device: desc.Device})
	} else {
		d.log.Warn("accelerated backend unavailable", "error", desc.InitErr)
		d.publish(events.Event{Kind: events.DeviceError, Device: string(Accelerated), Err: desc.InitErr})
	}

	if cfg != nil {
		if want := cfg.String(config.KeyDevice, string(Sequential)); want != string(Sequential) {
			if err := d.SetDevice(Kind(want)); err != nil {
				d.log.Warn("configured device rejected, staying on sequential", "device", want, "error", err)
			}
		}
		cfg.Watch(config.KeyDevice, d.onDeviceConfig)
	}
	return d
}

// Active returns the currently selected device kind.
func (d *Dispatcher) Active() Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Describe reports both backend descriptors, sequential first.
func (d *Dispatcher) Describe() []Descriptor {
	return []Descriptor{d.cpu.Describe(), d.accel.Describe()}
}

// SetDevice switches the active backend. Unknown kinds are rejected, and
// accelerated is rejected while unavailable; in both cases the active
// device is unchanged. A successful switch is persisted to config and
// announced on the bus.
func (d *Dispatcher) SetDevice(kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if kind == Accelerated && !d.accel.Available() {
		return fmt.Errorf("cannot select %s: %w", kind, ErrUnavailable)
	}
	d.mu.Lock()
	d.active = kind
	d.mu.Unlock()

	if d.cfg != nil {
		// The device watcher treats a no-op change as already applied.
		if err := d.cfg.SetString(config.KeyDevice, string(kind)); err != nil {
			d.log.Warn("persisting device selection", "error", err)
		}
	}
	d.log.Info("compute device changed", "device", string(kind))
	d.publish(events.Event{Kind: events.DeviceChanged, Device: string(kind)})
	return nil
}

// onDeviceConfig reacts to an external configuration change of the device
// key. Naming an unavailable device logs a warning and retains the
// previous device; the dispatcher never silently promotes a broken one.
func (d *Dispatcher) onDeviceConfig(_, new string) {
	if Kind(new) == d.Active() {
		return
	}
	if err := d.SetDevice(Kind(new)); err != nil {
		d.log.Warn("device change from config rejected", "device", new, "error", err)
	}
}

func (d *Dispatcher) publish(e events.Event) {
	if d.bus != nil {
		d.bus.Publish(e)
	}
}

func (d *Dispatcher) backend() Backend {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == Accelerated {
		return d.accel
	}
	return d.cpu
}

func (d *Dispatcher) SumAdjacent(g *field.Grid, x, y int, selfW, neighborW float32) (field.Vec2, error) {
	return d.backend().SumAdjacent(g, x, y, selfW, neighborW)
}

func (d *Dispatcher) Diffuse(g *field.Grid, selfW, neighborW float32) error {
	return d.backend().Diffuse(g, selfW, neighborW)
}

func (d *Dispatcher) Splat(g *field.Grid, x, y, vx, vy float32) error {
	return d.backend().Splat(g, x, y, vx, vy)
}

func (d *Dispatcher) SplatCross(g *field.Grid, x, y, mag float32) error {
	return d.backend().SplatCross(g, x, y, mag)
}

func (d *Dispatcher) SplatCrossBatch(g *field.Grid, entries []CrossSplat) error {
	return d.backend().SplatCrossBatch(g, entries)
}

func (d *Dispatcher) Sample(g *field.Grid, x, y float32) (field.Vec2, error) {
	return d.backend().Sample(g, x, y)
}

func (d *Dispatcher) SampleBatch(g *field.Grid, coords []field.Vec2, out []field.Vec2) ([]field.Vec2, error) {
	return d.backend().SampleBatch(g, coords, out)
}

// Close releases both backends.
func (d *Dispatcher) Close() {
	d.accel.Close()
	d.cpu.Close()
}
