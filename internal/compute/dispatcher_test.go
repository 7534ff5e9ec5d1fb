package compute

import (
	"testing"

	"github.com/tomren/fieldloop/internal/config"
	"github.com/tomren/fieldloop/internal/events"
	"github.com/tomren/fieldloop/internal/field"
)

// accelAvailable reports whether the accelerated backend initialized on this
// machine; selection-rejection tests only apply when it did not.
func accelAvailable(d *Dispatcher) bool {
	return d.Describe()[1].Available
}

func TestDispatcherDefaultsToSequential(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	defer d.Close()

	if d.Active() != Sequential {
		t.Errorf("initial device = %s, want sequential", d.Active())
	}
	descs := d.Describe()
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	if !descs[0].Available || descs[0].Kind != Sequential {
		t.Errorf("sequential descriptor = %+v", descs[0])
	}
	if descs[1].Kind != Accelerated {
		t.Errorf("second descriptor kind = %s", descs[1].Kind)
	}
}

func TestDispatcherRejectsUnknownKind(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	defer d.Close()

	if err := d.SetDevice(Kind("quantum")); err == nil {
		t.Error("expected rejection of unknown kind")
	}
	if d.Active() != Sequential {
		t.Errorf("device changed to %s on rejected switch", d.Active())
	}
}

func TestDispatcherRejectsUnavailableAccelerated(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	defer d.Close()
	if accelAvailable(d) {
		t.Skip("accelerated backend available on this machine")
	}

	// Rejection is idempotent and never disturbs the active device.
	for i := 0; i < 2; i++ {
		if err := d.SetDevice(Accelerated); err == nil {
			t.Fatal("expected rejection of unavailable device")
		}
		if d.Active() != Sequential {
			t.Fatalf("device changed to %s on rejected switch", d.Active())
		}
	}

	// Compute calls still succeed on the retained device.
	g, _ := field.New(4, 4, field.Vec2{})
	if _, err := d.Sample(g, 1, 1); err != nil {
		t.Errorf("sample after rejected switch: %v", err)
	}
}

func TestDispatcherPublishesDeviceChanged(t *testing.T) {
	bus := events.NewBus(nil)
	var got []events.Event
	bus.Subscribe(events.DeviceChanged, func(e events.Event) { got = append(got, e) })

	d := NewDispatcher(nil, bus, nil)
	defer d.Close()

	if err := d.SetDevice(Sequential); err != nil {
		t.Fatalf("setting device: %v", err)
	}
	if len(got) != 1 || got[0].Device != "sequential" {
		t.Errorf("device change events = %+v", got)
	}
}

func TestDispatcherConfigWatch(t *testing.T) {
	cfg := config.NewStore(config.Default(), nil)
	d := NewDispatcher(cfg, nil, nil)
	defer d.Close()
	if accelAvailable(d) {
		t.Skip("accelerated backend available on this machine")
	}

	// An external config change naming an unavailable device is rejected
	// with a warning; the previous device is retained.
	if err := cfg.SetString(config.KeyDevice, "accelerated"); err != nil {
		t.Fatalf("config write: %v", err)
	}
	if d.Active() != Sequential {
		t.Errorf("device changed to %s from rejected config value", d.Active())
	}
}

func TestDispatcherPersistsSelection(t *testing.T) {
	cfg := config.NewStore(config.Default(), nil)
	d := NewDispatcher(cfg, nil, nil)
	defer d.Close()

	if err := d.SetDevice(Sequential); err != nil {
		t.Fatalf("setting device: %v", err)
	}
	if got := cfg.String(config.KeyDevice, ""); got != "sequential" {
		t.Errorf("persisted device = %q", got)
	}
}

func TestDispatcherDelegates(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	defer d.Close()
	g, _ := field.New(4, 4, field.Vec2{})

	if err := d.SplatCross(g, 2, 2, 1); err != nil {
		t.Fatalf("splat cross: %v", err)
	}
	v, err := d.Sample(g, 2, 1)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !approxVec(v, field.Vec2{X: 0, Y: -1}) {
		t.Errorf("sample = %v, want (0, -1)", v)
	}
	if err := d.Diffuse(g, 0, 0.25); err != nil {
		t.Fatalf("diffuse: %v", err)
	}
	if _, err := d.SumAdjacent(g, 2, 2, 0, 0.25); err != nil {
		t.Fatalf("sum adjacent: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if _, err := ParseKind("sequential"); err != nil {
		t.Errorf("sequential: %v", err)
	}
	if _, err := ParseKind("accelerated"); err != nil {
		t.Errorf("accelerated: %v", err)
	}
	if _, err := ParseKind("gpu"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
