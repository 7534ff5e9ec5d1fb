package events

import (
	"errors"
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus(nil)

	var got Event
	calls := 0
	b.Subscribe(TickCompleted, func(e Event) {
		got = e
		calls++
	})

	b.Publish(Event{Kind: TickCompleted, Tick: 7, FieldEnergy: 1.5, Particles: 3})
	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
	if got.Tick != 7 || got.FieldEnergy != 1.5 || got.Particles != 3 {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestPublishKindFiltering(t *testing.T) {
	b := NewBus(nil)

	calls := 0
	b.Subscribe(DeviceError, func(Event) { calls++ })

	b.Publish(Event{Kind: TickCompleted})
	b.Publish(Event{Kind: DeviceError, Err: errors.New("boom")})
	if calls != 1 {
		t.Errorf("expected 1 delivery, got %d", calls)
	}
}

func TestSubscriberPanicContained(t *testing.T) {
	b := NewBus(nil)

	b.Subscribe(DeviceChanged, func(Event) { panic("bad subscriber") })
	later := 0
	b.Subscribe(DeviceChanged, func(Event) { later++ })

	// Publish must not panic, and later subscribers still run.
	b.Publish(Event{Kind: DeviceChanged, Device: "sequential"})
	if later != 1 {
		t.Errorf("subscriber after panicking one did not run, calls = %d", later)
	}
}

func TestKindString(t *testing.T) {
	if DeviceInitialized.String() != "device_initialized" {
		t.Error("unexpected name for DeviceInitialized")
	}
	if Kind(99).String() != "unknown" {
		t.Error("unexpected name for out-of-range kind")
	}
}
