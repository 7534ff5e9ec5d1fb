// Package events is the notification collaborator: engine components
// publish device and tick events, subscribers consume them out of band.
package events

import (
	"log/slog"
	"sync"
)

// Kind identifies an event.
type Kind uint8

const (
	DeviceInitialized Kind = iota
	DeviceError
	DeviceChanged
	TickCompleted
)

func (k Kind) String() string {
	switch k {
	case DeviceInitialized:
		return "device_initialized"
	case DeviceError:
		return "device_error"
	case DeviceChanged:
		return "device_changed"
	case TickCompleted:
		return "tick_completed"
	default:
		return "unknown"
	}
}

// Event is a single notification.
type Event struct {
	Kind   Kind
	Device string
	Err    error

	// Tick diagnostics, set on TickCompleted.
	Tick        int
	FieldEnergy float64
	Particles   int
}

// Handler consumes events. Handlers run synchronously on the publisher's
// goroutine and must not block.
type Handler func(Event)

// Bus fans events out to subscribers. A failing subscriber must never abort
// the compute call that published, so handler panics are contained here.
type Bus struct {
	mu       sync.Mutex
	handlers map[Kind][]Handler
	log      *slog.Logger
}

// NewBus creates an empty bus. log may be nil.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		log:      log,
	}
}

// Subscribe registers h for events of kind k.
func (b *Bus) Subscribe(k Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[k] = append(b.handlers[k], h)
}

// Publish delivers e to every subscriber of its kind.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	hs := b.handlers[e.Kind]
	b.mu.Unlock()
	for _, h := range hs {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("event subscriber panicked", "event", e.Kind.String(), "panic", r)
		}
	}()
	h(e)
}
