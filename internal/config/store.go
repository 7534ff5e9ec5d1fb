package config

import (
	"fmt"
	"log/slog"
	"sync"
)

// Watcher observes a key change. old and new are the string forms of the
// previous and new values.
type Watcher func(old, new string)

// Store wraps a Config with keyed access and change notification. Invalid
// writes are rejected at this boundary: the operation no-ops, a warning is
// logged, and the error is returned to the caller.
type Store struct {
	mu       sync.Mutex
	cfg      *Config
	log      *slog.Logger
	watchers map[string][]Watcher
}

// NewStore wraps cfg. log may be nil.
func NewStore(cfg *Config, log *slog.Logger) *Store {
	if cfg == nil {
		cfg = Default()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{
		cfg:      cfg,
		log:      log,
		watchers: make(map[string][]Watcher),
	}
}

// Watch registers fn for changes to key.
func (s *Store) Watch(key string, fn Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[key] = append(s.watchers[key], fn)
}

// Config returns a copy of the current document.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cfg
}

// Float reads a float-valued key, falling back to def for unknown keys.
func (s *Store) Float(key string, def float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case KeyCellSize:
		return s.cfg.CellSize
	case KeySelfWeight:
		return s.cfg.SelfWeight
	case KeyNeighborWeight:
		return s.cfg.NeighborWeight
	case KeyDt:
		return s.cfg.Dt
	case KeyGravity:
		return s.cfg.Gravity
	case KeyDamping:
		return s.cfg.Damping
	default:
		return def
	}
}

// Int reads an int-valued key, falling back to def for unknown keys.
func (s *Store) Int(key string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case KeyGridWidth:
		return s.cfg.GridWidth
	case KeyGridHeight:
		return s.cfg.GridHeight
	default:
		return def
	}
}

// Bool reads a bool-valued key, falling back to def for unknown keys.
func (s *Store) Bool(key string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == KeyDiffusePerTick {
		return s.cfg.DiffusePerTick
	}
	return def
}

// String reads a string-valued key, falling back to def for unknown keys.
func (s *Store) String(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == KeyDevice {
		return s.cfg.Device
	}
	return def
}

// SetFloat updates a float-valued key.
func (s *Store) SetFloat(key string, value float64) error {
	s.mu.Lock()
	var target *float64
	switch key {
	case KeyCellSize:
		target = &s.cfg.CellSize
	case KeySelfWeight:
		target = &s.cfg.SelfWeight
	case KeyNeighborWeight:
		target = &s.cfg.NeighborWeight
	case KeyDt:
		target = &s.cfg.Dt
	case KeyGravity:
		target = &s.cfg.Gravity
	case KeyDamping:
		target = &s.cfg.Damping
	}
	if target == nil {
		s.mu.Unlock()
		return s.reject(key, fmt.Errorf("unknown float key %q", key))
	}
	old := *target
	*target = value
	if err := s.cfg.Validate(); err != nil {
		*target = old
		s.mu.Unlock()
		return s.reject(key, err)
	}
	s.mu.Unlock()
	s.notify(key, fmt.Sprintf("%g", old), fmt.Sprintf("%g", value))
	return nil
}

// SetBool updates a bool-valued key.
func (s *Store) SetBool(key string, value bool) error {
	s.mu.Lock()
	if key != KeyDiffusePerTick {
		s.mu.Unlock()
		return s.reject(key, fmt.Errorf("unknown bool key %q", key))
	}
	old := s.cfg.DiffusePerTick
	s.cfg.DiffusePerTick = value
	s.mu.Unlock()
	s.notify(key, fmt.Sprintf("%t", old), fmt.Sprintf("%t", value))
	return nil
}

// SetString updates a string-valued key.
func (s *Store) SetString(key, value string) error {
	s.mu.Lock()
	if key != KeyDevice {
		s.mu.Unlock()
		return s.reject(key, fmt.Errorf("unknown string key %q", key))
	}
	old := s.cfg.Device
	s.cfg.Device = value
	if err := s.cfg.Validate(); err != nil {
		s.cfg.Device = old
		s.mu.Unlock()
		return s.reject(key, err)
	}
	s.mu.Unlock()
	s.notify(key, old, value)
	return nil
}

func (s *Store) reject(key string, err error) error {
	s.log.Warn("config write rejected", "key", key, "error", err)
	return err
}

func (s *Store) notify(key, old, new string) {
	if old == new {
		return
	}
	s.mu.Lock()
	ws := s.watchers[key]
	s.mu.Unlock()
	for _, fn := range ws {
		fn(old, new)
	}
}
