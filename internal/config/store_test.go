package config

import "testing"

func TestStoreGetters(t *testing.T) {
	cfg := Default()
	cfg.GridWidth = 128
	cfg.Gravity = 0.02
	cfg.DiffusePerTick = true
	s := NewStore(cfg, nil)

	if got := s.Int(KeyGridWidth, 0); got != 128 {
		t.Errorf("Int(grid_width) = %d", got)
	}
	if got := s.Float(KeyGravity, 0); got != 0.02 {
		t.Errorf("Float(gravity) = %f", got)
	}
	if !s.Bool(KeyDiffusePerTick, false) {
		t.Error("Bool(diffuse_per_tick) = false")
	}
	if got := s.String(KeyDevice, ""); got != "sequential" {
		t.Errorf("String(device) = %q", got)
	}
	// Unknown keys fall back to the caller's default.
	if got := s.Float("bogus", 7.5); got != 7.5 {
		t.Errorf("Float(bogus) = %f", got)
	}
}

func TestStoreSetValidates(t *testing.T) {
	s := NewStore(Default(), nil)

	if err := s.SetFloat(KeyDt, -1); err == nil {
		t.Error("expected rejection of negative dt")
	}
	if got := s.Float(KeyDt, 0); got != DefaultDt {
		t.Errorf("rejected write changed dt to %f", got)
	}

	if err := s.SetString(KeyDevice, "quantum"); err == nil {
		t.Error("expected rejection of unknown device")
	}
	if got := s.String(KeyDevice, ""); got != "sequential" {
		t.Errorf("rejected write changed device to %q", got)
	}

	if err := s.SetFloat("bogus", 1); err == nil {
		t.Error("expected rejection of unknown key")
	}
}

func TestStoreWatch(t *testing.T) {
	s := NewStore(Default(), nil)

	var gotOld, gotNew string
	calls := 0
	s.Watch(KeyDevice, func(old, new string) {
		gotOld, gotNew = old, new
		calls++
	})

	if err := s.SetString(KeyDevice, "accelerated"); err != nil {
		t.Fatalf("setting device: %v", err)
	}
	if calls != 1 || gotOld != "sequential" || gotNew != "accelerated" {
		t.Errorf("watcher saw %d calls, %q -> %q", calls, gotOld, gotNew)
	}

	// Writing the same value again is a no-op for watchers.
	if err := s.SetString(KeyDevice, "accelerated"); err != nil {
		t.Fatalf("setting device again: %v", err)
	}
	if calls != 1 {
		t.Errorf("watcher fired on no-op write, calls = %d", calls)
	}
}
