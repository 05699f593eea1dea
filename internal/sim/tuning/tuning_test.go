package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("shipped defaults do not validate: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := []byte("tick_rate_hz: 30\nfire:\n  speed: 2.0\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.TickRateHz != 30 {
		t.Fatalf("tick_rate_hz = %d, want 30", tune.TickRateHz)
	}
	if tune.Fire.Speed != 2.0 {
		t.Fatalf("fire.speed = %v, want 2.0", tune.Fire.Speed)
	}
	// Unset keys keep their defaults.
	if tune.Heat.SpreadRate != Defaults().Heat.SpreadRate {
		t.Fatalf("unset key lost its default: %v", tune.Heat.SpreadRate)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"zero_tick_rate": "tick_rate_hz: 0\n",
		"bad_grid":       "grid:\n  tiles_x: -4\n",
		"cap_inversion":  "heat:\n  hard_cap: 0.5\n  soft_cap: 1.0\n",
		"not_yaml":       "{{{\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDigestTracksGameplayValues(t *testing.T) {
	a := Defaults()
	b := Defaults()
	if a.Digest() != b.Digest() {
		t.Fatalf("identical tuning produced different digests")
	}

	b.Fire.Speed = 2.0
	if a.Digest() == b.Digest() {
		t.Fatalf("gameplay change did not move the digest")
	}

	// Purely local knobs stay out of the digest; peers need not agree on them.
	c := Defaults()
	c.DeltaEveryTicks = 5
	if a.Digest() != c.Digest() {
		t.Fatalf("local sync cadence leaked into the handshake digest")
	}
}
