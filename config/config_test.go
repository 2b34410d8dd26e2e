package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlagsDefaults(t *testing.T) {
	f, err := ParseFlags(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.MidiPort != -1 {
		t.Fatalf("expected default midi port -1, got %d", f.MidiPort)
	}
	if f.Quantum != 4.0 {
		t.Fatalf("expected default quantum 4.0, got %v", f.Quantum)
	}
	if f.Tempo != 120.0 {
		t.Fatalf("expected default tempo 120.0, got %v", f.Tempo)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	f, err := ParseFlags([]string{"--midi-port=2", "--osc-target=127.0.0.1:57120", "--quantum=3", "--tempo=96"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.MidiPort != 2 {
		t.Fatalf("expected midi port 2, got %d", f.MidiPort)
	}
	if f.OscTarget != "127.0.0.1:57120" {
		t.Fatalf("expected osc target, got %q", f.OscTarget)
	}
	if f.Quantum != 3 {
		t.Fatalf("expected quantum 3, got %v", f.Quantum)
	}
	if f.Tempo != 96 {
		t.Fatalf("expected tempo 96, got %v", f.Tempo)
	}
}

func TestLoadDeviceConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.yaml")
	doc := `
midi_out:
  - name: synth
    port: 0
osc_out:
  - name: dirt
    host: 127.0.0.1
    port: 57120
midi_in:
  - name: controller
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := LoadDeviceConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.MidiOut) != 1 || cfg.MidiOut[0].Name != "synth" || cfg.MidiOut[0].Port != 0 {
		t.Fatalf("unexpected midi_out entries: %+v", cfg.MidiOut)
	}
	if len(cfg.OscOut) != 1 || cfg.OscOut[0].Host != "127.0.0.1" || cfg.OscOut[0].Port != 57120 {
		t.Fatalf("unexpected osc_out entries: %+v", cfg.OscOut)
	}
	if len(cfg.MidiIn) != 1 || cfg.MidiIn[0].Name != "controller" {
		t.Fatalf("unexpected midi_in entries: %+v", cfg.MidiIn)
	}
}

func TestLoadDeviceConfigMissingFile(t *testing.T) {
	if _, err := LoadDeviceConfig("/nonexistent/devices.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
