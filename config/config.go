// Package config implements the daemon's command-line flags and its
// YAML device-map configuration file, generalizing the teacher's bare
// -script flag (main.go) into the richer flag set a standalone core
// process needs, and adding a declarative device-binding file so a
// performance's MIDI/OSC rig doesn't have to be wired by hand on every
// boot.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/brassline/core/device"
)

// Flags is the daemon's parsed command-line configuration.
type Flags struct {
	MidiPort   int
	OscTarget  string
	ConfigPath string
	Quantum    float64
	Tempo      float64
	ScriptFile string
}

// ParseFlags defines and parses the daemon's posix-style flags via
// pflag, a drop-in replacement for stdlib flag that also accepts
// --long-form and -short-form switches.
func ParseFlags(args []string) (*Flags, error) {
	fs := pflag.NewFlagSet("brassline-cli", pflag.ContinueOnError)

	f := &Flags{}
	fs.IntVar(&f.MidiPort, "midi-port", -1, "MIDI output port index to open (-1 = prompt/auto-select)")
	fs.StringVar(&f.OscTarget, "osc-target", "", "host:port to bind an OSC output device to (e.g. 127.0.0.1:57120)")
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML device-map config file")
	fs.Float64Var(&f.Quantum, "quantum", 4.0, "shared bar length in beats")
	fs.Float64Var(&f.Tempo, "tempo", 120.0, "starting tempo in BPM")
	fs.StringVar(&f.ScriptFile, "script", "", "execute commands from file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// DeviceConfig is the YAML document shape a performance's rig is
// declared in: named MIDI/OSC/input devices bound at boot, before any
// interactive command touches the DeviceMap.
type DeviceConfig struct {
	MidiOut []MidiOutEntry `yaml:"midi_out"`
	OscOut  []OscOutEntry  `yaml:"osc_out"`
	MidiIn  []MidiInEntry  `yaml:"midi_in"`
}

type MidiOutEntry struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

type OscOutEntry struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MidiInEntry struct {
	Name string `yaml:"name"`
}

// LoadDeviceConfig reads and parses a device-map YAML file.
func LoadDeviceConfig(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read device config %q: %w", path, err)
	}
	var cfg DeviceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse device config %q: %w", path, err)
	}
	return &cfg, nil
}

// Bind opens every device the config declares and binds it into dm.
// A failure to open one MIDI port doesn't abort the rest of the
// config — the daemon should still come up with whatever devices it
// could reach, logging the rest as unavailable.
func (c *DeviceConfig) Bind(dm *device.DeviceMap) []error {
	var errs []error

	for _, m := range c.MidiOut {
		dev, err := device.OpenMidiOut(m.Port, m.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: midi_out %q: %w", m.Name, err))
			continue
		}
		if _, err := dm.Bind(m.Name, dev); err != nil {
			errs = append(errs, fmt.Errorf("config: binding midi_out %q: %w", m.Name, err))
		}
	}

	for _, o := range c.OscOut {
		dev := device.NewOscOutDevice(o.Name, o.Host, o.Port)
		if _, err := dm.Bind(o.Name, dev); err != nil {
			errs = append(errs, fmt.Errorf("config: binding osc_out %q: %w", o.Name, err))
		}
	}

	for _, m := range c.MidiIn {
		dev := device.NewMidiInDevice(m.Name)
		if _, err := dm.Bind(m.Name, dev); err != nil {
			errs = append(errs, fmt.Errorf("config: binding midi_in %q: %w", m.Name, err))
		}
	}

	return errs
}
