package device

import "fmt"

// logWriter is the slice of logging.Logger the Log device depends on —
// kept narrow so device doesn't need to import the logging package's
// full surface (or, in tests, a stub can satisfy it without pulling in
// charmbracelet/log at all).
type logWriter interface {
	Info(msg string, kv ...any)
}

// LogDevice is always bound at LogSlot. It never produces a wire
// message of its own kind — every payload routed to it is rendered as
// a single structured info-level log line instead, per spec.md §9's
// design note that the Log device exists so a scene with no other
// devices bound is still observable.
type LogDevice struct {
	logger logWriter
}

func NewLogDevice(logger logWriter) *LogDevice {
	return &LogDevice{logger: logger}
}

func (d *LogDevice) Address() string { return "log" }
func (d *LogDevice) Kind() Kind      { return KindLog }
func (d *LogDevice) Connect() error  { return nil }
func (d *LogDevice) Flush() error    { return nil }

func (d *LogDevice) Send(p Payload) error {
	switch p.Kind {
	case KindMidiOut:
		d.logger.Info("midi", "bytes", fmt.Sprintf("% X", p.MIDIBytes))
	case KindOscOut:
		d.logger.Info("osc", "address", p.OSCAddr, "args", p.OSCArgs)
	case KindAudioEngine:
		d.logger.Info("audio-engine", "event", p.AudioEngineInstrument.Kind)
	default:
		d.logger.Info(p.LogMessage)
	}
	return nil
}
