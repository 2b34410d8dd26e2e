package device

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"
)

// OscOutDevice sends OSC messages to a fixed host:port target, grounded
// on the pack's go-osc client usage (osc.NewClient/osc.NewMessage/
// msg.Append/client.Send). The SuperDirt integration spec.md §4.9
// names sends Dirt events to the single "/dirt/play" address with a
// flat key/value argument list; Osc events go to their own address.
type OscOutDevice struct {
	name   string
	client *osc.Client
}

func NewOscOutDevice(name, host string, port int) *OscOutDevice {
	return &OscOutDevice{name: name, client: osc.NewClient(host, port)}
}

func (d *OscOutDevice) Address() string { return d.name }
func (d *OscOutDevice) Kind() Kind      { return KindOscOut }
func (d *OscOutDevice) Connect() error  { return nil }
func (d *OscOutDevice) Flush() error    { return nil }

func (d *OscOutDevice) Send(p Payload) error {
	if p.OSCAddr == "" {
		return nil
	}
	msg := osc.NewMessage(p.OSCAddr)
	for _, arg := range p.OSCArgs {
		msg.Append(arg)
	}
	if err := d.client.Send(msg); err != nil {
		return fmt.Errorf("device: osc send to %s failed: %w", p.OSCAddr, err)
	}
	return nil
}
