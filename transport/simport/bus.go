package simport

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-numato/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// Bus is a set of simulated devices addressed by port name. It implements
// transport.Opener; List returns the port names in lexical order.
type Bus struct {
	devices *xsync.MapOf[string, *Device]
}

var _ transport.Opener = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{devices: xsync.NewMapOf[string, *Device]()}
}

// Attach connects dev to the bus under port name.
func (b *Bus) Attach(name string, dev *Device) {
	b.devices.Store(name, dev)
}

// Detach removes the device of port name, as if it was unplugged.
func (b *Bus) Detach(name string) {
	b.devices.Delete(name)
}

// Device returns the device of port name.
func (b *Bus) Device(name string) (*Device, bool) {
	return b.devices.Load(name)
}

// Open opens the device attached under name.
func (b *Bus) Open(name string, baudRate int) (transport.Port, error) {
	dev, ok := b.devices.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPort, name)
	}

	p := newPort(dev, name)
	if err := dev.attach(p, baudRate); err != nil {
		return nil, err
	}

	return p, nil
}

// List returns the attached port names in lexical order.
func (b *Bus) List() ([]string, error) {
	names := make([]string, 0, b.devices.Size())
	b.devices.Range(func(name string, _ *Device) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names, nil
}
