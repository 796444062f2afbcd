package numato

import (
	"testing"
	"time"

	"github.com/arloliu/go-numato/logger"
	"github.com/arloliu/go-numato/transport/simport"
	"github.com/stretchr/testify/require"
)

// newTestDevice creates a Device on bus with short timeouts suitable for tests.
func newTestDevice(t *testing.T, bus *simport.Bus, opts ...DeviceOption) *Device {
	t.Helper()

	defaults := []DeviceOption{
		WithOpener(bus),
		WithLogger(logger.NewNop()),
		WithProbeTimeout(100 * time.Millisecond),
		WithResponseTimeout(200 * time.Millisecond),
		WithInterByteTimeout(5 * time.Millisecond),
	}

	cfg, err := NewDeviceConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	d, err := NewDevice(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

// newTestBus attaches one default board under each name.
func newTestBus(names ...string) *simport.Bus {
	bus := simport.NewBus()
	for _, name := range names {
		bus.Attach(name, simport.NewDevice())
	}

	return bus
}

// board returns the simulated board attached under name.
func board(t *testing.T, bus *simport.Bus, name string) *simport.Device {
	t.Helper()

	dev, ok := bus.Device(name)
	require.True(t, ok, "no board on %s", name)

	return dev
}
