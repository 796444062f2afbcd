package numato

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arloliu/go-numato/logger"
	"github.com/arloliu/go-numato/protocol"
	"github.com/arloliu/go-numato/transport/simport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// garbled answers with a reply that carries no version token.
func garbled(line string) (string, bool) {
	return "hello", true
}

func TestDevice_DiscoverPicksAnsweringPort(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	bus := simport.NewBus()
	bus.Attach("COM1", simport.NewDevice(simport.WithResponder(garbled)))
	bus.Attach("COM2", simport.NewDevice(simport.WithSilent()))
	bus.Attach("COM3", simport.NewDevice())
	bus.Attach("COM4", simport.NewDevice(simport.WithSilent()))

	d := newTestDevice(t, bus)

	name, err := d.Discover(context.Background(), 115200)
	require.NoError(err)
	assert.Equal("COM3", name)

	assert.Equal("COM3", d.PortName())
	assert.True(d.IsOpen())
	assert.Equal(OpenedState, d.State())
	assert.Equal(115200, d.BaudRate())
	assert.Equal("Lab", d.FirmwareVersion())
	assert.Equal(simport.DefaultVersion, d.VersionLine())

	for _, other := range []string{"COM1", "COM2", "COM4"} {
		assert.False(board(t, bus, other).IsOpen(), other)
	}
	assert.Equal(1, board(t, bus, "COM1").OpenCount())
	assert.Equal(1, board(t, bus, "COM2").OpenCount())
	assert.Equal(0, board(t, bus, "COM4").OpenCount())
	assert.Equal("ver\r\n", board(t, bus, "COM2").Received())

	assert.Equal(uint64(3), d.GetMetrics().ProbeCount.Load())
	assert.Zero(d.PendingMessages(), "probe replies are not queued")
}

func TestDevice_DiscoverSkipsUnavailablePorts(t *testing.T) {
	bus := simport.NewBus()
	bus.Attach("COM1", simport.NewDevice(simport.WithOpenError(errors.New("access denied"))))
	bus.Attach("COM2", simport.NewDevice())

	d := newTestDevice(t, bus)

	name, err := d.Discover(context.Background(), 9600)
	require.NoError(t, err)
	assert.Equal(t, "COM2", name)
}

func TestDevice_DiscoverNoDevice(t *testing.T) {
	t.Run("no answer", func(t *testing.T) {
		bus := simport.NewBus()
		bus.Attach("COM1", simport.NewDevice(simport.WithSilent()))
		bus.Attach("COM2", simport.NewDevice(simport.WithResponder(garbled)))

		d := newTestDevice(t, bus)

		name, err := d.Discover(context.Background(), 9600)
		require.ErrorIs(t, err, protocol.ErrProtocolMismatch)
		require.ErrorIs(t, err, protocol.ErrNoDevice)
		assert.Empty(t, name)
		assert.False(t, d.IsOpen())
		assert.Equal(t, ClosedState, d.State())
		assert.Empty(t, d.FirmwareVersion())
	})

	t.Run("nothing opens", func(t *testing.T) {
		bus := simport.NewBus()
		bus.Attach("COM1", simport.NewDevice(simport.WithOpenError(errors.New("busy"))))

		d := newTestDevice(t, bus)

		_, err := d.Discover(context.Background(), 9600)
		require.ErrorIs(t, err, protocol.ErrPortUnavailable)
		require.ErrorIs(t, err, protocol.ErrNoDevice)
	})

	t.Run("no candidates", func(t *testing.T) {
		d := newTestDevice(t, simport.NewBus())

		_, err := d.Discover(context.Background(), 9600)
		require.ErrorIs(t, err, protocol.ErrPortUnavailable)
		assert.Equal(t, protocol.StatusFault, protocol.StatusOf(err))
	})
}

func TestDevice_DiscoverCanceled(t *testing.T) {
	bus := newTestBus("COM1")
	d := newTestDevice(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Discover(ctx, 9600)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
	assert.Equal(t, protocol.KindPortUnavailable, protocol.KindOf(err))
	assert.Equal(t, protocol.StatusFault, protocol.StatusOf(err))
	assert.Equal(t, 0, board(t, bus, "COM1").OpenCount())
}

func TestDevice_RoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []simport.DeviceOption
		want string
	}{
		{"answering board", nil, "Lab"},
		{"silent board", []simport.DeviceOption{simport.WithSilent()}, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			bus := simport.NewBus()
			bus.Attach("COM1", simport.NewDevice(tt.opts...))
			d := newTestDevice(t, bus)

			require.NoError(t, d.Open("COM1", 9600))
			assert.Equal(t, OpenedState, d.State())
			assert.Equal(t, "COM1", d.PortName())

			require.NoError(t, d.RequestVersion())

			frame, _ := d.ReadFrame(100 * time.Millisecond)
			assert.Equal(t, tt.want, d.Parse(frame.Text()))
			frame.Release()

			require.NoError(t, d.Close())
			assert.Equal(t, ClosedState, d.State())
			assert.Empty(t, d.PortName())
			assert.Zero(t, d.BaudRate())
			assert.False(t, d.IsOpen())
			assert.False(t, board(t, bus, "COM1").IsOpen())
		})
	}
}

func TestDevice_OpenFailure(t *testing.T) {
	bus := simport.NewBus()
	bus.Attach("COM1", simport.NewDevice(simport.WithOpenError(errors.New("access denied"))))
	d := newTestDevice(t, bus)

	err := d.Open("COM1", 9600)
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
	assert.Contains(t, err.Error(), "COM1")
	assert.Empty(t, d.PortName())
	assert.Equal(t, ClosedState, d.State())

	err = d.Open("COM9", 9600)
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
	require.ErrorIs(t, err, simport.ErrNoSuchPort)
	assert.Empty(t, d.PortName())
}

func TestDevice_OpenClosesPrevious(t *testing.T) {
	bus := newTestBus("COM1", "COM2")
	d := newTestDevice(t, bus)

	require.NoError(t, d.Open("COM1", 0))
	assert.Equal(t, DefaultBaudRate, d.BaudRate())

	require.NoError(t, d.Open("COM2", 19200))
	assert.False(t, board(t, bus, "COM1").IsOpen())
	assert.True(t, board(t, bus, "COM2").IsOpen())
	assert.Equal(t, "COM2", d.PortName())
	assert.Equal(t, 19200, d.BaudRate())

	// reopening the same port works because the old handle is released first
	require.NoError(t, d.Open("COM2", 9600))
	assert.Equal(t, 2, board(t, bus, "COM2").OpenCount())
}

func TestDevice_ClosedOperations(t *testing.T) {
	d := newTestDevice(t, newTestBus("COM1"))

	ops := map[string]func() error{
		"RequestVersion": d.RequestVersion,
		"SetID":          func() error { return d.SetID("12345678") },
		"GetID":          d.GetID,
		"GPIOIOMask":     func() error { return d.GPIOIOMask(0xFF) },
		"GPIOIODir":      func() error { return d.GPIOIODir(0x00) },
		"GPIOSet":        func() error { return d.GPIOSet(1) },
		"GPIOClear":      func() error { return d.GPIOClear(1) },
		"GPIOWriteAll":   func() error { return d.GPIOWriteAll(0x0F) },
		"GPIORead":       func() error { return d.GPIORead(1) },
		"GPIOReadAll":    d.GPIOReadAll,
		"ADCRead":        func() error { return d.ADCRead(0) },
		"Close":          d.Close,
	}
	for name, op := range ops {
		assert.NoError(t, op(), name)
	}
	assert.Zero(t, d.GetMetrics().CommandSendCount.Load())

	frame, err := d.ReadFrame(10 * time.Millisecond)
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
	require.ErrorIs(t, err, protocol.ErrPortClosed)
	assert.True(t, frame.IsEmpty())
	frame.Release()

	frame, n, err := d.ReadAvailable()
	require.ErrorIs(t, err, protocol.ErrPortClosed)
	assert.Zero(t, n)
	frame.Release()

	_, err = d.Version()
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
}

func TestDevice_CommandEncoding(t *testing.T) {
	tests := []struct {
		name string
		opts []DeviceOption
		want string
	}{
		{
			name: "legacy masks",
			want: "ver\r\nid set CAFE\r\nid get\r\ngpio iomask 21\r\ngpio iodir 2\r\n" +
				"gpio set 3\r\ngpio clear 3\r\ngpio read 7\r\ngpio writeall 597\r\ngpio readall\r\nadc read 4\r\n",
		},
		{
			name: "hex masks",
			opts: []DeviceOption{WithMaskEncoding(protocol.HexMask)},
			want: "ver\r\nid set CAFE\r\nid get\r\ngpio iomask 0f\r\ngpio iodir 02\r\n" +
				"gpio set 3\r\ngpio clear 3\r\ngpio read 7\r\ngpio writeall ff\r\ngpio readall\r\nadc read 4\r\n",
		},
		{
			name: "lf line ending",
			opts: []DeviceOption{WithLineEnding("\n"), WithMaskEncoding(protocol.HexMask)},
			want: "ver\nid set CAFE\nid get\ngpio iomask 0f\ngpio iodir 02\n" +
				"gpio set 3\ngpio clear 3\ngpio read 7\ngpio writeall ff\ngpio readall\nadc read 4\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newTestBus("COM1")
			d := newTestDevice(t, bus, tt.opts...)
			require.NoError(t, d.Open("COM1", 9600))

			require.NoError(t, d.RequestVersion())
			require.NoError(t, d.SetID("CAFE"))
			require.NoError(t, d.GetID())
			require.NoError(t, d.GPIOIOMask(0x0F))
			require.NoError(t, d.GPIOIODir(0x02))
			require.NoError(t, d.GPIOSet(3))
			require.NoError(t, d.GPIOClear(3))
			require.NoError(t, d.GPIORead(7))
			require.NoError(t, d.GPIOWriteAll(0xFF))
			require.NoError(t, d.GPIOReadAll())
			require.NoError(t, d.ADCRead(4))

			assert.Equal(t, tt.want, board(t, bus, "COM1").Received())
			assert.Equal(t, uint64(11), d.GetMetrics().CommandSendCount.Load())
		})
	}
}

func TestDevice_HexMaskDrivesBoard(t *testing.T) {
	bus := newTestBus("COM1")
	d := newTestDevice(t, bus, WithMaskEncoding(protocol.HexMask))
	require.NoError(t, d.Open("COM1", 9600))

	require.NoError(t, d.GPIOIODir(0x00))
	require.NoError(t, d.GPIOWriteAll(0xA5))

	levels, err := d.ReadAllGPIO()
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), levels)
	assert.Equal(t, byte(0xA5), board(t, bus, "COM1").Outputs())
}

func TestDevice_Queries(t *testing.T) {
	bus := simport.NewBus()
	bus.Attach("COM1", simport.NewDevice(
		simport.WithADC(3, 1023),
		simport.WithInputs(0x81),
	))
	d := newTestDevice(t, bus)
	require.NoError(t, d.Open("COM1", 9600))

	version, err := d.Version()
	require.NoError(t, err)
	assert.Equal(t, "Lab", version)
	assert.Equal(t, "Lab", d.FirmwareVersion())

	reading, err := d.ReadADC(3)
	require.NoError(t, err)
	assert.Equal(t, 1023, reading)

	levels, err := d.ReadAllGPIO()
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), levels)

	on, err := d.ReadGPIO(7)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = d.ReadGPIO(1)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, d.SetID("CAFEBABE"))
	id, err := d.ReadID()
	require.NoError(t, err)
	assert.Equal(t, "CAFEBABE", id)
	assert.Equal(t, "CAFEBABE", d.ID())

	v, err := d.Query(protocol.ADCRead(3))
	require.NoError(t, err)
	assert.Equal(t, "1023", v)

	assert.Zero(t, d.PendingMessages(), "query replies are not queued")
}

func TestDevice_QueryFailures(t *testing.T) {
	t.Run("not recognized", func(t *testing.T) {
		d := newTestDevice(t, newTestBus("COM1"))
		require.NoError(t, d.Open("COM1", 9600))

		_, err := d.Query(protocol.GPIOSet(1))
		require.ErrorIs(t, err, protocol.ErrNotRecognized)
		require.ErrorIs(t, err, protocol.ErrProtocolMismatch)
		assert.Equal(t, protocol.StatusNoData, protocol.StatusOf(err))
		assert.Contains(t, err.Error(), "COM1")
	})

	t.Run("timeout", func(t *testing.T) {
		bus := simport.NewBus()
		bus.Attach("COM1", simport.NewDevice(simport.WithSilent()))
		d := newTestDevice(t, bus, WithResponseTimeout(30*time.Millisecond))
		require.NoError(t, d.Open("COM1", 9600))

		_, err := d.ReadADC(0)
		require.ErrorIs(t, err, protocol.ErrTimeout)
		assert.Equal(t, protocol.StatusNoData, protocol.StatusOf(err))
		assert.Equal(t, uint64(1), d.GetMetrics().FrameEmptyCount.Load())
	})

	t.Run("bad value", func(t *testing.T) {
		bus := simport.NewBus()
		bus.Attach("COM1", simport.NewDevice(simport.WithResponder(func(line string) (string, bool) {
			return "zz", true
		})))
		d := newTestDevice(t, bus)
		require.NoError(t, d.Open("COM1", 9600))

		_, err := d.ReadADC(0)
		require.ErrorIs(t, err, protocol.ErrProtocolMismatch)

		_, err = d.ReadAllGPIO()
		require.ErrorIs(t, err, protocol.ErrProtocolMismatch)

		_, err = d.ReadGPIO(0)
		require.ErrorIs(t, err, protocol.ErrProtocolMismatch)
	})
}

func TestDevice_MessageQueue(t *testing.T) {
	bus := newTestBus("COM1")
	d := newTestDevice(t, bus)
	require.NoError(t, d.Open("COM1", 9600))
	dev := board(t, bus, "COM1")

	for _, msg := range []string{"first", "second"} {
		require.NoError(t, dev.Inject([]byte(msg)))
		frame, n, err := d.ReadAvailable()
		require.NoError(t, err)
		assert.Equal(t, len(msg), n)
		frame.Release()
	}

	// empty reads queue nothing
	frame, n, err := d.ReadAvailable()
	require.NoError(t, err)
	assert.Zero(t, n)
	frame.Release()

	assert.Equal(t, 2, d.PendingMessages())

	msg, ok := d.NextMessage()
	require.True(t, ok)
	assert.Equal(t, "first", msg)

	msg, ok = d.NextMessage()
	require.True(t, ok)
	assert.Equal(t, "second", msg)

	_, ok = d.NextMessage()
	assert.False(t, ok)
	assert.Zero(t, d.PendingMessages())
}

func TestDevice_MessageQueueOverflow(t *testing.T) {
	bus := newTestBus("COM1")
	d := newTestDevice(t, bus, WithMessageQueueSize(2))
	require.NoError(t, d.Open("COM1", 9600))
	dev := board(t, bus, "COM1")

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, dev.Inject([]byte(msg)))
		frame, err := d.ReadFrame(50 * time.Millisecond)
		require.NoError(t, err)
		frame.Release()
	}

	assert.Equal(t, 2, d.PendingMessages())
	assert.Equal(t, uint64(1), d.GetMetrics().MessageDropCount.Load())

	msg, _ := d.NextMessage()
	assert.Equal(t, "b", msg)

	d.ClearMessages()
	assert.Zero(t, d.PendingMessages())
}

func TestDevice_Overrun(t *testing.T) {
	bus := newTestBus("COM1")
	d := newTestDevice(t, bus)
	require.NoError(t, d.Open("COM1", 9600))

	data := bytes.Repeat([]byte{'z'}, 300)
	require.NoError(t, board(t, bus, "COM1").Inject(data))

	frame, err := d.ReadFrame(50 * time.Millisecond)
	defer frame.Release()

	require.ErrorIs(t, err, protocol.ErrBufferOverrun)
	assert.Equal(t, protocol.StatusNoData, protocol.StatusOf(err))
	assert.Contains(t, err.Error(), "COM1")

	assert.Equal(t, DefaultFrameCapacity, frame.Len())
	assert.Equal(t, 300-DefaultFrameCapacity, frame.Dropped())
	assert.Len(t, frame.Text(), DefaultFrameCapacity)

	m := d.GetMetrics()
	assert.Equal(t, uint64(300), m.ByteRecvCount.Load())
	assert.Equal(t, uint64(300-DefaultFrameCapacity), m.ByteDropCount.Load())

	msg, ok := d.NextMessage()
	require.True(t, ok)
	assert.Len(t, msg, DefaultFrameCapacity)
}

func TestDevice_WriteFailure(t *testing.T) {
	bus := newTestBus("COM1")
	d := newTestDevice(t, bus)
	require.NoError(t, d.Open("COM1", 9600))

	// close the simulated port underneath the device
	d.portMu.Lock()
	require.NoError(t, d.port.Close())
	d.portMu.Unlock()

	err := d.GPIOSet(1)
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
	require.ErrorIs(t, err, simport.ErrPortClosed)
	assert.Equal(t, protocol.StatusFault, protocol.StatusOf(err))
	assert.Equal(t, uint64(1), d.GetMetrics().CommandErrCount.Load())

	// Close reports the failed close but still resets the device
	err = d.Close()
	require.ErrorIs(t, err, protocol.ErrPortUnavailable)
	assert.Equal(t, ClosedState, d.State())
	assert.Empty(t, d.PortName())
}

func TestDevice_Logging(t *testing.T) {
	m := logger.NewMockLogger()
	m.On("Debug", mock.Anything, mock.Anything).Return()
	m.On("Info", "numato: device discovered", mock.Anything).Return()

	bus := newTestBus("COM1")
	d := newTestDevice(t, bus, WithLogger(m))
	assert.Same(t, m, d.GetLogger())

	_, err := d.Discover(context.Background(), 9600)
	require.NoError(t, err)

	m.AssertCalled(t, "Info", "numato: device discovered", []any{"port", "COM1", "version", "Lab"})
	m.AssertCalled(t, "Debug", "numato: sending command", []any{"port", "COM1", "cmd", "ver"})
}

func TestDevice_UnexpectedStateIsLogged(t *testing.T) {
	m := logger.NewMockLogger()
	m.On("Debug", mock.Anything, mock.Anything).Return()
	m.On("Warn", mock.Anything, mock.Anything).Return()

	bus := newTestBus("COM1")
	d := newTestDevice(t, bus, WithLogger(m))

	// stale state with no port behind it
	d.opState.Set(OpeningState)

	require.NoError(t, d.Open("COM1", 9600))
	assert.Equal(t, OpenedState, d.State())
	assert.True(t, d.IsOpen())

	m.AssertCalled(t, "Warn", "numato: failed to set device to opening state",
		[]any{"port", "COM1", "opState", "Opening"})
	m.AssertNotCalled(t, "Warn", "numato: failed to set device to opened state", mock.Anything)
}
