package numato

import (
	"sync/atomic"
)

// DeviceMetrics contains atomic metrics for a Device.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type DeviceMetrics struct {
	// CommandSendCount indicates the number of commands written to the port.
	CommandSendCount atomic.Uint64
	// CommandErrCount indicates the number of failed command writes.
	CommandErrCount atomic.Uint64

	// FrameReadCount indicates the number of read cycles that returned data.
	FrameReadCount atomic.Uint64
	// FrameEmptyCount indicates the number of read cycles that returned nothing.
	FrameEmptyCount atomic.Uint64
	// ByteRecvCount indicates the number of bytes received, stored or dropped.
	ByteRecvCount atomic.Uint64
	// ByteDropCount indicates the number of bytes dropped by frame overruns.
	ByteDropCount atomic.Uint64

	// ProbeCount indicates the number of ports probed by discovery.
	ProbeCount atomic.Uint64
	// MessageDropCount indicates the number of queued messages evicted by newer ones.
	MessageDropCount atomic.Uint64
}

func (m *DeviceMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *DeviceMetrics) incCommandErrCount() {
	m.CommandErrCount.Add(1)
}

func (m *DeviceMetrics) incProbeCount() {
	m.ProbeCount.Add(1)
}

func (m *DeviceMetrics) incMessageDropCount() {
	m.MessageDropCount.Add(1)
}

// addFrame records the outcome of one read cycle.
func (m *DeviceMetrics) addFrame(received, dropped int) {
	if received == 0 {
		m.FrameEmptyCount.Add(1)
		return
	}
	m.FrameReadCount.Add(1)
	m.ByteRecvCount.Add(uint64(received))
	m.ByteDropCount.Add(uint64(dropped))
}
