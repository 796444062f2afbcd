package numato

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-numato/logger"
	"github.com/arloliu/go-numato/protocol"
	"github.com/arloliu/go-numato/transport"
)

// Default device settings.
const (
	DefaultReadTimeout      = transport.DefaultReadTimeout      // port read timeout while opened
	DefaultProbeTimeout     = 500 * time.Millisecond            // wait for a version reply during discovery
	DefaultResponseTimeout  = 500 * time.Millisecond            // wait for a reply in Query
	DefaultInterByteTimeout = transport.DefaultInterByteTimeout // gap that ends a frame

	DefaultFrameCapacity    = protocol.DefaultFrameCapacity
	DefaultMessageQueueSize = 128
	DefaultBaudRate         = 9600
)

// Setting range limits.
const (
	MinReadTimeout = 1 * time.Millisecond
	MaxReadTimeout = 10 * time.Second

	MaxWaitTimeout = 30 * time.Second

	MaxInterByteTimeout = 1 * time.Second

	MinFrameCapacity = 16
	MaxFrameCapacity = 4096
)

// DeviceConfig holds the configuration of a Device.
type DeviceConfig struct {
	opener transport.Opener

	readTimeout      time.Duration
	probeTimeout     time.Duration
	responseTimeout  time.Duration
	interByteTimeout time.Duration

	frameCapacity int
	lineEnding    string
	maskEncoding  protocol.MaskEncoding

	messageQueueSize int

	logger logger.Logger
}

// NewDeviceConfig creates a device configuration.
//
// Without WithOpener, ports are opened through the operating system with
// transport.NewSerialOpener. opts are functional options applied in order;
// see With* functions.
func NewDeviceConfig(opts ...DeviceOption) (*DeviceConfig, error) {
	cfg := &DeviceConfig{
		readTimeout:      DefaultReadTimeout,
		probeTimeout:     DefaultProbeTimeout,
		responseTimeout:  DefaultResponseTimeout,
		interByteTimeout: DefaultInterByteTimeout,
		frameCapacity:    DefaultFrameCapacity,
		lineEnding:       protocol.DefaultLineEnding,
		maskEncoding:     protocol.LegacyMask,
		messageQueueSize: DefaultMessageQueueSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.opener == nil {
		cfg.opener = transport.NewSerialOpener()
	}

	return cfg, nil
}

// --- Getters ---

// Opener returns the port opener.
func (cfg *DeviceConfig) Opener() transport.Opener { return cfg.opener }

// ReadTimeout returns the port read timeout applied while a port is open.
func (cfg *DeviceConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// ProbeTimeout returns how long discovery waits for a version reply on each port.
func (cfg *DeviceConfig) ProbeTimeout() time.Duration { return cfg.probeTimeout }

// ResponseTimeout returns how long Query waits for a reply.
func (cfg *DeviceConfig) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// InterByteTimeout returns the silence that ends a frame.
func (cfg *DeviceConfig) InterByteTimeout() time.Duration { return cfg.interByteTimeout }

// FrameCapacity returns the number of bytes one read cycle can hold.
func (cfg *DeviceConfig) FrameCapacity() int { return cfg.frameCapacity }

// LineEnding returns the command terminator.
func (cfg *DeviceConfig) LineEnding() string { return cfg.lineEnding }

// MaskEncoding returns the encoding of 8-bit mask arguments.
func (cfg *DeviceConfig) MaskEncoding() protocol.MaskEncoding { return cfg.maskEncoding }

// MessageQueueSize returns the capacity of the received message queue.
func (cfg *DeviceConfig) MessageQueueSize() int { return cfg.messageQueueSize }

// GetLogger returns the configured logger.
func (cfg *DeviceConfig) GetLogger() logger.Logger { return cfg.logger }

func (cfg *DeviceConfig) readerConfig() transport.ReaderConfig {
	return transport.ReaderConfig{
		Capacity:         cfg.frameCapacity,
		InterByteTimeout: cfg.interByteTimeout,
		ReadTimeout:      cfg.readTimeout,
	}
}

// --- DeviceOption ---

// DeviceOption is a functional option for configuring a DeviceConfig.
type DeviceOption interface {
	apply(*DeviceConfig) error
}

type devOptFunc func(*DeviceConfig) error

func (f devOptFunc) apply(cfg *DeviceConfig) error { return f(cfg) }

// WithOpener sets how ports are enumerated and opened.
func WithOpener(o transport.Opener) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if o == nil {
			return errors.New("numato: opener must not be nil")
		}
		cfg.opener = o

		return nil
	})
}

// WithLogger sets the logger of the device.
func WithLogger(l logger.Logger) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if l == nil {
			return errors.New("numato: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithReadTimeout sets the port read timeout. Range: 1ms–10s.
func WithReadTimeout(d time.Duration) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("numato: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithProbeTimeout sets how long discovery waits for each port to answer.
func WithProbeTimeout(d time.Duration) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if d <= 0 || d > MaxWaitTimeout {
			return fmt.Errorf("numato: probe timeout %v out of range (0, %v]", d, MaxWaitTimeout)
		}
		cfg.probeTimeout = d

		return nil
	})
}

// WithResponseTimeout sets how long Query waits for a reply.
func WithResponseTimeout(d time.Duration) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if d <= 0 || d > MaxWaitTimeout {
			return fmt.Errorf("numato: response timeout %v out of range (0, %v]", d, MaxWaitTimeout)
		}
		cfg.responseTimeout = d

		return nil
	})
}

// WithInterByteTimeout sets the silence that ends a frame. Zero reads only
// the bytes already buffered once the first byte arrived.
func WithInterByteTimeout(d time.Duration) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if d < 0 || d > MaxInterByteTimeout {
			return fmt.Errorf("numato: inter-byte timeout %v out of range [0, %v]", d, MaxInterByteTimeout)
		}
		cfg.interByteTimeout = d

		return nil
	})
}

// WithFrameCapacity sets the number of bytes one read cycle can hold.
// Range: 16–4096.
func WithFrameCapacity(n int) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if n < MinFrameCapacity || n > MaxFrameCapacity {
			return fmt.Errorf("numato: frame capacity %d out of range [%d, %d]", n, MinFrameCapacity, MaxFrameCapacity)
		}
		cfg.frameCapacity = n

		return nil
	})
}

// WithLineEnding sets the command terminator: "\r\n" (default), "\n" or "\r".
func WithLineEnding(eol string) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		switch eol {
		case protocol.LineEndingCRLF, protocol.LineEndingLF, protocol.LineEndingCR:
			cfg.lineEnding = eol
			return nil
		default:
			return fmt.Errorf("numato: unsupported line ending %q", eol)
		}
	})
}

// WithMaskEncoding sets how 8-bit mask arguments are written.
// The default is protocol.LegacyMask.
func WithMaskEncoding(enc protocol.MaskEncoding) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if enc != protocol.LegacyMask && enc != protocol.HexMask {
			return fmt.Errorf("numato: unknown mask encoding %d", enc)
		}
		cfg.maskEncoding = enc

		return nil
	})
}

// WithMessageQueueSize sets the capacity of the received message queue.
func WithMessageQueueSize(size int) DeviceOption {
	return devOptFunc(func(cfg *DeviceConfig) error {
		if size < 1 {
			return errors.New("numato: message queue size must be >= 1")
		}
		cfg.messageQueueSize = size

		return nil
	})
}
