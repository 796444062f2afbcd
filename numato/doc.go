// Package numato provides a driver for Numato Lab style USB GPIO/ADC boards,
// which expose a line-oriented text command interpreter on a serial port.
//
// # Protocol Overview
//
// Every command is a line of text. The board echoes the line, writes the
// reply (if the command has one) and a ">" prompt:
//
//	ver\r\nNumato Lab 8 Channel USB GPIO v1.0\r\n>
//	adc read 0\r\n512\r\n>
//	gpio set 3\r\n>
//
// There is no length prefix and no checksum. A read cycle collects whatever
// arrived until the line goes quiet (see [transport.FrameReader]), and the
// payload is picked from fixed whitespace token positions by
// [protocol.Parse].
//
// # Usage
//
//	cfg, err := numato.NewDeviceConfig(numato.WithMaskEncoding(protocol.HexMask))
//	...
//	dev, err := numato.NewDevice(cfg)
//	...
//	port, err := dev.Discover(ctx, 9600) // or dev.Open("/dev/ttyACM0", 9600)
//	...
//	defer dev.Close()
//
//	levels, err := dev.ReadAllGPIO()
//	reading, err := dev.ReadADC(0)
//
// Command methods such as [Device.GPIOSet] only write the command and return
// nil when no port is open. [Device.Query] and the Read* helpers write a
// command and wait for its reply; raw replies can also be collected with
// [Device.ReadFrame] and [Device.ReadAvailable], which queue every non-empty
// payload for [Device.NextMessage].
//
// # Results
//
// Errors are [*protocol.Error] values carrying a [protocol.Kind].
// [protocol.StatusOf] maps any result to success, no data (timeouts,
// overruns, unrecognized replies) or fault.
//
// # Mask Encoding
//
// The iomask, iodir and writeall arguments are written with
// [protocol.LegacyMask] by default, which reads the decimal digits of the
// byte as a hexadecimal number (0x0F is sent as "21"). Use
// [protocol.HexMask] to send plain two-digit hex.
package numato
