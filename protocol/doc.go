// Package protocol implements the text command protocol spoken by Numato-style
// USB GPIO/ADC expansion boards.
//
// The protocol is line oriented ASCII. The host writes a command terminated by
// a line ending, and the board echoes the command back followed by an optional
// reply and a ">" prompt:
//
//	<echoed command>\r\n<reply>\r\n>
//
// There is no length prefix, checksum or formal grammar. Replies are located
// by searching the received text for a command marker and taking the token at
// a fixed position of a whitespace split, see [Parse].
//
// # Commands
//
//   - ver                     firmware version
//   - id get / id set <id>    board identifier
//   - gpio iomask <mask>      write mask for iodir/writeall
//   - gpio iodir <mask>       direction of all GPIOs (1 = input)
//   - gpio set|clear|read <n> single GPIO, n in [0, 7]
//   - gpio writeall <mask>    all GPIO outputs
//   - gpio readall            all GPIO inputs
//   - adc read <n>            analog input, reply in [0, 1023]
//
// # Results
//
// Operations report one of three outcomes, see [StatusOf]: success, no data
// (the call completed but produced nothing usable) and fault. Faults carry a
// [Kind] through [Error].
//
// This package performs no I/O. The byte stream and frame reader live in the
// transport package; the session handling lives in the numato package.
package protocol
