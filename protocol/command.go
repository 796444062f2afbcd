package protocol

import (
	"fmt"
	"strconv"
)

// Line endings accepted by the board's command interpreter.
const (
	LineEndingCRLF = "\r\n"
	LineEndingLF   = "\n"
	LineEndingCR   = "\r"

	DefaultLineEnding = LineEndingCRLF
)

// Command keywords.
const (
	KeywordVersion      = "ver"
	KeywordIDSet        = "id set"
	KeywordIDGet        = "id get"
	KeywordGPIOIOMask   = "gpio iomask"
	KeywordGPIOIODir    = "gpio iodir"
	KeywordGPIOSet      = "gpio set"
	KeywordGPIOClear    = "gpio clear"
	KeywordGPIORead     = "gpio read"
	KeywordGPIOWriteAll = "gpio writeall"
	KeywordGPIOReadAll  = "gpio readall"
	KeywordADCRead      = "adc read"
)

// MaskEncoding selects how a byte mask argument is written on the wire.
type MaskEncoding uint8

const (
	// LegacyMask writes the byte's decimal digits reinterpreted as a hexadecimal
	// literal, formatted back in decimal: 0x02 -> "2", 0x0F -> "21", 0xFF -> "597".
	//
	// This is the output of the original driver and is kept as the default for
	// compatibility with boards and scripts tuned against it. Callers are
	// expected to pass values whose decimal form reads as the intended hex mask
	// (e.g. 10 for mask 0x10).
	LegacyMask MaskEncoding = iota
	// HexMask writes the byte as two lowercase hexadecimal digits ("0f", "ff"),
	// which is what the board documentation describes.
	HexMask
)

// String returns the encoding name.
func (e MaskEncoding) String() string {
	switch e {
	case LegacyMask:
		return "legacy"
	case HexMask:
		return "hex"
	default:
		return "unknown"
	}
}

// Format returns the wire form of mask b.
func (e MaskEncoding) Format(b byte) string {
	if e == HexMask {
		return fmt.Sprintf("%02x", b)
	}

	// decimal digits are always valid hex digits, so this cannot fail
	v, _ := strconv.ParseUint(strconv.FormatUint(uint64(b), 10), 16, 32)

	return strconv.FormatUint(v, 10)
}

// ParseMaskEncoding parses the name returned by MaskEncoding.String.
func ParseMaskEncoding(s string) (MaskEncoding, error) {
	switch s {
	case "legacy", "":
		return LegacyMask, nil
	case "hex":
		return HexMask, nil
	default:
		return LegacyMask, fmt.Errorf("numato: unknown mask encoding %q", s)
	}
}

// Command is a single outbound instruction.
type Command struct {
	Keyword string
	Arg     string
}

// String returns the command text without line ending.
func (c Command) String() string {
	if c.Arg == "" {
		return c.Keyword
	}

	return c.Keyword + " " + c.Arg
}

// Encode returns the wire bytes of the command terminated by lineEnding.
// An empty lineEnding selects DefaultLineEnding.
func (c Command) Encode(lineEnding string) []byte {
	if lineEnding == "" {
		lineEnding = DefaultLineEnding
	}

	s := c.String()
	buf := make([]byte, 0, len(s)+len(lineEnding))
	buf = append(buf, s...)

	return append(buf, lineEnding...)
}

// Version builds the firmware version query.
func Version() Command {
	return Command{Keyword: KeywordVersion}
}

// SetID builds the command assigning id to the board.
func SetID(id string) Command {
	return Command{Keyword: KeywordIDSet, Arg: id}
}

// GetID builds the board identifier query.
func GetID() Command {
	return Command{Keyword: KeywordIDGet}
}

// IOMask builds "gpio iomask".
func IOMask(mask byte, enc MaskEncoding) Command {
	return Command{Keyword: KeywordGPIOIOMask, Arg: enc.Format(mask)}
}

// IODir builds "gpio iodir".
func IODir(dir byte, enc MaskEncoding) Command {
	return Command{Keyword: KeywordGPIOIODir, Arg: enc.Format(dir)}
}

// GPIOSet builds "gpio set".
func GPIOSet(n byte) Command {
	return Command{Keyword: KeywordGPIOSet, Arg: strconv.Itoa(int(n))}
}

// GPIOClear builds "gpio clear".
func GPIOClear(n byte) Command {
	return Command{Keyword: KeywordGPIOClear, Arg: strconv.Itoa(int(n))}
}

// GPIORead builds "gpio read".
func GPIORead(n byte) Command {
	return Command{Keyword: KeywordGPIORead, Arg: strconv.Itoa(int(n))}
}

// GPIOWriteAll builds "gpio writeall".
func GPIOWriteAll(value byte, enc MaskEncoding) Command {
	return Command{Keyword: KeywordGPIOWriteAll, Arg: enc.Format(value)}
}

// GPIOReadAll builds "gpio readall".
func GPIOReadAll() Command {
	return Command{Keyword: KeywordGPIOReadAll}
}

// ADCRead builds "adc read".
func ADCRead(n byte) Command {
	return Command{Keyword: KeywordADCRead, Arg: strconv.Itoa(int(n))}
}
