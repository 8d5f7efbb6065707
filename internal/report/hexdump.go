package report

import (
	"fmt"
	"strings"

	"github.com/tonylturner/teachcap/internal/frame"
)

// HexDump renders data as offset, hex and ASCII columns.
func HexDump(data []byte, width int) string {
	if width <= 0 {
		width = 16
	}

	var sb strings.Builder
	for i := 0; i < len(data); i += width {
		fmt.Fprintf(&sb, "%04x: ", i)

		for j := 0; j < width; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&sb, "%02x ", data[i+j])
			} else {
				sb.WriteString("   ")
			}
		}

		sb.WriteString(" |")
		for j := 0; j < width && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}

	return sb.String()
}

// FrameDump splits an encoded frame into header, payload and trailer dumps.
func FrameDump(encoded []byte) string {
	if len(encoded) < frame.MinFrameLen {
		return HexDump(encoded, 16)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Header (%d bytes):\n", frame.PrefixLen)
	sb.WriteString(HexDump(encoded[:frame.PrefixLen], 16))

	body := encoded[frame.PrefixLen : len(encoded)-frame.TrailerLen]
	if len(body) > 0 {
		fmt.Fprintf(&sb, "Payload (%d bytes):\n", len(body))
		sb.WriteString(HexDump(body, 16))
	}

	sb.WriteString("CRC32:\n")
	sb.WriteString(HexDump(encoded[len(encoded)-frame.TrailerLen:], 16))
	return sb.String()
}
