// Package capture reads UDP datagrams out of pcap and pcapng files and turns
// them into a frame corpus.
package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ErrNotCapture means the file does not start with a pcap or pcapng magic number.
var ErrNotCapture = errors.New("not a pcap or pcapng file")

// Format is the container format of a capture file.
type Format int

const (
	FormatUnknown Format = iota
	FormatPcap
	FormatPcapNG
)

func (f Format) String() string {
	switch f {
	case FormatPcap:
		return "pcap"
	case FormatPcapNG:
		return "pcapng"
	default:
		return "unknown"
	}
}

const pcapngMagic = 0x0A0D0D0A

var pcapMagics = map[uint32]bool{
	0xA1B2C3D4: true, // microsecond
	0xD4C3B2A1: true,
	0xA1B23C4D: true, // nanosecond
	0x4D3CB2A1: true,
}

// DetectFormat classifies the first four bytes of a file.
func DetectFormat(head []byte) Format {
	if len(head) < 4 {
		return FormatUnknown
	}
	magic := binary.BigEndian.Uint32(head)
	switch {
	case magic == pcapngMagic:
		return FormatPcapNG
	case pcapMagics[magic]:
		return FormatPcap
	default:
		return FormatUnknown
	}
}

// Datagram is one UDP payload with its packet metadata.
type Datagram struct {
	Index     int // packet number in the file, from 0
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	SrcPort   uint16
	DstPort   uint16
	Payload   []byte
}

func (d Datagram) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d (%d bytes)", d.SrcIP, d.SrcPort, d.DstIP, d.DstPort, len(d.Payload))
}

// Filter selects datagrams by UDP port. An empty filter keeps everything.
type Filter struct {
	Ports []uint16
}

func (f Filter) Keep(src, dst uint16) bool {
	if len(f.Ports) == 0 {
		return true
	}
	for _, p := range f.Ports {
		if p == src || p == dst {
			return true
		}
	}
	return false
}

// ReadFile returns every UDP datagram in a pcap or pcapng file.
func ReadFile(path string, filter Filter) ([]Datagram, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer file.Close()

	return Read(file, filter)
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Read is ReadFile for an already opened stream.
func Read(r io.Reader, filter Filter) ([]Datagram, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var src packetReader
	switch DetectFormat(head) {
	case FormatPcap:
		src, err = pcapgo.NewReader(br)
	case FormatPcapNG:
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	default:
		return nil, fmt.Errorf("%w (magic %x)", ErrNotCapture, head)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture reader: %w", err)
	}

	var out []Datagram
	packetSource := gopacket.NewPacketSource(src, src.LinkType())
	index := 0
	for packet := range packetSource.Packets() {
		if dg, ok := FromPacket(packet); ok && filter.Keep(dg.SrcPort, dg.DstPort) {
			dg.Index = index
			out = append(out, dg)
		}
		index++
	}
	return out, nil
}

// FromPacket extracts the UDP payload of a decoded packet.
func FromPacket(packet gopacket.Packet) (Datagram, bool) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return Datagram{}, false
	}
	udp, _ := udpLayer.(*layers.UDP)
	if len(udp.Payload) == 0 {
		return Datagram{}, false
	}

	dg := Datagram{
		SrcPort: uint16(udp.SrcPort),
		DstPort: uint16(udp.DstPort),
		Payload: bytes.Clone(udp.Payload),
	}
	if md := packet.Metadata(); md != nil {
		dg.Timestamp = md.Timestamp
	}
	if netLayer := packet.NetworkLayer(); netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		dg.SrcIP = src.String()
		dg.DstIP = dst.String()
	}
	return dg, true
}

// ReadRaw returns the whole file as one buffer, for raw byte dumps.
func ReadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw dump: %w", err)
	}
	return data, nil
}

// SniffFormat reports the container format of the file at path.
func SniffFormat(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("open capture: %w", err)
	}
	defer file.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("read capture header: %w", err)
	}
	return DetectFormat(head[:n]), nil
}
