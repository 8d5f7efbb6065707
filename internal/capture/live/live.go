// Package live feeds frames from a network interface to a handler.
package live

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/tonylturner/teachcap/internal/capture"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/logging"
)

// DefaultFilter is the BPF filter used when none is given.
const DefaultFilter = "udp"

const snapLen = 65535

// Handler receives each datagram that carried at least one frame.
type Handler func(dg capture.Datagram, frames []frame.Frame)

// Options configures a sniffing session.
type Options struct {
	Iface      string
	Filter     string
	Ports      []uint16
	MaxPayload int
	Logger     *logging.Logger
}

// Sniff captures on opts.Iface until ctx is cancelled or the handle closes.
// Datagrams are scanned independently; frames split across datagrams are lost.
func Sniff(ctx context.Context, opts Options, handler Handler) error {
	if opts.Filter == "" {
		opts.Filter = DefaultFilter
	}
	handle, err := pcap.OpenLive(opts.Iface, snapLen, true, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("open live capture: %w", err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(opts.Filter); err != nil {
		return fmt.Errorf("set BPF filter: %w", err)
	}
	opts.Logger.Info("sniffing on %s (filter %q)", opts.Iface, opts.Filter)

	// Closing the handle unblocks the packet source.
	stop := context.AfterFunc(ctx, handle.Close)
	defer stop()

	s := newSession(opts, handler)
	packets := gopacket.NewPacketSource(handle, handle.LinkType()).Packets()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-packets:
			if !ok {
				return ctx.Err()
			}
			s.handle(packet)
		}
	}
}

type session struct {
	filter  capture.Filter
	scan    []frame.Option
	handler Handler
	logger  *logging.Logger
	seen    int
}

func newSession(opts Options, handler Handler) *session {
	s := &session{
		filter:  capture.Filter{Ports: opts.Ports},
		handler: handler,
		logger:  opts.Logger,
	}
	if opts.MaxPayload > 0 {
		s.scan = append(s.scan, frame.WithMaxPayload(opts.MaxPayload))
	}
	return s
}

func (s *session) handle(packet gopacket.Packet) {
	dg, ok := capture.FromPacket(packet)
	if !ok || !s.filter.Keep(dg.SrcPort, dg.DstPort) {
		return
	}
	dg.Index = s.seen
	s.seen++

	frames := frame.ScanDatagram(dg.Payload, s.scan...)
	if len(frames) == 0 {
		return
	}
	for _, f := range frames {
		s.logger.Debug("%s %s", dg, f)
	}
	s.handler(dg, frames)
}
