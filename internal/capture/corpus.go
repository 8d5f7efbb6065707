package capture

import (
	"fmt"

	"github.com/tonylturner/teachcap/internal/frame"
)

// Corpus is the frame list of one capture.
type Corpus struct {
	Frames []frame.Frame
	// Datagrams[i] is the index into the source datagram list of Frames[i],
	// or -1 for raw dumps.
	Datagrams []int
	Stats     frame.Stats
	Source    string
}

// NewCorpus scans each datagram on its own; frames never span datagrams.
func NewCorpus(datagrams []Datagram, opts ...frame.Option) Corpus {
	c := Corpus{Source: fmt.Sprintf("%d datagrams", len(datagrams))}
	for i, dg := range datagrams {
		frames, stats := frame.ScanAll(dg.Payload, opts...)
		for _, f := range frames {
			c.Frames = append(c.Frames, f)
			c.Datagrams = append(c.Datagrams, i)
		}
		c.Stats.Add(stats)
	}
	return c
}

// RawCorpus scans buf as one contiguous byte stream.
func RawCorpus(buf []byte, opts ...frame.Option) Corpus {
	frames, stats := frame.ScanAll(buf, opts...)
	c := Corpus{Frames: frames, Stats: stats, Source: fmt.Sprintf("%d raw bytes", len(buf))}
	c.Datagrams = make([]int, len(frames))
	for i := range c.Datagrams {
		c.Datagrams[i] = -1
	}
	return c
}

// Load reads path as a pcap/pcapng capture, or as a raw dump when raw is set
// or the file carries no capture magic.
func Load(path string, raw bool, filter Filter, opts ...frame.Option) (Corpus, error) {
	if !raw {
		format, err := SniffFormat(path)
		if err != nil {
			return Corpus{}, err
		}
		raw = format == FormatUnknown
	}
	if raw {
		buf, err := ReadRaw(path)
		if err != nil {
			return Corpus{}, err
		}
		c := RawCorpus(buf, opts...)
		c.Source = path
		return c, nil
	}

	datagrams, err := ReadFile(path, filter)
	if err != nil {
		return Corpus{}, err
	}
	c := NewCorpus(datagrams, opts...)
	c.Source = path
	return c, nil
}

// CountByCommand returns the number of frames per command ID.
func (c Corpus) CountByCommand() map[uint8]int {
	counts := make(map[uint8]int)
	for _, f := range c.Frames {
		counts[f.CommandID]++
	}
	return counts
}
