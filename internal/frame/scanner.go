package frame

import (
	"bytes"
	"errors"
	"iter"
)

// Stats counts scanner decisions. Rejected candidates are expected: the magic
// bytes also occur by chance inside ciphertext and unrelated traffic.
type Stats struct {
	Candidates       int
	Accepted         int
	Truncated        int
	Oversized        int
	ChecksumMismatch int
}

// Rejected returns the number of candidates that did not validate.
func (s Stats) Rejected() int {
	return s.Truncated + s.Oversized + s.ChecksumMismatch
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Candidates += other.Candidates
	s.Accepted += other.Accepted
	s.Truncated += other.Truncated
	s.Oversized += other.Oversized
	s.ChecksumMismatch += other.ChecksumMismatch
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxPayload overrides the declared-length sanity bound.
func WithMaxPayload(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

// Scanner walks a buffer and yields every validated frame in offset order.
// It never mutates the buffer.
type Scanner struct {
	buf        []byte
	pos        int
	maxPayload int
	stats      Stats
}

// NewScanner creates a scanner positioned at offset 0.
func NewScanner(buf []byte, opts ...Option) *Scanner {
	s := &Scanner{buf: buf, maxPayload: MaxPayloadLen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next validated frame. ok is false once the buffer is exhausted.
func (s *Scanner) Next() (Frame, bool) {
	for s.pos < len(s.buf) {
		idx := bytes.Index(s.buf[s.pos:], Magic)
		if idx < 0 {
			s.pos = len(s.buf)
			return Frame{}, false
		}
		off := s.pos + idx
		s.stats.Candidates++

		f, n, err := Parse(s.buf[off:], s.maxPayload)
		if err != nil {
			s.reject(err)
			// Only step one byte: a false match must not hide a real frame
			// starting inside it.
			s.pos = off + 1
			continue
		}
		f.Offset = off
		s.pos = off + n
		s.stats.Accepted++
		return f, true
	}
	return Frame{}, false
}

func (s *Scanner) reject(err error) {
	switch {
	case errors.Is(err, ErrOversized):
		s.stats.Oversized++
	case errors.Is(err, ErrChecksumMismatch):
		s.stats.ChecksumMismatch++
	default:
		s.stats.Truncated++
	}
}

// Reset rewinds the scanner to offset 0 and clears its stats.
func (s *Scanner) Reset() {
	s.pos = 0
	s.stats = Stats{}
}

// Stats returns the counters accumulated since the last Reset.
func (s *Scanner) Stats() Stats {
	return s.stats
}

// All returns a lazy sequence of the frames in buf. Every range over the
// sequence starts a fresh scan from offset 0.
func All(buf []byte, opts ...Option) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		s := NewScanner(buf, opts...)
		for {
			f, ok := s.Next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// ScanAll collects every frame in buf together with the scan stats.
func ScanAll(buf []byte, opts ...Option) ([]Frame, Stats) {
	s := NewScanner(buf, opts...)
	var frames []Frame
	for {
		f, ok := s.Next()
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	return frames, s.Stats()
}

// ScanDatagram decodes the frames carried by one UDP datagram or data-channel
// message. Datagrams are independent; nothing is carried between calls.
func ScanDatagram(payload []byte, opts ...Option) []Frame {
	frames, _ := ScanAll(payload, opts...)
	return frames
}
