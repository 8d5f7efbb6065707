package frame

// Teaching Protocol frame layout (big-endian):
//
//	0   3  magic 17 FE FD
//	3   2  flags
//	5   2  sequence
//	7   5  reserved
//	12  1  command id
//	13  2  payload length L
//	15  L  payload
//	15+L 4 CRC32 (IEEE) over [0, 15+L)
//
// Some captured frames carry a length field that disagrees with their size.
// In those, bytes 5-6 hold the total frame length T, the payload is
// [15, T-4) and the CRC covers [0, T-4). Parse falls back to that reading
// only when the declared length does not validate.

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/tonylturner/teachcap/internal/codec"
)

const (
	HeaderLen     = 13
	LengthLen     = 2
	PrefixLen     = HeaderLen + LengthLen
	TrailerLen    = 4
	MinFrameLen   = PrefixLen + TrailerLen
	MaxPayloadLen = 0x0200
)

// Magic marks the start of every frame.
var Magic = []byte{0x17, 0xFE, 0xFD}

var (
	ErrBadMagic         = errors.New("magic marker not present")
	ErrTruncated        = errors.New("buffer shorter than declared frame")
	ErrOversized        = errors.New("declared payload length exceeds sanity bound")
	ErrChecksumMismatch = errors.New("crc32 mismatch")
)

// Frame is one structurally validated protocol unit.
type Frame struct {
	Offset    int // byte offset inside the scanned buffer
	Flags     uint16
	Sequence  uint16
	Reserved  [5]byte
	CommandID uint8
	Payload   []byte
	Checksum  uint32
	// DeclaredLen is the captured length field. It differs from
	// len(Payload) when the frame was sized from bytes 5-6.
	DeclaredLen uint16
}

// Len returns the encoded length of the frame.
func (f Frame) Len() int {
	return PrefixLen + len(f.Payload) + TrailerLen
}

// PayloadOffset is the offset of payload byte 0 relative to the start of the frame.
func (f Frame) PayloadOffset() int {
	return PrefixLen
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{seq=%d, cmd=0x%02X, payload=%d, crc=0x%08X}",
		f.Sequence, f.CommandID, len(f.Payload), f.Checksum)
}

// Encode serializes the frame and computes its checksum. The Checksum field
// of f is ignored.
func Encode(f Frame) []byte {
	buf := make([]byte, 0, f.Len())
	buf = append(buf, Magic...)
	buf = codec.AppendUint16(buf, f.Flags)
	buf = codec.AppendUint16(buf, f.Sequence)
	buf = append(buf, f.Reserved[:]...)
	buf = append(buf, f.CommandID)
	buf = codec.AppendUint16(buf, uint16(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return codec.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

// Parse validates a single frame starting at buf[0]. maxPayload <= 0 uses
// MaxPayloadLen. On success it returns the frame and its encoded length.
func Parse(buf []byte, maxPayload int) (Frame, int, error) {
	if maxPayload <= 0 {
		maxPayload = MaxPayloadLen
	}
	if len(buf) < len(Magic) || !bytes.Equal(buf[:len(Magic)], Magic) {
		return Frame{}, 0, ErrBadMagic
	}
	length, ok := codec.Uint16At(buf, HeaderLen)
	if !ok {
		return Frame{}, 0, ErrTruncated
	}
	end, err := checkDeclared(buf, int(length), maxPayload)
	if err != nil {
		total, terr := checkTotal(buf, maxPayload)
		if terr != nil {
			return Frame{}, 0, err
		}
		end = total - TrailerLen
	}

	f := Frame{
		CommandID:   buf[12],
		DeclaredLen: length,
	}
	f.Checksum, _ = codec.Uint32At(buf, end)
	f.Flags, _ = codec.Uint16At(buf, 3)
	f.Sequence, _ = codec.Uint16At(buf, 5)
	copy(f.Reserved[:], buf[7:12])
	f.Payload = make([]byte, end-PrefixLen)
	copy(f.Payload, buf[PrefixLen:end])
	return f, end + TrailerLen, nil
}

// checkDeclared validates the frame sized by its length field and returns
// the offset of the CRC trailer.
func checkDeclared(buf []byte, length, maxPayload int) (int, error) {
	if length > maxPayload {
		return 0, fmt.Errorf("%w: %d > %d", ErrOversized, length, maxPayload)
	}
	end := PrefixLen + length
	if len(buf) < end+TrailerLen {
		return 0, ErrTruncated
	}
	if err := checkCRC(buf, end); err != nil {
		return 0, err
	}
	return end, nil
}

// checkTotal validates the frame sized by bytes 5-6 and returns its total length.
func checkTotal(buf []byte, maxPayload int) (int, error) {
	total, _ := codec.Uint16At(buf, 5)
	n := int(total)
	if n < MinFrameLen || n > PrefixLen+maxPayload+TrailerLen {
		return 0, ErrOversized
	}
	if len(buf) < n {
		return 0, ErrTruncated
	}
	if err := checkCRC(buf, n-TrailerLen); err != nil {
		return 0, err
	}
	return n, nil
}

func checkCRC(buf []byte, end int) error {
	want, _ := codec.Uint32At(buf, end)
	if got := crc32.ChecksumIEEE(buf[:end]); got != want {
		return fmt.Errorf("%w: computed 0x%08X, trailer 0x%08X", ErrChecksumMismatch, got, want)
	}
	return nil
}
