package codec

// Wire helpers for the Teaching Protocol. Every multi-byte integer on the
// wire is big-endian.

import "encoding/binary"

// AppendUint16 appends a big-endian uint16 to dst.
func AppendUint16(dst []byte, value uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint32 appends a big-endian uint32 to dst.
func AppendUint32(dst []byte, value uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	return append(dst, buf[:]...)
}

// Uint16At reads a big-endian uint16 at off. ok is false when the buffer is too short.
func Uint16At(buf []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint16(buf[off : off+2]), true
}

// Uint32At reads a big-endian uint32 at off. ok is false when the buffer is too short.
func Uint32At(buf []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), true
}

// PadBytes returns a copy of b right-padded with 0x00 to width, or truncated to it.
func PadBytes(b []byte, width int) []byte {
	out := make([]byte, width)
	copy(out, b)
	return out
}

// PadString is PadBytes for a UTF-8 string.
func PadString(s string, width int) []byte {
	return PadBytes([]byte(s), width)
}

// TrimNul strips trailing 0x00 padding.
func TrimNul(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

// CutNul returns the bytes before the first 0x00 (NUL-terminated field).
func CutNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// AllZero reports whether every byte of b is 0x00.
func AllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// XOR returns a XOR b over the shorter of the two lengths.
func XOR(a, b []byte) []byte {
	n := min(len(a), len(b))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// ApplyKey XORs key over the leading bytes of data and returns a copy.
// Bytes beyond the key length are copied unchanged.
func ApplyKey(data, key []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i < len(out) && i < len(key); i++ {
		out[i] ^= key[i]
	}
	return out
}
