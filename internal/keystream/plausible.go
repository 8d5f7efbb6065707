package keystream

import "github.com/tonylturner/teachcap/internal/codec"

// Printable returns the fraction of bytes in d that are printable ASCII
// (32..126) or NUL padding. An empty slice scores 0.
func Printable(d []byte) float64 {
	if len(d) == 0 {
		return 0
	}
	n := 0
	for _, b := range d {
		if b == 0 || (b >= 32 && b <= 126) {
			n++
		}
	}
	return float64(n) / float64(len(d))
}

// nameShaped reports whether d is a run of printable bytes followed only by
// NUL padding. An all-NUL field is an empty name and qualifies.
func nameShaped(d []byte) bool {
	run := codec.CutNul(d)
	for _, b := range run {
		if b < 32 || b > 126 {
			return false
		}
	}
	return codec.AllZero(d[len(run):])
}

// Derive returns the seed keystream K = E XOR pad(P), where pad right-pads the
// plaintext with NULs or truncates it to len(E).
func Derive(cipher []byte, plaintext string) []byte {
	return codec.XOR(cipher, codec.PadString(plaintext, len(cipher)))
}

// Decrypt applies key over the leading bytes of cipher.
func Decrypt(cipher, key []byte) []byte {
	return codec.ApplyKey(cipher, key)
}
