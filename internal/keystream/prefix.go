package keystream

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/codec"
	"github.com/tonylturner/teachcap/internal/frame"
)

// MaxPrefixMatches caps the matches kept per field in brute-force mode.
const MaxPrefixMatches = 64

var (
	ErrNoSharedSuffix = errors.New("keys share no common suffix")
	ErrPrefixTooLong  = errors.New("prefix too long to brute force")
	ErrKeyWidth       = errors.New("partial key width does not match field")
)

// PartialKey is a keystream whose trailing bytes are known and whose first
// PrefixLen bytes vary per frame.
type PartialKey struct {
	PrefixLen int
	Suffix    []byte
}

// Width is the full key length.
func (pk PartialKey) Width() int {
	return pk.PrefixLen + len(pk.Suffix)
}

// Complete joins prefix and the known suffix into a full key.
func (pk PartialKey) Complete(prefix []byte) []byte {
	key := make([]byte, 0, pk.Width())
	key = append(key, codec.PadBytes(prefix, pk.PrefixLen)...)
	return append(key, pk.Suffix...)
}

func (pk PartialKey) String() string {
	return fmt.Sprintf("%s%x", bytes.Repeat([]byte("??"), pk.PrefixLen), pk.Suffix)
}

// PartialKeyFromKey treats the first p bytes of key as unknown.
func PartialKeyFromKey(key []byte, p int) (PartialKey, error) {
	if p < 0 || p >= len(key) {
		return PartialKey{}, fmt.Errorf("prefix length %d out of range for %d-byte key", p, len(key))
	}
	return PartialKey{PrefixLen: p, Suffix: bytes.Clone(key[p:])}, nil
}

// PartialKeyFrom finds the longest suffix shared by all keys. The keys must
// have equal length; at least two are needed.
func PartialKeyFrom(keys ...[]byte) (PartialKey, error) {
	if len(keys) < 2 {
		return PartialKey{}, fmt.Errorf("%w: need at least two keys, got %d", ErrNoSharedSuffix, len(keys))
	}
	width := len(keys[0])
	p := 0
	for _, k := range keys[1:] {
		if len(k) != width {
			return PartialKey{}, fmt.Errorf("key lengths differ: %d and %d", width, len(k))
		}
		for i := width - 1; i >= p; i-- {
			if k[i] != keys[0][i] {
				p = i + 1
				break
			}
		}
	}
	if p >= width {
		return PartialKey{}, ErrNoSharedSuffix
	}
	return PartialKey{PrefixLen: p, Suffix: bytes.Clone(keys[0][p:])}, nil
}

// PrefixStatus summarizes a prefix search on one field.
type PrefixStatus int

const (
	PrefixNone PrefixStatus = iota
	PrefixMatched
	PrefixAmbiguous
	PrefixSkipped
)

func (s PrefixStatus) String() string {
	switch s {
	case PrefixNone:
		return "none"
	case PrefixMatched:
		return "matched"
	case PrefixAmbiguous:
		return "ambiguous"
	case PrefixSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("prefix_status(%d)", int(s))
	}
}

// PrefixMatch is one completed key for a frame.
type PrefixMatch struct {
	Prefix    []byte
	Key       []byte
	Plaintext string // the dictionary entry, or the decrypted field in brute-force mode
}

// PrefixReport is the outcome for one encrypted field of one frame.
type PrefixReport struct {
	FrameIndex int
	Sequence   uint16
	Field      string
	Status     PrefixStatus
	Matches    []PrefixMatch
	Truncated  bool // brute force hit MaxPrefixMatches
}

// Key returns the completed key when exactly one prefix matched.
func (r PrefixReport) Key() ([]byte, bool) {
	if r.Status != PrefixMatched {
		return nil, false
	}
	return r.Matches[0].Key, true
}

// SearchPrefix completes partial for every frame of cmd in corpus. With a
// dictionary, a plaintext matches when the key it implies ends in the known
// suffix. Without one, every prefix up to MaxPrefixLen bytes is tried and
// kept when the decrypted prefix bytes are printable. field may be empty to
// search every encrypted field of the key width.
func (e *Engine) SearchPrefix(corpus []frame.Frame, cmd uint8, field string, partial PartialKey, dictionary []string) ([]PrefixReport, error) {
	schema := e.catalog.Lookup(cmd)
	layout := schema.EncryptedFields()
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEncryptedFields, schema.Name)
	}

	var fields []catalog.Field
	for _, f := range layout {
		if field != "" && f.Name != field {
			continue
		}
		if f.Width != partial.Width() {
			return nil, fmt.Errorf("%w: %s is %d bytes, key is %d", ErrKeyWidth, f.Name, f.Width, partial.Width())
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownField, field, schema.Name)
	}
	if len(dictionary) == 0 && partial.PrefixLen > e.opts.MaxPrefixLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrPrefixTooLong, partial.PrefixLen, e.opts.MaxPrefixLen)
	}
	dictionary = dedupe(dictionary)
	if len(dictionary) == 0 && partial.PrefixLen > 0 {
		e.logger.Verbose("prefix brute force for %s: %d prefixes per field, %d field(s) per frame",
			schema.Name, 1<<(8*partial.PrefixLen), len(fields))
	}

	var reports []PrefixReport
	for i, fr := range corpus {
		if fr.CommandID != cmd {
			continue
		}
		for _, f := range fields {
			r := PrefixReport{FrameIndex: i, Sequence: fr.Sequence, Field: f.Name}
			if f.End() > len(fr.Payload) || codec.AllZero(fr.Payload[f.Offset:f.End()]) {
				r.Status = PrefixSkipped
				reports = append(reports, r)
				continue
			}
			cipher := fr.Payload[f.Offset:f.End()]
			if len(dictionary) > 0 {
				r.Matches = matchDictionary(cipher, partial, dictionary)
			} else {
				r.Matches, r.Truncated = e.bruteForce(cipher, partial)
			}
			switch len(r.Matches) {
			case 0:
				r.Status = PrefixNone
			case 1:
				r.Status = PrefixMatched
			default:
				r.Status = PrefixAmbiguous
			}
			e.logger.Debug("prefix search frame=%d field=%s status=%s matches=%d", i, f.Name, r.Status, len(r.Matches))
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func matchDictionary(cipher []byte, partial PartialKey, dictionary []string) []PrefixMatch {
	var out []PrefixMatch
	p := partial.PrefixLen
	for _, word := range dictionary {
		k := Derive(cipher, word)
		if !bytes.Equal(k[p:], partial.Suffix) {
			continue
		}
		out = append(out, PrefixMatch{Prefix: bytes.Clone(k[:p]), Key: k, Plaintext: word})
	}
	return out
}

func (e *Engine) bruteForce(cipher []byte, partial PartialKey) ([]PrefixMatch, bool) {
	p := partial.PrefixLen
	tail := Decrypt(cipher[p:], partial.Suffix)
	if p > 0 && !e.Plausible(tail) {
		return nil, false
	}
	if p == 0 {
		key := partial.Complete(nil)
		if !e.Plausible(Decrypt(cipher, key)) {
			return nil, false
		}
		return []PrefixMatch{{Key: key, Plaintext: text(Decrypt(cipher, key))}}, false
	}

	var out []PrefixMatch
	prefix := make([]byte, p)
	for n := 0; n < 1<<(8*p); n++ {
		for j := range prefix {
			prefix[j] = byte(n >> (8 * (p - 1 - j)))
		}
		if !printablePrefix(cipher[:p], prefix) {
			continue
		}
		key := partial.Complete(prefix)
		plain := Decrypt(cipher, key)
		if !e.Plausible(plain) {
			continue
		}
		if len(out) == MaxPrefixMatches {
			return out, true
		}
		out = append(out, PrefixMatch{Prefix: bytes.Clone(prefix), Key: key, Plaintext: text(plain)})
	}
	return out, false
}

// printablePrefix reports whether every byte of cipher XOR prefix is
// printable ASCII. NUL is rejected since names never start with padding.
func printablePrefix(cipher, prefix []byte) bool {
	for j := range prefix {
		b := cipher[j] ^ prefix[j]
		if b < 32 || b > 126 {
			return false
		}
	}
	return true
}

func text(plain []byte) string {
	return string(codec.CutNul(plain))
}

func dedupe(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0:0]
	for _, w := range words {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
