package keystream

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrKeyRecoveryFailed  = errors.New("key recovery failed")
	ErrInsufficientCorpus = errors.New("insufficient corpus")
)

// Status is the outcome of one hypothesis.
type Status int

const (
	StatusAccepted Status = iota
	StatusRejected
	StatusFailed
	StatusInsufficientCorpus
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	case StatusInsufficientCorpus:
		return "insufficient_corpus"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Hypothesis is an analyst's plaintext guess for one field of one frame.
type Hypothesis struct {
	CommandID  uint8
	FrameIndex int    // index into the corpus slice
	Field      string // empty tries every encrypted field of the frame
	Plaintext  string
}

func (h Hypothesis) String() string {
	field := h.Field
	if field == "" {
		field = "*"
	}
	return fmt.Sprintf("cmd=0x%02X frame=%d field=%s text=%q", h.CommandID, h.FrameIndex, field, h.Plaintext)
}

// Provenance records where a candidate key came from.
type Provenance struct {
	SourceFrameIndex int
	FieldName        string
	FieldOffset      int // relative to the start of the frame
	Hypothesis       string
}

// Candidate is one hypothesized keystream and its corpus score.
type Candidate struct {
	Key        []byte
	Provenance Provenance

	// CrossCheck is the lowest printable ratio among the other same-width
	// fields of the seed frame, 1 when there were none to check.
	CrossCheck float64
	Rejected   bool

	ValidatedFraction float64
	Validated         int
	Total             int // frames counted in the denominator
	Excluded          int // all-zero frames left out of the denominator
}

// KeyHex returns the key as lowercase hex.
func (c Candidate) KeyHex() string {
	return hex.EncodeToString(c.Key)
}

// Result is the value returned for every hypothesis, successful or not.
type Result struct {
	Hypothesis Hypothesis
	Status     Status
	Best       Candidate
	HasBest    bool
	Candidates []Candidate
	Reason     string
}

// Accepted reports whether a key passed corpus validation.
func (r Result) Accepted() bool {
	return r.Status == StatusAccepted
}

// Err maps non-accepted outcomes onto sentinel errors for errors.Is callers.
func (r Result) Err() error {
	switch r.Status {
	case StatusAccepted:
		return nil
	case StatusInsufficientCorpus:
		return fmt.Errorf("%w: %s", ErrInsufficientCorpus, r.Reason)
	default:
		return fmt.Errorf("%w: %s", ErrKeyRecoveryFailed, r.Reason)
	}
}
