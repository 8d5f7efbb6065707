package keystream

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/codec"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/logging"
)

const (
	DefaultPrintableThreshold  = 0.6
	DefaultAcceptanceThreshold = 0.5
	DefaultMaxPrefixLen        = 2
	MinCorpusFrames            = 2
)

var (
	ErrFrameIndex          = errors.New("frame index out of range")
	ErrCommandMismatch     = errors.New("frame command does not match hypothesis")
	ErrNoEncryptedFields   = errors.New("command has no encrypted fields")
	ErrUnknownField        = errors.New("unknown field")
	ErrSeedPayloadTooShort = errors.New("seed frame payload too short for its schema")
)

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	PrintableThreshold  float64
	AcceptanceThreshold float64
	Workers             int // <= 1 validates sequentially
	MaxPrefixLen        int
	RatioOnly           bool // judge fields by printable ratio alone, without the name shape
}

func (o Options) withDefaults() Options {
	if o.PrintableThreshold <= 0 {
		o.PrintableThreshold = DefaultPrintableThreshold
	}
	if o.AcceptanceThreshold <= 0 {
		o.AcceptanceThreshold = DefaultAcceptanceThreshold
	}
	if o.MaxPrefixLen <= 0 {
		o.MaxPrefixLen = DefaultMaxPrefixLen
	}
	return o
}

// Engine recovers XOR keystreams from plaintext hypotheses. It holds no
// per-run state and is safe for concurrent use.
type Engine struct {
	opts    Options
	catalog *catalog.Catalog
	logger  *logging.Logger
}

// NewEngine creates an engine. A nil catalog uses catalog.Default().
func NewEngine(c *catalog.Catalog, opts Options) *Engine {
	if c == nil {
		c = catalog.Default()
	}
	return &Engine{opts: opts.withDefaults(), catalog: c}
}

// SetLogger attaches a logger for per-candidate diagnostics.
func (e *Engine) SetLogger(l *logging.Logger) {
	e.logger = l
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Plausible applies the printable-ratio predicate and, unless RatioOnly is
// set, also requires a printable name followed only by NUL padding.
func (e *Engine) Plausible(d []byte) bool {
	if Printable(d) < e.opts.PrintableThreshold {
		return false
	}
	return e.opts.RatioOnly || nameShaped(d)
}

// Try seeds a key from h and validates it against every frame of the same
// command in corpus. A key that does not validate is a normal Result, not
// an error; errors are reserved for malformed requests.
func (e *Engine) Try(corpus []frame.Frame, h Hypothesis) (Result, error) {
	res := Result{Hypothesis: h}

	if h.FrameIndex < 0 || h.FrameIndex >= len(corpus) {
		return res, fmt.Errorf("%w: %d (corpus has %d frames)", ErrFrameIndex, h.FrameIndex, len(corpus))
	}
	seed := corpus[h.FrameIndex]
	if seed.CommandID != h.CommandID {
		return res, fmt.Errorf("%w: frame %d is 0x%02X, hypothesis names 0x%02X",
			ErrCommandMismatch, h.FrameIndex, seed.CommandID, h.CommandID)
	}
	schema := e.catalog.Lookup(h.CommandID)
	layout := schema.EncryptedFields()
	if len(layout) == 0 {
		return res, fmt.Errorf("%w: %s", ErrNoEncryptedFields, schema.Name)
	}
	if len(seed.Payload) < schema.Shape.MinPayloadLen() {
		return res, fmt.Errorf("%w: %d bytes", ErrSeedPayloadTooShort, len(seed.Payload))
	}

	seedFields := layout
	if h.Field != "" {
		f, ok := schema.Field(h.Field)
		if !ok {
			return res, fmt.Errorf("%w %q for %s", ErrUnknownField, h.Field, schema.Name)
		}
		seedFields = []catalog.Field{f}
	}

	peers := sameCommand(corpus, h.CommandID)
	if len(peers) < MinCorpusFrames {
		res.Status = StatusInsufficientCorpus
		res.Reason = fmt.Sprintf("%d frame(s) of %s, need at least %d to cross-validate", len(peers), schema.Name, MinCorpusFrames)
		return res, nil
	}

	for _, sf := range seedFields {
		cand := e.seed(seed, h, sf, layout)
		if !cand.Rejected {
			e.validate(corpus, peers, layout, &cand)
		}
		e.logger.Debug("candidate field=%s cross=%.2f rejected=%v fraction=%.3f",
			sf.Name, cand.CrossCheck, cand.Rejected, cand.ValidatedFraction)
		res.Candidates = append(res.Candidates, cand)
	}

	best := pickBest(res.Candidates)
	res.Best, res.HasBest = res.Candidates[best], true

	switch {
	case !res.Best.Rejected && res.Best.ValidatedFraction > e.opts.AcceptanceThreshold:
		res.Status = StatusAccepted
	case res.Best.Rejected:
		res.Status = StatusRejected
		res.Reason = fmt.Sprintf("intra-frame cross-check failed (printable %.2f < %.2f)",
			res.Best.CrossCheck, e.opts.PrintableThreshold)
	default:
		res.Status = StatusFailed
		res.Reason = fmt.Sprintf("best validated fraction %.3f (%d/%d) does not exceed %.2f",
			res.Best.ValidatedFraction, res.Best.Validated, res.Best.Total, e.opts.AcceptanceThreshold)
	}
	e.logger.LogRecovery(h.String(), res.Status.String(), res.Best.ValidatedFraction, acceptedHex(res), res.Reason)
	return res, nil
}

// TryAll runs each hypothesis independently and returns results in input order.
func (e *Engine) TryAll(corpus []frame.Frame, hs []Hypothesis) ([]Result, error) {
	results := make([]Result, 0, len(hs))
	for _, h := range hs {
		r, err := e.Try(corpus, h)
		if err != nil {
			return results, fmt.Errorf("hypothesis %s: %w", h, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// seed derives the candidate key from one field and cross-checks the other
// same-width fields of the seed frame.
func (e *Engine) seed(f frame.Frame, h Hypothesis, sf catalog.Field, layout []catalog.Field) Candidate {
	cipher := f.Payload[sf.Offset:sf.End()]
	cand := Candidate{
		Key: Derive(cipher, h.Plaintext),
		Provenance: Provenance{
			SourceFrameIndex: h.FrameIndex,
			FieldName:        sf.Name,
			FieldOffset:      f.PayloadOffset() + sf.Offset,
			Hypothesis:       h.Plaintext,
		},
		CrossCheck: 1,
	}

	for _, other := range layout {
		if other.Name == sf.Name || other.Width != sf.Width {
			continue
		}
		oc := f.Payload[other.Offset:other.End()]
		if codec.AllZero(oc) {
			continue
		}
		d := Decrypt(oc, cand.Key)
		if score := Printable(d); score < cand.CrossCheck {
			cand.CrossCheck = score
		}
		if !e.Plausible(d) {
			cand.Rejected = true
		}
	}
	return cand
}

type verdict int

const (
	verdictFail verdict = iota
	verdictPass
	verdictExcluded
)

// validate scores cand against every peer frame. Peers are independent and
// read-only, so they may be checked on a worker pool.
func (e *Engine) validate(corpus []frame.Frame, peers []int, layout []catalog.Field, cand *Candidate) {
	width := len(cand.Key)
	fields := make([]catalog.Field, 0, len(layout))
	for _, f := range layout {
		if f.Width == width {
			fields = append(fields, f)
		}
	}

	verdicts := make([]verdict, len(peers))
	check := func(i int) {
		verdicts[i] = e.judge(corpus[peers[i]].Payload, fields, cand.Key)
	}

	if e.opts.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(e.opts.Workers)
		for i := range peers {
			g.Go(func() error {
				check(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range peers {
			check(i)
		}
	}

	for _, v := range verdicts {
		switch v {
		case verdictPass:
			cand.Validated++
			cand.Total++
		case verdictFail:
			cand.Total++
		case verdictExcluded:
			cand.Excluded++
		}
	}
	if cand.Total > 0 {
		cand.ValidatedFraction = float64(cand.Validated) / float64(cand.Total)
	}
}

func (e *Engine) judge(payload []byte, fields []catalog.Field, key []byte) verdict {
	allZero := true
	for _, f := range fields {
		if f.End() > len(payload) {
			return verdictFail
		}
		if !codec.AllZero(payload[f.Offset:f.End()]) {
			allZero = false
		}
	}
	if allZero {
		return verdictExcluded
	}
	for _, f := range fields {
		if !e.Plausible(Decrypt(payload[f.Offset:f.End()], key)) {
			return verdictFail
		}
	}
	return verdictPass
}

// pickBest prefers non-rejected candidates by validated fraction, then
// rejected ones by cross-check score. Ties keep the earlier field.
func pickBest(cands []Candidate) int {
	best := 0
	for i := 1; i < len(cands); i++ {
		if better(cands[i], cands[best]) {
			best = i
		}
	}
	return best
}

func better(a, b Candidate) bool {
	if a.Rejected != b.Rejected {
		return !a.Rejected
	}
	if a.Rejected {
		return a.CrossCheck > b.CrossCheck
	}
	return a.ValidatedFraction > b.ValidatedFraction
}

func sameCommand(corpus []frame.Frame, cmd uint8) []int {
	var idx []int
	for i, f := range corpus {
		if f.CommandID == cmd {
			idx = append(idx, i)
		}
	}
	return idx
}

func acceptedHex(r Result) string {
	if r.Status != StatusAccepted {
		return ""
	}
	return r.Best.KeyHex()
}
