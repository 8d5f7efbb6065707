package report

import (
	"slices"
	"sort"

	"github.com/tonylturner/teachcap/internal/batch"
	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
	"github.com/tonylturner/teachcap/internal/payload"
)

// Analysis is the full report of one capture.
type Analysis struct {
	GeneratedAt string         `json:"generated_at"`
	Version     string         `json:"teachcap_version"`
	Scan        ScanSummary    `json:"scan"`
	ActionLists []ActionList   `json:"action_lists"`
	Recoveries  []Recovery     `json:"recoveries,omitempty"`
	Records     []batch.Record `json:"records,omitempty"`
}

// KeepCommands narrows the per-command counts, action lists and records to
// ids. Scanner counters and recoveries are left alone. No ids keeps everything.
func (a *Analysis) KeepCommands(ids []uint8) {
	if len(ids) == 0 {
		return
	}
	keep := make(map[uint8]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	a.Scan.Commands = slices.DeleteFunc(a.Scan.Commands, func(c CommandCount) bool { return !keep[c.ID] })
	a.ActionLists = slices.DeleteFunc(a.ActionLists, func(l ActionList) bool { return !keep[l.CommandID] })
	a.Records = slices.DeleteFunc(a.Records, func(r batch.Record) bool { return !keep[r.CommandID] })
}

// ScanSummary counts what the scanner found.
type ScanSummary struct {
	Source           string         `json:"source"`
	Candidates       int            `json:"candidates"`
	Accepted         int            `json:"accepted"`
	Truncated        int            `json:"truncated"`
	Oversized        int            `json:"oversized"`
	ChecksumMismatch int            `json:"checksum_mismatch"`
	Commands         []CommandCount `json:"commands"`
}

// CommandCount is the number of frames seen for one command ID.
type CommandCount struct {
	ID     uint8  `json:"id"`
	Name   string `json:"name"`
	Known  bool   `json:"known"`
	Frames int    `json:"frames"`
}

// NewScanSummary tallies frames per command, ordered by ID.
func NewScanSummary(source string, stats frame.Stats, frames []frame.Frame, c *catalog.Catalog) ScanSummary {
	if c == nil {
		c = catalog.Default()
	}
	s := ScanSummary{
		Source:           source,
		Candidates:       stats.Candidates,
		Accepted:         stats.Accepted,
		Truncated:        stats.Truncated,
		Oversized:        stats.Oversized,
		ChecksumMismatch: stats.ChecksumMismatch,
	}
	counts := make(map[uint8]int)
	for _, f := range frames {
		counts[f.CommandID]++
	}
	for id, n := range counts {
		s.Commands = append(s.Commands, CommandCount{ID: id, Name: c.Lookup(id).Name, Known: c.Known(id), Frames: n})
	}
	sort.Slice(s.Commands, func(i, j int) bool { return s.Commands[i].ID < s.Commands[j].ID })
	return s
}

// Action is one decoded action list entry.
type Action struct {
	Name     string `json:"name"`
	Metadata uint32 `json:"metadata"`
}

// ActionList is one decoded action list response.
type ActionList struct {
	FrameIndex   int      `json:"frame_index"`
	Sequence     uint16   `json:"sequence"`
	CommandID    uint8    `json:"command_id"`
	Declared     int      `json:"declared"`
	SizeMismatch bool     `json:"size_mismatch"`
	Actions      []Action `json:"actions"`
}

// ActionLists decodes every action list response in frames.
func ActionLists(frames []frame.Frame, d *payload.Decoder) []ActionList {
	var out []ActionList
	for i, f := range frames {
		if d.Catalog().Lookup(f.CommandID).Shape != catalog.ShapeActionList {
			continue
		}
		dec, err := d.Decode(f, nil)
		if err != nil {
			continue
		}
		list := ActionList{
			FrameIndex:   i,
			Sequence:     f.Sequence,
			CommandID:    f.CommandID,
			Declared:     dec.ActionCount,
			SizeMismatch: dec.SizeMismatch,
			Actions:      make([]Action, 0, len(dec.Actions)),
		}
		for _, a := range dec.Actions {
			list.Actions = append(list.Actions, Action{Name: a.Name, Metadata: a.Metadata})
		}
		out = append(out, list)
	}
	return out
}

// Recovery is the printable outcome of one hypothesis.
type Recovery struct {
	Hypothesis        string  `json:"hypothesis"`
	Command           string  `json:"command"`
	Status            string  `json:"status"`
	KeyHex            string  `json:"key,omitempty"`
	CandidateKeyHex   string  `json:"best_candidate,omitempty"`
	SourceFrame       int     `json:"source_frame"`
	Field             string  `json:"field,omitempty"`
	ValidatedFraction float64 `json:"validated_fraction"`
	Validated         int     `json:"validated"`
	Total             int     `json:"total"`
	Excluded          int     `json:"excluded"`
	CrossCheck        float64 `json:"cross_check"`
	Reason            string  `json:"reason,omitempty"`
}

// NewRecovery flattens an engine result. The key is only reported when it
// was accepted; otherwise the best candidate is shown separately.
func NewRecovery(r keystream.Result, c *catalog.Catalog) Recovery {
	if c == nil {
		c = catalog.Default()
	}
	out := Recovery{
		Hypothesis:  r.Hypothesis.String(),
		Command:     c.Lookup(r.Hypothesis.CommandID).Name,
		Status:      r.Status.String(),
		SourceFrame: r.Hypothesis.FrameIndex,
		Reason:      r.Reason,
	}
	if !r.HasBest {
		return out
	}
	b := r.Best
	out.Field = b.Provenance.FieldName
	out.ValidatedFraction = b.ValidatedFraction
	out.Validated = b.Validated
	out.Total = b.Total
	out.Excluded = b.Excluded
	out.CrossCheck = b.CrossCheck
	if r.Accepted() {
		out.KeyHex = b.KeyHex()
	} else {
		out.CandidateKeyHex = b.KeyHex()
	}
	return out
}
