// Package batch applies recovered keys to a frame list and produces
// searchable plaintext records.
package batch

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
	"github.com/tonylturner/teachcap/internal/logging"
	"github.com/tonylturner/teachcap/internal/payload"
)

// Record is the plaintext view of one frame.
type Record struct {
	FrameIndex        int               `json:"frame_index"`
	Sequence          uint16            `json:"sequence"`
	CommandID         uint8             `json:"command_id"`
	CommandName       string            `json:"command_name"`
	Fields            map[string]string `json:"fields"`
	Decrypted         bool              `json:"decrypted"`
	MatchedSearchTerm bool              `json:"matched_search_term"`
	Error             string            `json:"error,omitempty"`
}

// KeyFunc returns the key for one frame, or false to leave it encrypted.
type KeyFunc func(index int, f frame.Frame) ([]byte, bool)

// Options selects frames and keys for a run.
type Options struct {
	Key         []byte
	KeyFunc     KeyFunc // takes precedence over Key
	Commands    []uint8 // empty means every command
	Search      string  // case-insensitive substring over field values
	OnlyMatches bool
}

// Decryptor turns frames into records.
type Decryptor struct {
	decoder *payload.Decoder
	logger  *logging.Logger
}

// NewDecryptor creates a decryptor. A nil catalog uses catalog.Default().
func NewDecryptor(c *catalog.Catalog, logger *logging.Logger) *Decryptor {
	return &Decryptor{decoder: payload.NewDecoder(c), logger: logger}
}

// Run decrypts every selected frame. Frames are never modified.
func (d *Decryptor) Run(frames []frame.Frame, opts Options) []Record {
	term := strings.ToLower(opts.Search)
	records := make([]Record, 0, len(frames))
	for i, f := range frames {
		if !selected(opts.Commands, f.CommandID) {
			continue
		}
		rec := d.record(i, f, keyFor(opts, i, f))
		if term != "" {
			rec.MatchedSearchTerm = matches(rec.Fields, term)
		}
		if opts.OnlyMatches && !rec.MatchedSearchTerm {
			continue
		}
		records = append(records, rec)
	}
	d.logger.Verbose("batch: %d of %d frames reported", len(records), len(frames))
	return records
}

func (d *Decryptor) record(i int, f frame.Frame, key []byte) Record {
	dec, err := d.decoder.Decode(f, key)
	rec := Record{
		FrameIndex:  i,
		Sequence:    f.Sequence,
		CommandID:   f.CommandID,
		CommandName: dec.Schema.Name,
		Fields:      map[string]string{},
	}
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	switch dec.Schema.Shape {
	case catalog.ShapeActionList:
		for n, a := range dec.Actions {
			rec.Fields[fmt.Sprintf("action_%02d", n)] = a.Name
		}
	case catalog.ShapeFixedField, catalog.ShapeRenamePair:
		for _, fld := range dec.Fields {
			rec.Fields[fld.Name] = fld.Text()
		}
		rec.Decrypted = key != nil
	case catalog.ShapeRaw:
		if len(dec.Raw) > 0 {
			rec.Fields["payload"] = hex.EncodeToString(dec.Raw)
		}
	}
	return rec
}

func keyFor(opts Options, i int, f frame.Frame) []byte {
	if opts.KeyFunc != nil {
		if k, ok := opts.KeyFunc(i, f); ok {
			return k
		}
		return nil
	}
	return opts.Key
}

func selected(cmds []uint8, id uint8) bool {
	if len(cmds) == 0 {
		return true
	}
	for _, c := range cmds {
		if c == id {
			return true
		}
	}
	return false
}

func matches(fields map[string]string, term string) bool {
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// PrefixKeyFunc returns per-frame keys from prefix search reports. Frames
// with no unambiguous match fall back to fallback, which may be nil.
func PrefixKeyFunc(reports []keystream.PrefixReport, fallback []byte) KeyFunc {
	keys := make(map[int][]byte)
	for _, r := range reports {
		if _, seen := keys[r.FrameIndex]; seen {
			continue
		}
		if k, ok := r.Key(); ok {
			keys[r.FrameIndex] = k
		}
	}
	return func(i int, _ frame.Frame) ([]byte, bool) {
		if k, ok := keys[i]; ok {
			return k, true
		}
		return fallback, fallback != nil
	}
}

// StaticKeyFunc uses key for frames of the listed commands only.
func StaticKeyFunc(key []byte, cmds ...uint8) KeyFunc {
	return func(_ int, f frame.Frame) ([]byte, bool) {
		return key, selected(cmds, f.CommandID)
	}
}
