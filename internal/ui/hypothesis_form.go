package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
)

// anyField is the select value for "try every encrypted field".
const anyField = "*"

// HypothesisAnswers holds the raw form values.
type HypothesisAnswers struct {
	Command string
	Frame   string
	Field   string
	Text    string
}

// Hypothesis validates the answers against frames and builds the request.
func (a HypothesisAnswers) Hypothesis(frames []frame.Frame) (keystream.Hypothesis, error) {
	cmd, err := strconv.ParseUint(strings.TrimSpace(a.Command), 0, 8)
	if err != nil {
		return keystream.Hypothesis{}, fmt.Errorf("invalid command %q", a.Command)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(a.Frame))
	if err != nil {
		return keystream.Hypothesis{}, fmt.Errorf("invalid frame index %q", a.Frame)
	}
	if idx < 0 || idx >= len(frames) {
		return keystream.Hypothesis{}, fmt.Errorf("frame index %d out of range (0-%d)", idx, len(frames)-1)
	}
	if frames[idx].CommandID != uint8(cmd) {
		return keystream.Hypothesis{}, fmt.Errorf("frame %d is command 0x%02X, not 0x%02X", idx, frames[idx].CommandID, cmd)
	}
	if a.Text == "" {
		return keystream.Hypothesis{}, fmt.Errorf("plaintext is required")
	}
	field := a.Field
	if field == anyField {
		field = ""
	}
	return keystream.Hypothesis{CommandID: uint8(cmd), FrameIndex: idx, Field: field, Plaintext: a.Text}, nil
}

// commandOptions lists commands present in frames that carry encrypted fields.
func commandOptions(frames []frame.Frame, c *catalog.Catalog) []huh.Option[string] {
	counts := make(map[uint8]int)
	first := make(map[uint8]int)
	for i, f := range frames {
		if _, ok := first[f.CommandID]; !ok {
			first[f.CommandID] = i
		}
		counts[f.CommandID]++
	}
	var opts []huh.Option[string]
	for _, s := range c.Schemas() {
		if counts[s.ID] == 0 || len(s.EncryptedFields()) == 0 {
			continue
		}
		label := fmt.Sprintf("0x%02X %s (%d frames, first #%d)", s.ID, s.Name, counts[s.ID], first[s.ID])
		opts = append(opts, huh.NewOption(label, fmt.Sprintf("0x%02X", s.ID)))
	}
	return opts
}

func fieldOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("any encrypted field", anyField)}
	seen := make(map[string]bool)
	for _, shape := range []catalog.Shape{catalog.ShapeFixedField, catalog.ShapeRenamePair} {
		for _, f := range shape.EncryptedFields() {
			if !seen[f.Name] {
				seen[f.Name] = true
				opts = append(opts, huh.NewOption(f.Name, f.Name))
			}
		}
	}
	return opts
}

// BuildHypothesisForm asks for one known-plaintext guess. Answers are written
// into a as the user edits.
func BuildHypothesisForm(frames []frame.Frame, c *catalog.Catalog, a *HypothesisAnswers) (*huh.Form, error) {
	if c == nil {
		c = catalog.Default()
	}
	cmds := commandOptions(frames, c)
	if len(cmds) == 0 {
		return nil, fmt.Errorf("capture has no frames with encrypted fields")
	}
	if a.Field == "" {
		a.Field = anyField
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Command").
				Description("Commands in this capture that carry encrypted name fields.").
				Options(cmds...).
				Value(&a.Command),
			huh.NewInput().
				Title("Frame index").
				Description("Index from 'teachcap scan' of a frame with that command.").
				Validate(func(s string) error {
					_, err := strconv.Atoi(strings.TrimSpace(s))
					return err
				}).
				Value(&a.Frame),
			huh.NewSelect[string]().
				Title("Field").
				Options(fieldOptions()...).
				Value(&a.Field),
			huh.NewInput().
				Title("Plaintext guess").
				Description("What you believe the field contains, e.g. an action name you created.").
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("plaintext is required")
					}
					return nil
				}).
				Value(&a.Text),
		),
	), nil
}

// PromptHypothesis runs the form on the terminal.
func PromptHypothesis(frames []frame.Frame, c *catalog.Catalog) (keystream.Hypothesis, error) {
	var a HypothesisAnswers
	form, err := BuildHypothesisForm(frames, c, &a)
	if err != nil {
		return keystream.Hypothesis{}, err
	}
	if err := form.Run(); err != nil {
		return keystream.Hypothesis{}, fmt.Errorf("hypothesis form: %w", err)
	}
	return a.Hypothesis(frames)
}
