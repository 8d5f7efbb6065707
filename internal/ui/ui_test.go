package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
)

func sampleFrames() []frame.Frame {
	return []frame.Frame{
		{CommandID: catalog.CmdHeartbeat},
		{CommandID: catalog.CmdPlayAction, Payload: make([]byte, 32)},
		{CommandID: catalog.CmdRenameAction, Payload: make([]byte, 64)},
		{CommandID: catalog.CmdPlayAction, Payload: make([]byte, 32)},
	}
}

func TestHypothesisAnswers(t *testing.T) {
	frames := sampleFrames()
	tests := []struct {
		name    string
		a       HypothesisAnswers
		wantErr string
	}{
		{"ok any field", HypothesisAnswers{Command: "0x14", Frame: "3", Field: anyField, Text: "bow"}, ""},
		{"ok named field", HypothesisAnswers{Command: "22", Frame: " 2 ", Field: "new_name", Text: "spin"}, ""},
		{"bad command", HypothesisAnswers{Command: "x", Frame: "1", Text: "bow"}, "invalid command"},
		{"bad frame", HypothesisAnswers{Command: "0x14", Frame: "one", Text: "bow"}, "invalid frame"},
		{"out of range", HypothesisAnswers{Command: "0x14", Frame: "9", Text: "bow"}, "out of range"},
		{"wrong command", HypothesisAnswers{Command: "0x14", Frame: "2", Text: "bow"}, "not 0x14"},
		{"empty text", HypothesisAnswers{Command: "0x14", Frame: "1"}, "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.a.Hypothesis(frames)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Hypothesis failed: %v", err)
			}
			if tt.a.Field == anyField && h.Field != "" {
				t.Errorf("any field should map to empty, got %q", h.Field)
			}
			if h.Plaintext != tt.a.Text {
				t.Errorf("plaintext = %q", h.Plaintext)
			}
		})
	}
}

func TestCommandOptions(t *testing.T) {
	opts := commandOptions(sampleFrames(), catalog.Default())
	if len(opts) != 2 {
		t.Fatalf("options = %d, want play and rename", len(opts))
	}
	if opts[0].Value != "0x14" || !strings.Contains(opts[0].Key, "2 frames, first #1") {
		t.Errorf("first option = %+v", opts[0])
	}
	if opts[1].Value != "0x16" {
		t.Errorf("second option = %+v", opts[1])
	}
}

func TestBuildHypothesisForm(t *testing.T) {
	var a HypothesisAnswers
	form, err := BuildHypothesisForm(sampleFrames(), nil, &a)
	if err != nil || form == nil {
		t.Fatalf("BuildHypothesisForm = %v, %v", form, err)
	}
	if a.Field != anyField {
		t.Errorf("field default = %q", a.Field)
	}

	if _, err := BuildHypothesisForm([]frame.Frame{{CommandID: catalog.CmdHeartbeat}}, nil, &a); err == nil {
		t.Error("expected error without encrypted commands")
	}
}

func TestFieldOptions(t *testing.T) {
	var names []string
	for _, o := range fieldOptions() {
		names = append(names, o.Value)
	}
	if got := strings.Join(names, ","); got != "*,name,old_name,new_name" {
		t.Errorf("field options = %s", got)
	}
}

func TestCopyToClipboard(t *testing.T) {
	orig := writeClipboard
	defer func() { writeClipboard = orig }()

	var got string
	writeClipboard = func(s string) error {
		got = s
		return nil
	}
	if err := CopyToClipboard("deadbeef"); err != nil && !strings.Contains(err.Error(), "no clipboard") {
		t.Fatalf("CopyToClipboard failed: %v", err)
	} else if err == nil && got != "deadbeef" {
		t.Errorf("copied %q", got)
	}

	writeClipboard = func(string) error { return errors.New("denied") }
	if err := CopyToClipboard("x"); err == nil {
		t.Error("expected error")
	}
}
