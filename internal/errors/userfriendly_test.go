package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/tonylturner/teachcap/internal/capture"
	"github.com/tonylturner/teachcap/internal/keystream"
)

func TestUserFriendlyError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      UserFriendlyError
		contains []string
	}{
		{
			name:     "message only",
			err:      UserFriendlyError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: UserFriendlyError{
				Message: "load failed",
				Reason:  "truncated",
				Hint:    "check file",
				Try:     "teachcap scan x",
				Err:     fmt.Errorf("unexpected EOF"),
			},
			contains: []string{"load failed", "Reason: truncated", "Hint: check file", "Try: teachcap scan x", "Details: unexpected EOF"},
		},
		{
			name: "no reason",
			err: UserFriendlyError{
				Message: "failed",
				Hint:    "hint here",
			},
			contains: []string{"failed", "Hint: hint here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestUserFriendlyError_ErrorOmitsEmptyFields(t *testing.T) {
	err := UserFriendlyError{Message: "msg"}
	msg := err.Error()
	if strings.Contains(msg, "Reason:") || strings.Contains(msg, "Hint:") || strings.Contains(msg, "Try:") || strings.Contains(msg, "Details:") {
		t.Errorf("Error() = %q, should not contain empty fields", msg)
	}
}

func TestUserFriendlyError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("root cause")
	err := UserFriendlyError{Message: "wrapper", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap should return the inner error")
	}

	var nilErr UserFriendlyError
	if nilErr.Unwrap() != nil {
		t.Error("Unwrap on nil Err should return nil")
	}
}

func TestWrapCaptureError(t *testing.T) {
	if WrapCaptureError(nil, "x.pcap") != nil {
		t.Error("expected nil")
	}

	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"missing", fmt.Errorf("open capture: %w", fs.ErrNotExist), "File not found"},
		{"permission", fmt.Errorf("open capture: %w", fs.ErrPermission), "Permission denied"},
		{"not capture", fmt.Errorf("%w (magic 00)", capture.ErrNotCapture), "not a pcap"},
		{"truncated", fmt.Errorf("read: unexpected EOF"), "truncated"},
		{"other", fmt.Errorf("boom"), "could not be read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapCaptureError(tt.err, "teach.pcap")
			var ufe UserFriendlyError
			if !errors.As(err, &ufe) {
				t.Fatalf("expected UserFriendlyError, got %T", err)
			}
			if !strings.Contains(ufe.Reason, tt.reason) {
				t.Errorf("Reason = %q, want to contain %q", ufe.Reason, tt.reason)
			}
			if !strings.Contains(ufe.Message, "teach.pcap") {
				t.Errorf("Message = %q", ufe.Message)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error should unwrap to the cause")
			}
		})
	}
}

func TestWrapHypothesisError(t *testing.T) {
	if WrapHypothesisError(nil, "h") != nil {
		t.Error("expected nil")
	}

	tests := []struct {
		err    error
		reason string
	}{
		{keystream.ErrFrameIndex, "outside"},
		{keystream.ErrCommandMismatch, "different command"},
		{keystream.ErrNoEncryptedFields, "no encrypted fields"},
		{keystream.ErrUnknownField, "no field"},
		{keystream.ErrSeedPayloadTooShort, "too short"},
		{fmt.Errorf("other"), "could not be evaluated"},
	}
	for _, tt := range tests {
		err := WrapHypothesisError(fmt.Errorf("try: %w", tt.err), "cmd=0x15 frame=9")
		var ufe UserFriendlyError
		if !errors.As(err, &ufe) {
			t.Fatalf("expected UserFriendlyError, got %T", err)
		}
		if !strings.Contains(ufe.Reason, tt.reason) {
			t.Errorf("Reason = %q, want to contain %q", ufe.Reason, tt.reason)
		}
	}
}

func TestWrapSniffError(t *testing.T) {
	err := WrapSniffError(fmt.Errorf("eth9: No such device exists"), "eth9")
	var ufe UserFriendlyError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UserFriendlyError, got %T", err)
	}
	if ufe.Reason != "Interface not found" || !strings.Contains(ufe.Try, "eth9") {
		t.Errorf("unexpected %+v", ufe)
	}
}

func TestWrapConfigError(t *testing.T) {
	if WrapConfigError(nil, "c.yaml") != nil {
		t.Error("expected nil")
	}
	err := WrapConfigError(fmt.Errorf("recovery.workers must be >= 0"), "teachcap.yaml")
	var ufe UserFriendlyError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UserFriendlyError, got %T", err)
	}
	if !strings.Contains(ufe.Message, "teachcap.yaml") || !strings.Contains(ufe.Reason, "workers") {
		t.Errorf("unexpected %+v", ufe)
	}
}
