package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/tonylturner/teachcap/internal/capture"
	"github.com/tonylturner/teachcap/internal/keystream"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapCaptureError wraps capture loading errors with user-friendly context
func WrapCaptureError(err error, path string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to load capture %s", path),
		Reason:  extractCaptureReason(err),
		Hint:    "teachcap reads pcap and pcapng files; anything else is scanned as a raw byte dump",
		Try:     fmt.Sprintf("teachcap scan %s --raw", path),
		Err:     err,
	}
}

// WrapHypothesisError wraps a rejected recovery request with user-friendly context
func WrapHypothesisError(err error, hypothesis string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Invalid plaintext hypothesis: %s", hypothesis),
		Reason:  extractHypothesisReason(err),
		Hint:    "Frame indexes refer to the frame list printed by 'teachcap scan'",
		Try:     "teachcap scan <capture> --command <id>",
		Err:     err,
	}
}

// WrapSniffError wraps live capture errors with user-friendly context
func WrapSniffError(err error, iface string) error {
	if err == nil {
		return nil
	}

	reason := "Live capture failed"
	errStr := err.Error()
	if strings.Contains(errStr, "permission") || strings.Contains(errStr, "Operation not permitted") {
		reason = "Insufficient privileges to open the interface"
	} else if strings.Contains(errStr, "No such device") || strings.Contains(errStr, "doesn't exist") {
		reason = "Interface not found"
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to sniff on %s", iface),
		Reason:  reason,
		Hint:    "Live capture needs libpcap and usually root or CAP_NET_RAW",
		Try:     "sudo teachcap sniff --iface " + iface,
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Run 'teachcap config init' to see every option with its default",
		Try:     fmt.Sprintf("teachcap config init %s.example", configPath),
		Err:     err,
	}
}

func extractCaptureReason(err error) string {
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return "File not found"
	case stderrors.Is(err, fs.ErrPermission):
		return "Permission denied"
	case stderrors.Is(err, capture.ErrNotCapture):
		return "File is not a pcap or pcapng capture"
	}
	if strings.Contains(err.Error(), "EOF") {
		return "Capture file is truncated"
	}
	return "Capture could not be read"
}

func extractHypothesisReason(err error) string {
	switch {
	case stderrors.Is(err, keystream.ErrFrameIndex):
		return "Frame index is outside the scanned frame list"
	case stderrors.Is(err, keystream.ErrCommandMismatch):
		return "The frame at that index carries a different command"
	case stderrors.Is(err, keystream.ErrNoEncryptedFields):
		return "The command has no encrypted fields"
	case stderrors.Is(err, keystream.ErrUnknownField):
		return "The command has no field with that name"
	case stderrors.Is(err, keystream.ErrSeedPayloadTooShort):
		return "The frame payload is too short for its command"
	}
	return "Hypothesis could not be evaluated"
}
