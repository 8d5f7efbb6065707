package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// NewAnalysis starts a report stamped with the current UTC time.
func NewAnalysis(version string, scan ScanSummary) Analysis {
	return Analysis{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Version:     version,
		Scan:        scan,
	}
}

// WriteJSON writes v as indented JSON. Used for analyses, recovery lists,
// scan summaries and record lists alike.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
