package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tonylturner/teachcap/internal/batch"
	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
)

// WriteScanSummary prints frame counts per command.
func WriteScanSummary(w io.Writer, s ScanSummary) {
	st := newStyles(w)
	fmt.Fprintf(w, "%s %s\n", st.title.Render("Capture:"), s.Source)
	fmt.Fprintf(w, "Frames: %d accepted of %d candidates (truncated %d, oversized %d, checksum mismatch %d)\n",
		s.Accepted, s.Candidates, s.Truncated, s.Oversized, s.ChecksumMismatch)
	if len(s.Commands) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", st.head.Render("Commands:"))
	for _, c := range s.Commands {
		name := c.Name
		if !c.Known {
			name = st.dim.Render(name)
		}
		fmt.Fprintf(w, "  0x%02X  %-22s %d\n", c.ID, name, c.Frames)
	}
}

// WriteFrameList prints one line per frame, with an optional payload dump.
func WriteFrameList(w io.Writer, frames []frame.Frame, c *catalog.Catalog, dump bool) {
	if c == nil {
		c = catalog.Default()
	}
	st := newStyles(w)
	for i, f := range frames {
		fmt.Fprintf(w, "%s off=%-6d seq=%-5d cmd=0x%02X %-22s len=%d\n",
			st.head.Render(fmt.Sprintf("#%-4d", i)), f.Offset, f.Sequence, f.CommandID, c.Lookup(f.CommandID).Name, len(f.Payload))
		if dump && len(f.Payload) > 0 {
			fmt.Fprint(w, indent(HexDump(f.Payload, 16), "      "))
		}
	}
}

// WriteActionTable prints every decoded action list.
func WriteActionTable(w io.Writer, lists []ActionList) {
	st := newStyles(w)
	if len(lists) == 0 {
		fmt.Fprintln(w, st.dim.Render("No action list responses decoded."))
		return
	}
	for _, l := range lists {
		fmt.Fprintf(w, "\n%s frame %d, seq %d: %d declared, %d decoded",
			st.title.Render("Action list"), l.FrameIndex, l.Sequence, l.Declared, len(l.Actions))
		if l.SizeMismatch {
			fmt.Fprintf(w, " %s", st.bad.Render("[size mismatch]"))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", st.head.Render(fmt.Sprintf("%-3s %-32s %s", "#", "Name", "Metadata")))
		for i, a := range l.Actions {
			fmt.Fprintf(w, "  %-3d %-32s 0x%08X\n", i, a.Name, a.Metadata)
		}
	}
}

// WriteRecovery prints one block per hypothesis.
func WriteRecovery(w io.Writer, recs []Recovery) {
	st := newStyles(w)
	for _, r := range recs {
		fmt.Fprintf(w, "\n%s %s (%s)\n", st.title.Render("Recovery"), r.Hypothesis, r.Command)
		fmt.Fprintf(w, "  status:    %s\n", st.status(r.Status))
		if r.KeyHex != "" {
			fmt.Fprintf(w, "  key:       %s\n", r.KeyHex)
		}
		if r.CandidateKeyHex != "" {
			fmt.Fprintf(w, "  candidate: %s\n", st.dim.Render(r.CandidateKeyHex))
		}
		if r.Field != "" {
			fmt.Fprintf(w, "  seed:      frame %d field %s (cross-check %.2f)\n", r.SourceFrame, r.Field, r.CrossCheck)
			fmt.Fprintf(w, "  validated: %d/%d (%.3f), excluded %d\n", r.Validated, r.Total, r.ValidatedFraction, r.Excluded)
		}
		if r.Reason != "" {
			fmt.Fprintf(w, "  reason:    %s\n", r.Reason)
		}
	}
}

// WriteRecords prints decrypted records, field names sorted.
func WriteRecords(w io.Writer, records []batch.Record) {
	st := newStyles(w)
	for _, r := range records {
		marker := " "
		if r.MatchedSearchTerm {
			marker = st.hit.Render("*")
		}
		fmt.Fprintf(w, "%s #%-4d seq=%-5d 0x%02X %-22s", marker, r.FrameIndex, r.Sequence, r.CommandID, r.CommandName)
		for _, k := range sortedKeys(r.Fields) {
			fmt.Fprintf(w, " %s=%q", k, r.Fields[k])
		}
		if r.Error != "" {
			fmt.Fprintf(w, " %s", st.bad.Render("error: "+r.Error))
		}
		fmt.Fprintln(w)
	}
}

// WritePrefixReports prints the outcome of a prefix search.
func WritePrefixReports(w io.Writer, reports []keystream.PrefixReport) {
	st := newStyles(w)
	for _, r := range reports {
		fmt.Fprintf(w, "#%-4d seq=%-5d %-9s %s", r.FrameIndex, r.Sequence, r.Field, st.status(r.Status.String()))
		switch r.Status {
		case keystream.PrefixMatched:
			m := r.Matches[0]
			fmt.Fprintf(w, " prefix=%x text=%q", m.Prefix, m.Plaintext)
		case keystream.PrefixAmbiguous:
			more := ""
			if r.Truncated {
				more = "+"
			}
			fmt.Fprintf(w, " %d%s candidates", len(r.Matches), more)
		}
		fmt.Fprintln(w)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(l)
	}
	return sb.String()
}
