package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tonylturner/teachcap/internal/batch"
)

var recordsCSVHeader = []string{
	"frame_index", "sequence", "command_id", "command_name",
	"field", "value", "decrypted", "matched_search_term", "error",
}

// WriteRecordsCSV writes one row per record field. Records without fields
// still get one row with empty field and value.
func WriteRecordsCSV(w io.Writer, records []batch.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(recordsCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		base := []string{
			strconv.Itoa(r.FrameIndex),
			strconv.Itoa(int(r.Sequence)),
			fmt.Sprintf("0x%02X", r.CommandID),
			r.CommandName,
		}
		tail := []string{
			strconv.FormatBool(r.Decrypted),
			strconv.FormatBool(r.MatchedSearchTerm),
			r.Error,
		}
		keys := sortedKeys(r.Fields)
		if len(keys) == 0 {
			keys = []string{""}
		}
		for _, k := range keys {
			row := append(append(append([]string{}, base...), k, r.Fields[k]), tail...)
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
