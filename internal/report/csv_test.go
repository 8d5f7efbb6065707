package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/tonylturner/teachcap/internal/batch"
)

func TestWriteRecordsCSV(t *testing.T) {
	records := []batch.Record{
		{FrameIndex: 1, Sequence: 2, CommandID: 0x16, CommandName: "rename_action",
			Fields: map[string]string{"old_name": "a,b", "new_name": "c"}, Decrypted: true},
		{FrameIndex: 3, CommandID: 0x01, CommandName: "heartbeat", Fields: map[string]string{}},
	}
	var buf bytes.Buffer
	if err := WriteRecordsCSV(&buf, records); err != nil {
		t.Fatalf("WriteRecordsCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "frame_index" || len(rows[0]) != len(recordsCSVHeader) {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "new_name" || rows[2][4] != "old_name" || rows[2][5] != "a,b" {
		t.Errorf("field rows = %v / %v", rows[1], rows[2])
	}
	if rows[1][2] != "0x16" || rows[1][6] != "true" {
		t.Errorf("row = %v", rows[1])
	}
	if rows[3][3] != "heartbeat" || rows[3][4] != "" {
		t.Errorf("fieldless row = %v", rows[3])
	}
}
