package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/payload"
	"github.com/tonylturner/teachcap/internal/report"
)

var sessionNames = []string{"hand_wave", "waist_spin", "spin_disks", "stand_up"}

func sessionKey() []byte {
	key := make([]byte, catalog.NameFieldLen)
	for i := range key {
		key[i] = byte(0x80 | (i*37+11)%0x7f)
	}
	return key
}

// sessionFrames is one heartbeat, one plaintext action list and one
// encrypted delete per name, in that order.
func sessionFrames(key []byte) []frame.Frame {
	actions := make([]payload.ActionRecord, len(sessionNames))
	for i, n := range sessionNames {
		actions[i] = payload.ActionRecord{Name: n, Metadata: uint32(i)}
	}
	frames := []frame.Frame{
		{Sequence: 1, CommandID: catalog.CmdHeartbeat},
		{Sequence: 2, CommandID: catalog.CmdActionListResponse, Payload: payload.BuildActionList(actions)},
	}
	for i, n := range sessionNames {
		frames = append(frames, frame.Frame{
			Sequence:  uint16(10 + i),
			CommandID: catalog.CmdDeleteAction,
			Payload:   payload.BuildNameFields(key, n),
		})
	}
	return frames
}

func udpPacket(t *testing.T, data []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.IPv4(10, 0, 0, 2).To4(),
		DstIP:    net.IPv4(10, 0, 0, 9).To4(),
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 51000, DstPort: 6000}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(data)); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func writeCapture(t *testing.T, datagrams ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, d := range datagrams {
		pkt := udpPacket(t, d)
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, int64(i)*int64(time.Millisecond)),
			CaptureLength: len(pkt),
			Length:        len(pkt),
		}
		if err := w.WritePacket(ci, pkt); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

func writeSession(t *testing.T, key []byte) string {
	t.Helper()
	var datagrams [][]byte
	for _, f := range sessionFrames(key) {
		datagrams = append(datagrams, frame.Encode(f))
	}
	return writeCapture(t, datagrams...)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(normalizeArgs(args))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeRecoversKey(t *testing.T) {
	key := sessionKey()
	path := writeSession(t, key)
	outPath := filepath.Join(t.TempDir(), "report.json")

	if _, err := execute(t, "analyze", path, "--known-plaintext", "0x15", "2", "hand_wave", "--format", "json", "-o", outPath); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var a report.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatalf("decode report: %v", err)
	}

	if a.Scan.Accepted != 6 {
		t.Fatalf("expected 6 frames, got %d", a.Scan.Accepted)
	}
	if len(a.ActionLists) != 1 || len(a.ActionLists[0].Actions) != len(sessionNames) {
		t.Fatalf("unexpected action lists %+v", a.ActionLists)
	}
	if len(a.Recoveries) != 1 {
		t.Fatalf("expected one recovery, got %d", len(a.Recoveries))
	}
	r := a.Recoveries[0]
	if r.Status != "accepted" || r.KeyHex != hex.EncodeToString(key) {
		t.Fatalf("unexpected recovery %+v", r)
	}
	if r.Validated != len(sessionNames) || r.Total != len(sessionNames) {
		t.Fatalf("expected %d/%d validated, got %d/%d", len(sessionNames), len(sessionNames), r.Validated, r.Total)
	}

	var got []string
	for _, rec := range a.Records {
		if rec.CommandID == catalog.CmdDeleteAction && rec.Decrypted {
			got = append(got, rec.Fields["name"])
		}
	}
	if strings.Join(got, ",") != strings.Join(sessionNames, ",") {
		t.Fatalf("decrypted names %v, want %v", got, sessionNames)
	}
}

func TestAnalyzeCommandFilter(t *testing.T) {
	path := writeSession(t, sessionKey())

	out, err := execute(t, "analyze", path, "--command", "delete_action", "--format", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var a report.Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(a.Scan.Commands) != 1 || a.Scan.Commands[0].ID != catalog.CmdDeleteAction || a.Scan.Commands[0].Frames != len(sessionNames) {
		t.Fatalf("commands = %+v, want only delete_action", a.Scan.Commands)
	}
	if a.Scan.Accepted != 6 {
		t.Errorf("scanner counters should cover the whole capture, accepted = %d", a.Scan.Accepted)
	}
	if len(a.ActionLists) != 0 {
		t.Errorf("action lists = %+v, want none", a.ActionLists)
	}

	text, err := execute(t, "analyze", path, "--command", "0x1A")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.Contains(text, "delete_action") || !strings.Contains(text, "waist_spin") {
		t.Fatalf("text report not narrowed to action lists:\n%s", text)
	}
}

func TestAnalyzeTextReport(t *testing.T) {
	path := writeSession(t, sessionKey())

	out, err := execute(t, "analyze", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"delete_action", "action_list_response", "waist_spin"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyzeNoFrames(t *testing.T) {
	path := writeCapture(t, []byte("not a frame at all"))

	_, err := execute(t, "analyze", path)
	if err == nil || !strings.Contains(err.Error(), "no Teaching Protocol frames") {
		t.Fatalf("expected no-frames error, got %v", err)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "missing.pcap"))
	if err == nil || !strings.Contains(err.Error(), "Failed to load capture") {
		t.Fatalf("expected capture error, got %v", err)
	}
}

func TestAnalyzeBadHypothesis(t *testing.T) {
	path := writeSession(t, sessionKey())

	// Frame 0 is a heartbeat.
	_, err := execute(t, "analyze", path, "--known-plaintext", "0x15", "0", "bow")
	if err == nil || !strings.Contains(err.Error(), "Invalid plaintext hypothesis") {
		t.Fatalf("expected hypothesis error, got %v", err)
	}
}

func TestConfiguredCommandNames(t *testing.T) {
	key := sessionKey()
	path := writeSession(t, key)
	cfgPath := filepath.Join(t.TempDir(), "teachcap.yaml")
	cfgData := "commands:\n  - id: 0x15\n    name: remove_action\n    shape: fixed_field\n"
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := execute(t, "analyze", path, "--config", cfgPath,
		"--known-plaintext", "remove_action", "2", "hand_wave", "--command", "remove_action", "--format", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var a report.Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(a.Recoveries) != 1 || a.Recoveries[0].KeyHex != hex.EncodeToString(key) {
		t.Fatalf("recoveries = %+v", a.Recoveries)
	}
	if len(a.Scan.Commands) != 1 || a.Scan.Commands[0].Name != "remove_action" {
		t.Fatalf("commands = %+v", a.Scan.Commands)
	}
	if len(a.Records) != len(sessionNames) {
		t.Fatalf("records = %d, want %d", len(a.Records), len(sessionNames))
	}

	out, err = execute(t, "recover", path, "--config", cfgPath,
		"--command", "remove_action", "--frame", "3", "--text", "waist_spin", "--format", "json")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	var recs []report.Recovery
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode recoveries: %v", err)
	}
	if len(recs) != 1 || recs[0].Command != "remove_action" || recs[0].Status != "accepted" {
		t.Fatalf("recoveries = %+v", recs)
	}

	if _, err := execute(t, "analyze", path, "--known-plaintext", "remove_action", "2", "hand_wave"); err == nil {
		t.Fatal("remove_action resolved without the config file")
	}
}

func TestRecoverJSON(t *testing.T) {
	key := sessionKey()
	path := writeSession(t, key)

	out, err := execute(t, "recover", path, "--command", "delete_action", "--frame", "3", "--text", "waist_spin", "--format", "json")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	var recs []report.Recovery
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(recs) != 1 || recs[0].KeyHex != hex.EncodeToString(key) {
		t.Fatalf("unexpected recoveries %+v", recs)
	}
}

func TestDecryptCSV(t *testing.T) {
	key := sessionKey()
	path := writeSession(t, key)
	outPath := filepath.Join(t.TempDir(), "records.csv")

	_, err := execute(t, "decrypt", path, "--key", hex.EncodeToString(key), "--command", "0x15",
		"--search", "SPIN", "--only-matches", "--format", "csv", "-o", outPath)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[1], "waist_spin") || !strings.Contains(lines[2], "spin_disks") {
		t.Fatalf("unexpected rows:\n%s", data)
	}
}

func TestDecryptPrefixFromActionNames(t *testing.T) {
	key := sessionKey()
	path := writeSession(t, key)

	// Only the suffix is right; the prefix comes from the action list names.
	partial := append([]byte{0, 0}, key[2:]...)
	out, err := execute(t, "decrypt", path, "--key", hex.EncodeToString(partial), "--prefix-len", "2", "--command", "0x15", "--format", "json")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	// Text prefix reports are not written in json mode.
	var recs []struct {
		Fields    map[string]string `json:"fields"`
		Decrypted bool              `json:"decrypted"`
	}
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(recs) != len(sessionNames) {
		t.Fatalf("expected %d records, got %d", len(sessionNames), len(recs))
	}
	for i, r := range recs {
		if !r.Decrypted || r.Fields["name"] != sessionNames[i] {
			t.Fatalf("record %d = %+v, want %q", i, r, sessionNames[i])
		}
	}
}

func TestScanListsFrames(t *testing.T) {
	path := writeSession(t, sessionKey())

	out, err := execute(t, "scan", path, "--payload")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "heartbeat") || !strings.Contains(out, "#5") {
		t.Fatalf("unexpected scan output:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teachcap.yaml")

	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := execute(t, "config", "init", path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected exists error, got %v", err)
	}
	if _, err := execute(t, "config", "init", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestScanDebugLogDumpsPayloads(t *testing.T) {
	key := sessionKey()
	path := writeSession(t, key)
	logPath := filepath.Join(t.TempDir(), "scan.log")

	if _, err := execute(t, "scan", path, "--log-level", "debug", "--log-file", logPath); err != nil {
		t.Fatalf("scan: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	log := string(data)
	want := hex.EncodeToString(payload.BuildNameFields(key, sessionNames[0]))
	if !strings.Contains(log, "frame 2 payload") || !strings.Contains(log, want) {
		t.Fatalf("debug log missing payload dump:\n%s", log)
	}
}
