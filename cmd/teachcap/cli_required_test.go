package main

import (
	"io"
	"strings"
	"testing"
)

func TestCLIRequiredFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "analyze missing capture",
			args:    []string{"analyze"},
			wantErr: "required argument <capture> not given",
		},
		{
			name:    "scan missing capture",
			args:    []string{"scan"},
			wantErr: "required argument <capture> not given",
		},
		{
			name:    "decrypt missing key",
			args:    []string{"decrypt", "session.pcap"},
			wantErr: "required flag --key not set",
		},
		{
			name:    "recover text without command",
			args:    []string{"recover", "session.pcap", "--frame", "2", "--text", "bow"},
			wantErr: "required flag --command not set",
		},
		{
			name:    "recover text without frame",
			args:    []string{"recover", "session.pcap", "--command", "0x15", "--text", "bow"},
			wantErr: "required flag --frame not set",
		},
		{
			name:    "sniff missing iface",
			args:    []string{"sniff"},
			wantErr: "required flag --iface not set",
		},
		{
			name:    "config init missing path",
			args:    []string{"config", "init"},
			wantErr: "required argument <path> not given",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error to contain %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
