package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tonylturner/teachcap/internal/batch"
	"github.com/tonylturner/teachcap/internal/capture"
	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/config"
	"github.com/tonylturner/teachcap/internal/errors"
	"github.com/tonylturner/teachcap/internal/keystream"
	"github.com/tonylturner/teachcap/internal/logging"
	"github.com/tonylturner/teachcap/internal/report"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg     *config.Config
	logger  *logging.Logger
	catalog *catalog.Catalog
}

func loadEnv(g *globalFlags) (*env, error) {
	if g == nil {
		g = &globalFlags{}
	}
	cfg, err := config.LoadConfig(g.configPath, false)
	if err != nil {
		return nil, err
	}
	level, err := logging.ResolveLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(level, g.logFile)
	if err != nil {
		return nil, err
	}
	cat, err := cfg.Catalog()
	if err != nil {
		logger.Close()
		return nil, errors.WrapConfigError(err, g.configPath)
	}
	return &env{cfg: cfg, logger: logger, catalog: cat}, nil
}

func (e *env) close() {
	_ = e.logger.Close()
}

func (e *env) engine() *keystream.Engine {
	eng := keystream.NewEngine(e.catalog, e.cfg.EngineOptions())
	eng.SetLogger(e.logger)
	return eng
}

func (e *env) decryptor() *batch.Decryptor {
	return batch.NewDecryptor(e.catalog, e.logger)
}

// loadCorpus reads a capture and logs what the scanner saw.
func (e *env) loadCorpus(path string, raw bool) (capture.Corpus, error) {
	raw = raw || e.cfg.Scan.Raw
	c, err := capture.Load(path, raw, capture.Filter{Ports: e.cfg.Scan.UDPPorts}, e.cfg.ScanOptions()...)
	if err != nil {
		return capture.Corpus{}, errors.WrapCaptureError(err, path)
	}
	s := c.Stats
	e.logger.LogScanStats(path, s.Candidates, s.Accepted, s.Truncated, s.Oversized, s.ChecksumMismatch)
	for i, f := range c.Frames {
		e.logger.LogFrame(i, f.Offset, f.Sequence, f.CommandID, e.catalog.Lookup(f.CommandID).Name, len(f.Payload))
		e.logger.LogHex(fmt.Sprintf("frame %d payload", i), f.Payload)
	}
	return c, nil
}

func (e *env) format(flag string) (string, error) {
	f := strings.ToLower(flag)
	if f == "" {
		f = e.cfg.Output.Format
	}
	switch f {
	case config.FormatText, config.FormatJSON, config.FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or csv)", flag)
}

// openOutput returns path as a file, or fallback when path is empty.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

func writeRecords(w io.Writer, format string, records []batch.Record) error {
	switch format {
	case config.FormatJSON:
		return report.WriteJSON(w, records)
	case config.FormatCSV:
		return report.WriteRecordsCSV(w, records)
	default:
		report.WriteRecords(w, records)
		return nil
	}
}

func parseKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), "0x")
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("key is empty")
	}
	return key, nil
}

func parseCommands(values []string, c *catalog.Catalog) ([]uint8, error) {
	var out []uint8
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part == "" {
				continue
			}
			id, err := config.ParseCommandID(part, c)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}
