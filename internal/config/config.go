package config

// Configuration loading and validation for teachcap

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/errors"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
)

// Output formats accepted by output.format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// CommandID is a command byte written as 0x1A or 26 in YAML.
type CommandID uint8

func (c *CommandID) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseCommandID(value.Value, nil)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = CommandID(v)
	return nil
}

func (c CommandID) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%02X", uint8(c)), nil
}

// ParseCommandID accepts decimal, 0x-prefixed hex or a name from c. A nil c
// resolves names against catalog.Default().
func ParseCommandID(s string, c *catalog.Catalog) (uint8, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(v), nil
	}
	if c == nil {
		c = catalog.Default()
	}
	if schema, ok := c.ByName(s); ok {
		return schema.ID, nil
	}
	return 0, fmt.Errorf("invalid command id %q", s)
}

// ScanConfig controls frame scanning and capture reading.
type ScanConfig struct {
	MaxPayload int      `yaml:"max_payload"`
	UDPPorts   []uint16 `yaml:"udp_ports,omitempty"` // empty keeps every UDP datagram
	Raw        bool     `yaml:"raw,omitempty"`       // treat inputs as raw byte dumps
}

// RecoveryConfig tunes the keystream recovery engine.
type RecoveryConfig struct {
	PrintableThreshold  float64 `yaml:"printable_threshold"`
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`
	Workers             int     `yaml:"workers"`
	MaxPrefixLen        int     `yaml:"max_prefix_len"`
	RatioOnly           bool    `yaml:"ratio_only"`
}

// HypothesisConfig is one known-plaintext guess. Command may name an entry
// of the commands section.
type HypothesisConfig struct {
	Command string `yaml:"command"`
	Frame   int    `yaml:"frame"`
	Field   string `yaml:"field,omitempty"`
	Text    string `yaml:"text"`
}

// CommandConfig adds or overrides a catalog entry.
type CommandConfig struct {
	ID    CommandID `yaml:"id"`
	Name  string    `yaml:"name"`
	Shape string    `yaml:"shape"`
}

// OutputConfig holds report defaults.
type OutputConfig struct {
	Format string `yaml:"format"`
	Search string `yaml:"search,omitempty"`
}

// Config is the teachcap configuration file
type Config struct {
	Scan       ScanConfig         `yaml:"scan"`
	Recovery   RecoveryConfig     `yaml:"recovery"`
	Hypotheses []HypothesisConfig `yaml:"hypotheses,omitempty"`
	Commands   []CommandConfig    `yaml:"commands,omitempty"`
	Output     OutputConfig       `yaml:"output"`
}

// CreateDefaultConfig returns the built-in defaults.
func CreateDefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxPayload: frame.MaxPayloadLen,
		},
		Recovery: RecoveryConfig{
			PrintableThreshold:  keystream.DefaultPrintableThreshold,
			AcceptanceThreshold: keystream.DefaultAcceptanceThreshold,
			Workers:             4,
			MaxPrefixLen:        keystream.DefaultMaxPrefixLen,
		},
		Output: OutputConfig{
			Format: FormatText,
		},
	}
}

// WriteDefaultConfig writes the default configuration to path
func WriteDefaultConfig(path string) error {
	cfg := CreateDefaultConfig()
	cfg.Hypotheses = []HypothesisConfig{
		{Command: fmt.Sprintf("0x%02X", catalog.CmdDeleteAction), Frame: 0, Field: "name", Text: "hand_wave"},
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads a configuration from a YAML file. An empty path yields the
// defaults. If the file doesn't exist and autoCreate is true, a default
// config file is written first.
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	if path == "" {
		return CreateDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !autoCreate {
				return nil, errors.WrapConfigError(
					fmt.Errorf("config file not found: %s", path),
					path,
				)
			}
			if err := WriteDefaultConfig(path); err != nil {
				return nil, fmt.Errorf("create default config: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, errors.WrapConfigError(
					fmt.Errorf("read created config file: %w", err),
					path,
				)
			}
		} else {
			return nil, errors.WrapConfigError(
				fmt.Errorf("read config file: %w", err),
				path,
			)
		}
	}

	cfg := CreateDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	applyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}
	return cfg, nil
}

// applyDefaults fills values an explicit YAML zero would otherwise disable.
func applyDefaults(cfg *Config) {
	if cfg.Scan.MaxPayload == 0 {
		cfg.Scan.MaxPayload = frame.MaxPayloadLen
	}
	if cfg.Recovery.PrintableThreshold == 0 {
		cfg.Recovery.PrintableThreshold = keystream.DefaultPrintableThreshold
	}
	if cfg.Recovery.AcceptanceThreshold == 0 {
		cfg.Recovery.AcceptanceThreshold = keystream.DefaultAcceptanceThreshold
	}
	if cfg.Recovery.MaxPrefixLen == 0 {
		cfg.Recovery.MaxPrefixLen = keystream.DefaultMaxPrefixLen
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatText
	}
}

// ValidateConfig validates a configuration
func ValidateConfig(cfg *Config) error {
	if cfg.Scan.MaxPayload < 1 || cfg.Scan.MaxPayload > 0xFFFF {
		return fmt.Errorf("scan.max_payload must be between 1 and 65535")
	}
	r := cfg.Recovery
	if r.PrintableThreshold <= 0 || r.PrintableThreshold > 1 {
		return fmt.Errorf("recovery.printable_threshold must be in (0, 1]")
	}
	if r.AcceptanceThreshold <= 0 || r.AcceptanceThreshold >= 1 {
		return fmt.Errorf("recovery.acceptance_threshold must be in (0, 1)")
	}
	if r.Workers < 0 {
		return fmt.Errorf("recovery.workers must be >= 0")
	}
	if r.MaxPrefixLen < 0 || r.MaxPrefixLen > 2 {
		return fmt.Errorf("recovery.max_prefix_len must be between 0 and 2")
	}

	seen := make(map[CommandID]bool)
	for i, c := range cfg.Commands {
		if c.Name == "" {
			return fmt.Errorf("commands[%d]: name is required", i)
		}
		if _, err := catalog.ParseShape(c.Shape); err != nil {
			return fmt.Errorf("commands[%d]: %w", i, err)
		}
		if seen[c.ID] {
			return fmt.Errorf("commands[%d]: duplicate id 0x%02X", i, uint8(c.ID))
		}
		seen[c.ID] = true
	}

	cat, err := cfg.Catalog()
	if err != nil {
		return err
	}
	for i, h := range cfg.Hypotheses {
		if _, err := ParseCommandID(h.Command, cat); err != nil {
			return fmt.Errorf("hypotheses[%d]: %w", i, err)
		}
		if h.Text == "" {
			return fmt.Errorf("hypotheses[%d]: text is required", i)
		}
		if h.Frame < 0 {
			return fmt.Errorf("hypotheses[%d]: frame must be >= 0", i)
		}
	}

	switch cfg.Output.Format {
	case FormatText, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("output.format must be one of text, json, csv (got %q)", cfg.Output.Format)
	}
	return nil
}

// Catalog builds the command table with the configured additions.
func (cfg *Config) Catalog() (*catalog.Catalog, error) {
	if len(cfg.Commands) == 0 {
		return catalog.Default(), nil
	}
	extra := make([]catalog.Schema, 0, len(cfg.Commands))
	for _, c := range cfg.Commands {
		shape, err := catalog.ParseShape(c.Shape)
		if err != nil {
			return nil, fmt.Errorf("command 0x%02X: %w", uint8(c.ID), err)
		}
		extra = append(extra, catalog.Schema{ID: uint8(c.ID), Name: c.Name, Shape: shape})
	}
	return catalog.New(extra...), nil
}

// EngineOptions maps the recovery section onto engine options.
func (cfg *Config) EngineOptions() keystream.Options {
	return keystream.Options{
		PrintableThreshold:  cfg.Recovery.PrintableThreshold,
		AcceptanceThreshold: cfg.Recovery.AcceptanceThreshold,
		Workers:             cfg.Recovery.Workers,
		MaxPrefixLen:        cfg.Recovery.MaxPrefixLen,
		RatioOnly:           cfg.Recovery.RatioOnly,
	}
}

// ScanOptions maps the scan section onto scanner options.
func (cfg *Config) ScanOptions() []frame.Option {
	return []frame.Option{frame.WithMaxPayload(cfg.Scan.MaxPayload)}
}

// HypothesisList returns the configured hypotheses in file order, with
// command names resolved against c.
func (cfg *Config) HypothesisList(c *catalog.Catalog) ([]keystream.Hypothesis, error) {
	out := make([]keystream.Hypothesis, 0, len(cfg.Hypotheses))
	for i, h := range cfg.Hypotheses {
		id, err := ParseCommandID(h.Command, c)
		if err != nil {
			return nil, fmt.Errorf("hypotheses[%d]: %w", i, err)
		}
		out = append(out, keystream.Hypothesis{
			CommandID:  id,
			FrameIndex: h.Frame,
			Field:      h.Field,
			Plaintext:  h.Text,
		})
	}
	return out, nil
}
