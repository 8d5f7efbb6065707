package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/config"
	"github.com/tonylturner/teachcap/internal/keystream"
)

const knownPlaintextFlag = "--known-plaintext"

// normalizeArgs folds "--known-plaintext <cmd> <frame> <text>" into a single
// "--known-plaintext=cmd:frame:text" token so cobra sees one value.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == knownPlaintextFlag && i+3 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, fmt.Sprintf("%s=%s:%s:%s", knownPlaintextFlag, args[i+1], args[i+2], args[i+3]))
			i += 3
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// hypothesisList is a repeatable flag of "cmd[/field]:frame:text" values.
// Set checks the syntax; command names are resolved once the catalog is
// loaded, so names from the config commands section work too.
type hypothesisList struct {
	values []string
}

func (l *hypothesisList) String() string {
	return strings.Join(l.values, ", ")
}

func (l *hypothesisList) Set(s string) error {
	if _, err := splitHypothesis(s); err != nil {
		return err
	}
	l.values = append(l.values, s)
	return nil
}

func (l *hypothesisList) Type() string {
	return "cmd:frame:text"
}

// resolve parses every value against c, in flag order.
func (l *hypothesisList) resolve(c *catalog.Catalog) ([]keystream.Hypothesis, error) {
	out := make([]keystream.Hypothesis, 0, len(l.values))
	for _, v := range l.values {
		h, err := parseHypothesis(v, c)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

type hypothesisParts struct {
	command string
	field   string
	frame   int
	text    string
}

func splitHypothesis(s string) (hypothesisParts, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return hypothesisParts{}, fmt.Errorf("known plaintext %q: want <cmd> <frame> <text>", s)
	}
	cmdPart, field, _ := strings.Cut(parts[0], "/")
	idx, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || idx < 0 {
		return hypothesisParts{}, fmt.Errorf("known plaintext %q: invalid frame index %q", s, parts[1])
	}
	if parts[2] == "" {
		return hypothesisParts{}, fmt.Errorf("known plaintext %q: empty text", s)
	}
	return hypothesisParts{command: cmdPart, field: field, frame: idx, text: parts[2]}, nil
}

func parseHypothesis(s string, c *catalog.Catalog) (keystream.Hypothesis, error) {
	p, err := splitHypothesis(s)
	if err != nil {
		return keystream.Hypothesis{}, err
	}
	cmd, err := config.ParseCommandID(p.command, c)
	if err != nil {
		return keystream.Hypothesis{}, fmt.Errorf("known plaintext %q: %w", s, err)
	}
	return keystream.Hypothesis{CommandID: cmd, FrameIndex: p.frame, Field: p.field, Plaintext: p.text}, nil
}
