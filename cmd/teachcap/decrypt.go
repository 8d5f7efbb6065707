package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonylturner/teachcap/internal/batch"
	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/config"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
	"github.com/tonylturner/teachcap/internal/payload"
	"github.com/tonylturner/teachcap/internal/report"
)

type decryptFlags struct {
	input       string
	key         string
	commands    []string
	prefixLen   int
	dictionary  string
	search      string
	onlyMatches bool
	raw         bool
	format      string
	output      string
}

func newDecryptCmd(g *globalFlags) *cobra.Command {
	flags := &decryptFlags{}

	cmd := &cobra.Command{
		Use:   "decrypt <capture>",
		Short: "Decrypt every frame with a recovered key",
		Long: `Apply a keystream to the encrypted fields of every selected frame and
print one record per frame.

When the first bytes of the keystream change from frame to frame, pass
--prefix-len with the number of unknown leading bytes. Each frame's prefix
is then completed from --dictionary (one name per line), from the action
names found in the capture, or by brute force when neither yields words.`,
		Example: `  teachcap decrypt session.pcap --key 5a1c...e3 --command 0x15 --search weld
  teachcap decrypt session.pcap --key 5a1c...e3 --prefix-len 2 --dictionary names.txt --format csv -o out.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) == 1 {
				flags.input = args[0]
			}
			if flags.input == "" {
				return missingArgError(cmd, "<capture>")
			}
			if flags.key == "" {
				return missingFlagError(cmd, "--key")
			}
			return runDecrypt(cmd.OutOrStdout(), g, flags)
		},
	}

	cmd.Flags().StringVar(&flags.key, "key", "", "Keystream as hex (required)")
	cmd.Flags().StringSliceVar(&flags.commands, "command", nil, "Only these command IDs (hex, decimal or name)")
	cmd.Flags().IntVar(&flags.prefixLen, "prefix-len", 0, "Number of leading key bytes that vary per frame")
	cmd.Flags().StringVar(&flags.dictionary, "dictionary", "", "File of candidate names for prefix completion")
	cmd.Flags().StringVar(&flags.search, "search", "", "Mark records whose fields contain this text")
	cmd.Flags().BoolVar(&flags.onlyMatches, "only-matches", false, "Print only records matching --search")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Treat the input as a raw byte dump")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text, json, csv")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write records to a file")

	return cmd
}

func runDecrypt(stdout io.Writer, g *globalFlags, flags *decryptFlags) error {
	e, err := loadEnv(g)
	if err != nil {
		return err
	}
	defer e.close()

	format, err := e.format(flags.format)
	if err != nil {
		return err
	}
	key, err := parseKey(flags.key)
	if err != nil {
		return err
	}
	cmds, err := parseCommands(flags.commands, e.catalog)
	if err != nil {
		return err
	}
	search := flags.search
	if search == "" {
		search = e.cfg.Output.Search
	}
	if flags.onlyMatches && search == "" {
		return fmt.Errorf("--only-matches needs --search or output.search in the config")
	}

	corpus, err := e.loadCorpus(flags.input, flags.raw)
	if err != nil {
		return err
	}
	if len(corpus.Frames) == 0 {
		return fmt.Errorf("no Teaching Protocol frames found in %s", flags.input)
	}

	opts := batch.Options{Commands: cmds, Search: search, OnlyMatches: flags.onlyMatches}
	var reports []keystream.PrefixReport
	if flags.prefixLen > 0 {
		dict, err := loadDictionary(flags.dictionary)
		if err != nil {
			return err
		}
		if len(dict) == 0 {
			dict = actionNames(corpus.Frames, e.catalog)
			e.logger.Verbose("using %d action names from the capture as dictionary", len(dict))
		}
		reports, err = searchPrefixes(e.engine(), corpus.Frames, e.catalog, cmds, key, flags.prefixLen, dict)
		if err != nil {
			return err
		}
		opts.KeyFunc = batch.PrefixKeyFunc(reports, nil)
	} else {
		opts.Key = key
	}
	records := e.decryptor().Run(corpus.Frames, opts)

	w, closeOut, err := openOutput(flags.output, stdout)
	if err != nil {
		return err
	}
	if format == config.FormatText && len(reports) > 0 {
		report.WritePrefixReports(w, reports)
		fmt.Fprintln(w)
	}
	if err := writeRecords(w, format, records); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

// searchPrefixes completes the key for every frame of cmds, or of every
// command present whose fields match the key width when cmds is empty.
func searchPrefixes(eng *keystream.Engine, frames []frame.Frame, c *catalog.Catalog, cmds []uint8, key []byte, prefixLen int, dict []string) ([]keystream.PrefixReport, error) {
	partial, err := keystream.PartialKeyFromKey(key, prefixLen)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		cmds = prefixCommands(frames, c, len(key))
	}
	var out []keystream.PrefixReport
	for _, id := range cmds {
		reports, err := eng.SearchPrefix(frames, id, "", partial, dict)
		if err != nil {
			return nil, fmt.Errorf("prefix search for 0x%02X: %w", id, err)
		}
		out = append(out, reports...)
	}
	return out, nil
}

func prefixCommands(frames []frame.Frame, c *catalog.Catalog, width int) []uint8 {
	seen := make(map[uint8]bool)
	var out []uint8
	for _, f := range frames {
		if seen[f.CommandID] {
			continue
		}
		seen[f.CommandID] = true
		fields := c.Lookup(f.CommandID).EncryptedFields()
		if len(fields) == 0 {
			continue
		}
		ok := true
		for _, fld := range fields {
			ok = ok && fld.Width == width
		}
		if ok {
			out = append(out, f.CommandID)
		}
	}
	return out
}

// actionNames collects the plaintext names of every action list response.
func actionNames(frames []frame.Frame, c *catalog.Catalog) []string {
	var names []string
	for _, l := range report.ActionLists(frames, payload.NewDecoder(c)) {
		for _, a := range l.Actions {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
	}
	return names
}

func loadDictionary(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return words, nil
}
