package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonylturner/teachcap/internal/batch"
	"github.com/tonylturner/teachcap/internal/capture"
	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/config"
	"github.com/tonylturner/teachcap/internal/errors"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/keystream"
	"github.com/tonylturner/teachcap/internal/payload"
	"github.com/tonylturner/teachcap/internal/report"
)

type analyzeFlags struct {
	input      string
	commands   []string
	hypotheses hypothesisList
	raw        bool
	format     string
	output     string
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <capture>",
		Short: "Scan a capture, decode action lists and recover keys",
		Long: `Scan a pcap, pcapng or raw dump for Teaching Protocol frames and print:
  - frame counts per command ID
  - decoded action list tables
  - key recovery results for every known-plaintext hypothesis

Hypotheses come from --known-plaintext (repeatable) and the config file.
Frames of commands with an accepted key are decrypted and listed.`,
		Example: `  # Counts and action tables only
  teachcap analyze session.pcap

  # Guess that frame 3 (delete_action) deletes "weld_seam_a"
  teachcap analyze session.pcap --known-plaintext 0x15 3 weld_seam_a

  # Name the field explicitly and emit JSON
  teachcap analyze session.pcap --known-plaintext 0x16/new_name 7 pick_tray --format json`,
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
			return runAnalyze(cmd.OutOrStdout(), g, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.commands, "command", nil, "Only report these command IDs (hex, decimal or name)")
	cmd.Flags().Var(&flags.hypotheses, "known-plaintext", "Hypothesis <cmd> <frame> <text>; may repeat")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Treat the input as a raw byte dump")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text, json, csv")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the report to a file")

	return cmd
}

func runAnalyze(stdout io.Writer, g *globalFlags, flags *analyzeFlags) error {
	e, err := loadEnv(g)
	if err != nil {
		return err
	}
	defer e.close()

	format, err := e.format(flags.format)
	if err != nil {
		return err
	}
	cmds, err := parseCommands(flags.commands, e.catalog)
	if err != nil {
		return err
	}

	corpus, err := e.loadCorpus(flags.input, flags.raw)
	if err != nil {
		return err
	}
	if len(corpus.Frames) == 0 {
		return fmt.Errorf("no Teaching Protocol frames found in %s (%d candidates rejected)", flags.input, corpus.Stats.Rejected())
	}

	hypotheses, err := flags.hypotheses.resolve(e.catalog)
	if err != nil {
		return err
	}
	configured, err := e.cfg.HypothesisList(e.catalog)
	if err != nil {
		return err
	}
	hypotheses = append(hypotheses, configured...)
	results, err := tryHypotheses(e.engine(), corpus.Frames, hypotheses)
	if err != nil {
		return err
	}

	analysis := buildAnalysis(corpus, e.catalog, results)
	if keyFn, ok := commandKeys(results); ok {
		analysis.Records = e.decryptor().Run(corpus.Frames, batch.Options{
			KeyFunc:  keyFn,
			Commands: cmds,
			Search:   e.cfg.Output.Search,
		})
	}
	analysis.KeepCommands(cmds)

	w, closeOut, err := openOutput(flags.output, stdout)
	if err != nil {
		return err
	}
	if err := writeAnalysis(w, format, analysis); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func buildAnalysis(corpus capture.Corpus, c *catalog.Catalog, results []keystream.Result) report.Analysis {
	a := report.NewAnalysis(version, report.NewScanSummary(corpus.Source, corpus.Stats, corpus.Frames, c))
	a.ActionLists = report.ActionLists(corpus.Frames, payload.NewDecoder(c))
	for _, r := range results {
		a.Recoveries = append(a.Recoveries, report.NewRecovery(r, c))
	}
	return a
}

// tryHypotheses runs each hypothesis in order. A malformed request stops the
// run; a failed recovery does not.
func tryHypotheses(eng *keystream.Engine, frames []frame.Frame, hs []keystream.Hypothesis) ([]keystream.Result, error) {
	results := make([]keystream.Result, 0, len(hs))
	for _, h := range hs {
		r, err := eng.Try(frames, h)
		if err != nil {
			return nil, errors.WrapHypothesisError(err, h.String())
		}
		results = append(results, r)
	}
	return results, nil
}

// commandKeys maps each command to the first key accepted for it.
func commandKeys(results []keystream.Result) (batch.KeyFunc, bool) {
	keys := make(map[uint8][]byte)
	for _, r := range results {
		if !r.Accepted() {
			continue
		}
		if _, ok := keys[r.Hypothesis.CommandID]; !ok {
			keys[r.Hypothesis.CommandID] = r.Best.Key
		}
	}
	return func(_ int, f frame.Frame) ([]byte, bool) {
		k, ok := keys[f.CommandID]
		return k, ok
	}, len(keys) > 0
}

func writeAnalysis(w io.Writer, format string, a report.Analysis) error {
	switch format {
	case config.FormatJSON:
		return report.WriteJSON(w, a)
	case config.FormatCSV:
		return report.WriteRecordsCSV(w, a.Records)
	}
	report.WriteScanSummary(w, a.Scan)
	report.WriteActionTable(w, a.ActionLists)
	report.WriteRecovery(w, a.Recoveries)
	if len(a.Records) > 0 {
		fmt.Fprintln(w)
		report.WriteRecords(w, a.Records)
	}
	return nil
}
