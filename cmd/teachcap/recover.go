package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonylturner/teachcap/internal/config"
	"github.com/tonylturner/teachcap/internal/keystream"
	"github.com/tonylturner/teachcap/internal/report"
	"github.com/tonylturner/teachcap/internal/ui"
)

type recoverFlags struct {
	input       string
	command     string
	frame       int
	field       string
	text        string
	raw         bool
	interactive bool
	copyKey     bool
	format      string
}

func newRecoverCmd(g *globalFlags) *cobra.Command {
	flags := &recoverFlags{}

	cmd := &cobra.Command{
		Use:   "recover <capture>",
		Short: "Recover the keystream from a known-plaintext guess",
		Long: `Derive a candidate keystream from one frame whose plaintext you can guess,
then validate it across every frame of the same command.

Without --text the hypotheses listed in the config file are tried.
--interactive prompts for the hypothesis instead.`,
		Example: `  teachcap recover session.pcap --command 0x15 --frame 3 --text weld_seam_a
  teachcap recover session.pcap --command rename_action --frame 7 --field new_name --text pick_tray --copy-key
  teachcap recover session.pcap --interactive`,
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
			if flags.text != "" && !flags.interactive {
				if flags.command == "" {
					return missingFlagError(cmd, "--command")
				}
				if flags.frame < 0 {
					return missingFlagError(cmd, "--frame")
				}
			}
			return runRecover(cmd.OutOrStdout(), g, flags)
		},
	}

	cmd.Flags().StringVar(&flags.command, "command", "", "Command ID of the seed frame (hex, decimal or name)")
	cmd.Flags().IntVar(&flags.frame, "frame", -1, "Index of the seed frame (see 'teachcap scan')")
	cmd.Flags().StringVar(&flags.field, "field", "", "Encrypted field to seed from (default: try every field)")
	cmd.Flags().StringVar(&flags.text, "text", "", "Guessed plaintext of the field")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Treat the input as a raw byte dump")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Prompt for the hypothesis")
	cmd.Flags().BoolVar(&flags.copyKey, "copy-key", false, "Copy the accepted key hex to the clipboard")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text, json")

	return cmd
}

func runRecover(w io.Writer, g *globalFlags, flags *recoverFlags) error {
	e, err := loadEnv(g)
	if err != nil {
		return err
	}
	defer e.close()

	format, err := e.format(flags.format)
	if err != nil {
		return err
	}
	corpus, err := e.loadCorpus(flags.input, flags.raw)
	if err != nil {
		return err
	}
	if len(corpus.Frames) == 0 {
		return fmt.Errorf("no Teaching Protocol frames found in %s", flags.input)
	}

	var hypotheses []keystream.Hypothesis
	switch {
	case flags.interactive:
		h, err := ui.PromptHypothesis(corpus.Frames, e.catalog)
		if err != nil {
			return err
		}
		hypotheses = append(hypotheses, h)
	case flags.text != "":
		cmdID, err := config.ParseCommandID(flags.command, e.catalog)
		if err != nil {
			return err
		}
		hypotheses = append(hypotheses, keystream.Hypothesis{
			CommandID:  cmdID,
			FrameIndex: flags.frame,
			Field:      flags.field,
			Plaintext:  flags.text,
		})
	default:
		hypotheses, err = e.cfg.HypothesisList(e.catalog)
		if err != nil {
			return err
		}
	}
	if len(hypotheses) == 0 {
		return fmt.Errorf("no hypotheses: pass --command, --frame and --text, use --interactive, or list hypotheses in the config file")
	}

	results, err := tryHypotheses(e.engine(), corpus.Frames, hypotheses)
	if err != nil {
		return err
	}
	recs := make([]report.Recovery, 0, len(results))
	for _, r := range results {
		recs = append(recs, report.NewRecovery(r, e.catalog))
	}

	switch format {
	case config.FormatJSON:
		if err := report.WriteJSON(w, recs); err != nil {
			return err
		}
	case config.FormatCSV:
		return fmt.Errorf("recover does not support csv output")
	default:
		report.WriteRecovery(w, recs)
	}

	var firstErr error
	for _, r := range results {
		if !r.Accepted() {
			if firstErr == nil {
				firstErr = r.Err()
			}
			continue
		}
		if flags.copyKey {
			if err := ui.CopyToClipboard(r.Best.KeyHex()); err != nil {
				e.logger.Error("%v", err)
			} else {
				e.logger.Info("key %s copied to clipboard", r.Best.KeyHex())
			}
		}
		return nil
	}
	return fmt.Errorf("no hypothesis produced an accepted key: %w", firstErr)
}
