package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonylturner/teachcap/internal/config"
	"github.com/tonylturner/teachcap/internal/report"
)

type scanFlags struct {
	input   string
	payload bool
	raw     bool
	format  string
}

func newScanCmd(g *globalFlags) *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan <capture>",
		Short: "List the frames found in a capture",
		Long: `List every structurally valid Teaching Protocol frame with its index,
offset, sequence number, command and payload length. The index is the one
--frame and --known-plaintext refer to.`,
		Example: `  teachcap scan session.pcap
  teachcap scan dump.bin --raw --payload`,
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
			return runScan(cmd.OutOrStdout(), g, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.payload, "payload", false, "Hex dump every payload")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Treat the input as a raw byte dump")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: text, json")

	return cmd
}

func runScan(w io.Writer, g *globalFlags, flags *scanFlags) error {
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

	summary := report.NewScanSummary(corpus.Source, corpus.Stats, corpus.Frames, e.catalog)
	switch format {
	case config.FormatJSON:
		return report.WriteJSON(w, summary)
	case config.FormatCSV:
		return fmt.Errorf("scan does not support csv output")
	}
	report.WriteScanSummary(w, summary)
	if len(corpus.Frames) > 0 {
		fmt.Fprintln(w)
		report.WriteFrameList(w, corpus.Frames, e.catalog, flags.payload)
	}
	return nil
}
