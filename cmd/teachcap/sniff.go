package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonylturner/teachcap/internal/batch"
	"github.com/tonylturner/teachcap/internal/capture"
	"github.com/tonylturner/teachcap/internal/capture/live"
	"github.com/tonylturner/teachcap/internal/errors"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/report"
)

type sniffFlags struct {
	iface  string
	filter string
	key    string
	search string
}

func newSniffCmd(g *globalFlags) *cobra.Command {
	flags := &sniffFlags{}

	cmd := &cobra.Command{
		Use:   "sniff",
		Short: "Decode frames live from a network interface",
		Long: `Capture UDP traffic on an interface, scan every datagram for Teaching
Protocol frames and print them as they arrive. With --key the encrypted
fields are decrypted on the fly. Stop with Ctrl-C.

Requires libpcap and usually root or CAP_NET_RAW.`,
		Example: `  sudo teachcap sniff --iface eth0
  sudo teachcap sniff --iface eth0 --filter "udp port 6000" --key 5a1c...e3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.iface == "" {
				return missingFlagError(cmd, "--iface")
			}
			return runSniff(cmd.OutOrStdout(), g, flags)
		},
	}

	cmd.Flags().StringVar(&flags.iface, "iface", "", "Interface to capture on (required)")
	cmd.Flags().StringVar(&flags.filter, "filter", live.DefaultFilter, "BPF filter")
	cmd.Flags().StringVar(&flags.key, "key", "", "Keystream as hex")
	cmd.Flags().StringVar(&flags.search, "search", "", "Highlight records whose fields contain this text")

	return cmd
}

func runSniff(w io.Writer, g *globalFlags, flags *sniffFlags) error {
	e, err := loadEnv(g)
	if err != nil {
		return err
	}
	defer e.close()

	var key []byte
	if flags.key != "" {
		if key, err = parseKey(flags.key); err != nil {
			return err
		}
	}
	search := flags.search
	if search == "" {
		search = e.cfg.Output.Search
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &livePrinter{w: w, decryptor: e.decryptor(), opts: batch.Options{Key: key, Search: search}}
	err = live.Sniff(ctx, live.Options{
		Iface:      flags.iface,
		Filter:     flags.filter,
		Ports:      e.cfg.Scan.UDPPorts,
		MaxPayload: e.cfg.Scan.MaxPayload,
		Logger:     e.logger,
	}, p.handle)
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return errors.WrapSniffError(err, flags.iface)
	}
	return nil
}

// livePrinter numbers frames across datagrams the way a capture corpus does.
type livePrinter struct {
	w         io.Writer
	decryptor *batch.Decryptor
	opts      batch.Options
	next      int
}

func (p *livePrinter) handle(dg capture.Datagram, frames []frame.Frame) {
	records := p.decryptor.Run(frames, p.opts)
	for i := range records {
		records[i].FrameIndex += p.next
	}
	p.next += len(frames)

	fmt.Fprintf(p.w, "%s\n", dg)
	report.WriteRecords(p.w, records)
}
