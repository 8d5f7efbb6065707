package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonylturner/teachcap/internal/config"
)

type configInitFlags struct {
	path  string
	force bool
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	flags := &configInitFlags{}

	cmd := &cobra.Command{
		Use:     "init <path>",
		Short:   "Write a default configuration file",
		Example: `  teachcap config init teachcap.yaml`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) == 1 {
				flags.path = args[0]
			}
			if flags.path == "" {
				return missingArgError(cmd, "<path>")
			}
			if err := runConfigInit(flags); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", flags.path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing file")
	return cmd
}

func runConfigInit(flags *configInitFlags) error {
	if !flags.force {
		if _, err := os.Stat(flags.path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", flags.path)
		}
	}
	return config.WriteDefaultConfig(flags.path)
}
