package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/sight/internal/presentation/markdown"
	"github.com/aretw0/sight/internal/presentation/tui"
)

var describeCmd = &cobra.Command{
	Use:   "describe <config-id>",
	Short: "Summarize a configuration",
	Long: `Prints the objects, services, bindings, channels and directives of a configuration as
Markdown, rendered for the terminal when stdout is one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		launcher, closeLauncher, err := newLauncher(cmd, launchSetup{})
		if err != nil {
			return err
		}
		defer closeLauncher()

		cfg, err := launcher.Load(args[0])
		if err != nil {
			return err
		}
		md := markdown.Describe(cfg)
		raw, _ := cmd.Flags().GetBool("raw")
		out := cmd.OutOrStdout()
		if !raw && tui.IsTerminal(out) {
			if md, err = tui.NewRenderer(100)(md); err != nil {
				return fmt.Errorf("render: %w", err)
			}
		}
		fmt.Fprint(out, md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().Bool("raw", false, "Print the Markdown source even on a terminal")
}
