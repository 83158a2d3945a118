package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/sight/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <config-id>",
	Short: "Export the configuration graph visualization",
	Long:  `Parses the configuration and outputs a Mermaid diagram of its objects, services, bindings and channels.`,
	Args:  cobra.ExactArgs(1),
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
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(cfg, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
