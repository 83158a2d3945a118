package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/sight"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sight",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sight version %s\n", strings.TrimSpace(sight.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
