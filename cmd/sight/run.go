package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <config-id>",
	Short: "Run a configuration until interrupted",
	Long:  `Launches the configuration, then stops and destroys it on SIGINT or SIGTERM.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		launcher, closeLauncher, err := newLauncher(cmd, launchSetup{})
		if err != nil {
			return err
		}
		defer closeLauncher()

		m, err := launcher.Launch(args[0])
		if err != nil {
			return err
		}
		defer m.StopAndDestroy()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		cmd.PrintErrln("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
