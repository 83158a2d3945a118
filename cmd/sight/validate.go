package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/sight/internal/presentation/tui"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config-id...]",
	Short: "Check configurations for consistency",
	Long: `Parses the given configurations (all of them when none is given) and reports unknown
entries, missing template fields and references to undeclared objects or services.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		launcher, closeLauncher, err := newLauncher(cmd, launchSetup{})
		if err != nil {
			return err
		}
		defer closeLauncher()

		ids := args
		if len(ids) == 0 {
			if ids, err = launcher.Loader().ListConfigs(); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		st := tui.NewStyler(out)
		failed := 0
		for _, id := range ids {
			cfg, err := launcher.Load(id)
			if err != nil {
				failed++
				fmt.Fprintln(out, st.Fail(fmt.Sprintf("%s: %v", id, err)))
				continue
			}
			fmt.Fprintln(out, st.OK(fmt.Sprintf("%s (%d services)", id, len(cfg.Services()))))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d configurations are invalid", failed, len(ids))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
