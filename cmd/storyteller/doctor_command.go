package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyteller/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the story service and local directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(out, line)
			}

			failed := 0
			for _, result := range preflight.RunAll(cmd.Context(), cfg, ctx.loggerValue()) {
				kind := toneOK
				if !result.Passed {
					kind = toneError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d readiness check(s) failed", failed)
			}
			return nil
		},
	}
}
