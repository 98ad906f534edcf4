package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidpipe/internal/daemonctl"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries, credentials, and workspace space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			statuses := daemonctl.ResolveDependencies(cfg)
			for _, line := range dependencyLines(statuses, colorize) {
				fmt.Fprintln(out, line)
			}

			for _, dep := range statuses {
				if !dep.Available && !dep.Optional {
					return &exitCodeError{code: exitCodeFailure, msg: ""}
				}
			}
			return nil
		},
	}
}
