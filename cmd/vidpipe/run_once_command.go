package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidpipe/internal/daemonrun"
	"vidpipe/internal/pipeline"
)

// Exit codes let an external scheduler distinguish "sheet down, try again
// later" from a genuine job failure.
const (
	exitCodeFailure          = 1
	exitCodeStoreUnavailable = 2
)

func newRunOnceCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var logFormat string

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run one orchestrator cycle and exit",
		Long: "Run one full orchestrator cycle in this process and exit. " +
			"Exit code 0 means a job completed or nothing was waiting, " +
			"2 means the sheet was unreachable, and 1 means the cycle failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			result, runErr := daemonrun.RunOnce(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:  logLevel,
				LogFormat: logFormat,
			})
			if runErr != nil && result.Outcome == "" {
				return runErr
			}

			out := cmd.OutOrStdout()
			switch result.Outcome {
			case pipeline.OutcomeCompleted:
				fmt.Fprintf(out, "Completed row %d in %.1fs\n", result.JobRow, result.Duration.Seconds())
				if result.ResultURL != "" {
					fmt.Fprintf(out, "Result: %s\n", result.ResultURL)
				}
				return nil
			case pipeline.OutcomeNothingToDo:
				fmt.Fprintln(out, "Nothing to do")
				return nil
			case pipeline.OutcomeStoreUnavailable:
				return &exitCodeError{
					code: exitCodeStoreUnavailable,
					msg:  fmt.Sprintf("sheet unavailable: %s", result.ErrorMessage),
				}
			case pipeline.OutcomeBusy:
				msg := strings.TrimSpace(result.ErrorMessage)
				if msg == "" {
					msg = "another cycle is already running"
				}
				return &exitCodeError{code: exitCodeFailure, msg: msg}
			case pipeline.OutcomeFailed:
				return &exitCodeError{
					code: exitCodeFailure,
					msg:  fmt.Sprintf("row %d failed: %s", result.JobRow, result.ErrorMessage),
				}
			case pipeline.OutcomeAborted:
				return &exitCodeError{
					code: exitCodeFailure,
					msg:  fmt.Sprintf("cycle aborted: %s", result.ErrorMessage),
				}
			default:
				return &exitCodeError{
					code: exitCodeFailure,
					msg:  fmt.Sprintf("unexpected cycle outcome %q", result.Outcome),
				}
			}
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Override the configured log format (console or json)")
	return cmd
}
