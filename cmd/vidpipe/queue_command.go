package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the sheet queue and recent cycle history",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.fetchQueueList(cmd.Context(), history)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if list.QueueError != "" {
				fmt.Fprintln(out, renderStatusLine("Sheet", statusWarn, list.QueueError, colorize))
			}
			if len(list.Rows) == 0 {
				if list.QueueError == "" {
					fmt.Fprintln(out, "Queue is empty")
				}
			} else {
				table := renderTable(
					[]string{"Row", "Status", "Scheduled", "Title", "Chars", "Cost", "Result", "Error"},
					buildQueueRows(list.Rows),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
			}

			if history > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Recent Cycles", colorize) {
					fmt.Fprintln(out, line)
				}
				if len(list.History) == 0 {
					fmt.Fprintln(out, "No recorded cycles")
					return nil
				}
				table := renderTable(
					[]string{"Finished", "Outcome", "Row", "Result", "Error"},
					buildHistoryRows(list.History),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "Include the most recent N orchestrator cycles")
	return cmd
}
