package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRoundCmd creates the 'round' subcommand, which runs exactly one round.
func newRoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "round",
		Short: "Run exactly one round",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctrl, err := appInstance.Controller(cmd.Context())
			if err != nil {
				return err
			}
			report, err := ctrl.RunRound(cmd.Context())
			if err != nil {
				return fmt.Errorf("round %s failed in %s: %w", report.RoundID, report.Phase, err)
			}

			out := cmd.OutOrStdout()
			if len(report.Planned) == 0 {
				fmt.Fprintln(out, "nothing to do: job complete")
				return nil
			}
			fmt.Fprintf(out, "round %s: ids %d..%d (succeeded %d, failed %d)\n",
				report.RoundID, report.Planned[0], report.Planned[len(report.Planned)-1],
				report.Succeeded, report.Failed)
			fmt.Fprintf(out, "cursor: last_id=%d total_collected=%d round_count=%d\n",
				report.State.LastID, report.State.TotalCollected, report.State.RoundCount)
			fmt.Fprintf(out, "complete: %t\n", report.Done)
			return nil
		},
	}
}
