package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/plan"
)

// newStatusCmd creates the 'status' subcommand.
func newStatusCmd() *cobra.Command {
	var failed bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the cursor and the Output Store counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cfg := appInstance.Config()

			state, err := appInstance.Cursor().Load(ctx)
			started := true
			if errors.Is(err, crawler.ErrStateNotFound) {
				state, started, err = crawler.InitialState(cfg.Crawl.StartID), false, nil
			}
			if err != nil {
				return fmt.Errorf("load crawl state: %w", err)
			}
			records, err := appInstance.Records().List(ctx)
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}
			var failures []crawler.FieldRecord
			for _, rec := range records {
				if rec.Failed() {
					failures = append(failures, rec)
				}
			}

			out := cmd.OutOrStdout()
			if !started {
				fmt.Fprintln(out, "no crawl state saved yet")
			}
			fmt.Fprintf(out, "last_id: %d\n", state.LastID)
			fmt.Fprintf(out, "total_collected: %d\n", state.TotalCollected)
			fmt.Fprintf(out, "round_count: %d\n", state.RoundCount)
			fmt.Fprintf(out, "records: %d (failed: %d)\n", len(records), len(failures))
			fmt.Fprintf(out, "complete: %t\n", plan.Complete(state, plan.Config{
				BatchSize:  cfg.Crawl.BatchSize,
				TotalItems: cfg.Crawl.TotalItems,
				StartID:    cfg.Crawl.StartID,
			}))
			if failed {
				for _, rec := range failures {
					fmt.Fprintf(out, "failed %d %s: %s\n", rec.ID, rec.URL, *rec.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "list the ids whose fetch failed")
	return cmd
}
