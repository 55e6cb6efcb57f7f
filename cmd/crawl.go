package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/api"
	"github.com/JakeFAU/archive-harvester/internal/driver"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs rounds until the
// target is reached.
func newCrawlCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run rounds until the configured number of items is collected",
		Long: `Resumes from the persisted cursor and runs rounds, pausing between
them, until the job is complete. A failed round stops the crawl without
advancing the cursor; rerunning the command retries it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address of the status HTTP server (overrides server.listen)")
	return cmd
}

func runCrawl(cmd *cobra.Command, listen string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	if listen == "" {
		listen = appInstance.Config().Server.Listen
	}

	ctrl, err := appInstance.Controller(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	serverDone := make(chan error, 1)
	if listen != "" {
		srv := api.NewServer(ctrl, appInstance.Records(), logger.Named("api"))
		go func() { serverDone <- srv.Serve(ctx, listen) }()
	} else {
		serverDone <- nil
	}

	res, runErr := appInstance.Driver(ctrl).Run(ctx)
	cancel()
	if err := <-serverDone; err != nil {
		logger.Warn("status server failed", zap.Error(err))
	}

	printResult(cmd, res)
	if runErr != nil {
		return fmt.Errorf("crawl: %w", runErr)
	}
	return nil
}

func printResult(cmd *cobra.Command, res driver.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rounds: %d (succeeded %d, failed %d)\n", res.Rounds, res.Succeeded, res.Failed)
	fmt.Fprintf(out, "cursor: last_id=%d total_collected=%d round_count=%d\n",
		res.State.LastID, res.State.TotalCollected, res.State.RoundCount)
	fmt.Fprintf(out, "complete: %t\n", res.Complete)
}
