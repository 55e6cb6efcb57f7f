// Package cmd defines and implements the CLI commands of the harvester.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/archive-harvester/internal/app"
	"github.com/JakeFAU/archive-harvester/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Resumable harvester for the Archivo del Libertador",
		Long: `harvester walks the archive's numeric document ids in small rounds,
extracts the labeled fields of every document, and persists the records
before advancing its cursor, so an interrupted job resumes where it left off.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the App after flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml, or json)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newRoundCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newExportCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command with ctx and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
