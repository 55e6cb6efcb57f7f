package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newExportCmd creates the 'export' subcommand, which writes the Output Store
// as Zotero RDF.
func newExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored records as Zotero RDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = appInstance.Config().Sink.Output
			}
			records, err := appInstance.Records().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}
			n, err := appInstance.Exporter().WriteFile(outPath, records)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d of %d records to %s\n", n, len(records), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (overrides sink.output)")
	return cmd
}
