package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/importer"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var format string
	var accountID int

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import bank statements from the tenant's import/ directory",
		Long: `Reads every CSV in tenants/<tenant>/import/, records each transaction as a
ledger movement on --account and moves the file to import/processed/.
Transactions already imported are skipped. The format is detected from the
header row unless --format names one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			registry := importer.DefaultRegistry()
			if !strings.EqualFold(format, importer.FormatAuto) && registry.Get(format) == nil {
				return fmt.Errorf("unknown format %q (want one of: %s, %s)",
					format, importer.FormatAuto, strings.Join(registry.Formats(), ", "))
			}
			return withApp(ctx, opts, func(a *app) error {
				files, err := importer.Scan(a.tenantDir())
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No files to import")
					return nil
				}
				for _, f := range files {
					parser, err := registry.Resolve(format, f.Path)
					if err != nil {
						return err
					}
					res, err := a.importer.ImportFile(ctx, a.scope, a.tenantDir(), f, parser, accountID)
					if err != nil {
						return err
					}
					a.record(ctx, auditlog.ActionImport,
						fmt.Sprintf("%s: %d imported, %d skipped", f.Name, res.Imported, res.Skipped), f.Name)
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d imported, %d skipped\n", f.Name, res.Imported, res.Skipped)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", importer.FormatAuto,
		"statement format: auto, "+strings.Join(importer.DefaultRegistry().Formats(), ", "))
	cmd.Flags().IntVar(&accountID, "account", 0, "account the statement belongs to (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
