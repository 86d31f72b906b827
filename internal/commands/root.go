package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/buildinfo"
	"github.com/fluxo-dev/fluxo/internal/model"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	dir    string
	tenant string
	scope  []int
	now    func() time.Time
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{now: time.Now})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fluxo",
		Short:   "Cash flow books for small businesses",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.dir, "dir", "C", ".", "workspace directory")
	flags.StringVarP(&opts.tenant, "tenant", "t", "default", "tenant workspace")
	flags.IntSliceVar(&opts.scope, "scope", nil, "restrict reads to these account IDs")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newAccountCommand(opts),
		newLedgerCommand(opts),
		newObligationCommand(opts, model.Payable),
		newObligationCommand(opts, model.Receivable),
		newProjectCommand(opts),
		newSummaryCommand(opts),
		newImportCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}
