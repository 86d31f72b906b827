package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/accounts"
	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/config"
	"github.com/fluxo-dev/fluxo/internal/gitops"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var name string
	var businessType string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a workspace, or add a tenant to an existing one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.dir
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, opts, absDir, name, businessType)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&businessType, "type", "company", "business type: company or individual")

	return cmd
}

func runInit(cmd *cobra.Command, opts *globalOptions, dir, name, businessType string) error {
	ctx := cmd.Context()
	if businessType != "company" && businessType != "individual" {
		return fmt.Errorf("unknown business type %q (want company or individual)", businessType)
	}

	if _, err := tenant.New(opts.tenant); err != nil {
		return err
	}

	tenantDir := filestore.TenantDir(dir, opts.tenant)
	for _, d := range []string{
		filepath.Join(tenantDir, "import", "processed"),
		filepath.Join(tenantDir, "logs"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write fluxo.yaml unless this is an existing workspace.
	cfgPath := filepath.Join(dir, config.FileName)
	fresh := false
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		cfg := config.Default(name, businessType)
		if err := config.Save(cfgPath, cfg); err != nil {
			return err
		}
		gitignore := ".env\n*.log\n"
		if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
			return fmt.Errorf("writing .gitignore: %w", err)
		}
		fresh = true
	} else if err != nil {
		return fmt.Errorf("checking config: %w", err)
	}

	local := *opts
	local.dir = dir
	return withApp(ctx, &local, func(a *app) error {
		existing, err := a.accounts.All(ctx, a.scope)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("tenant %q is already initialized", a.scope.TenantID)
		}
		if !fresh && !cmd.Flags().Changed("type") {
			businessType = a.cfg.Business.Type
		}
		if err := a.accounts.Seed(ctx, a.scope, accounts.DefaultAccounts(businessType)); err != nil {
			return fmt.Errorf("seeding accounts: %w", err)
		}

		if a.cfg.Git.AutoCommit && !gitops.IsRepo(dir) {
			if err := gitops.Init(ctx, dir); err != nil {
				return fmt.Errorf("git init: %w", err)
			}
		}
		a.record(ctx, auditlog.ActionInit, "Initialize "+name, a.scope.TenantID)

		if fresh {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized fluxo workspace at %s (tenant %s)\n", dir, a.scope.TenantID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Added tenant %s to %s\n", a.scope.TenantID, dir)
		}
		return nil
	})
}
