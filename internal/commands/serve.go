package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/httpapi"
	"github.com/fluxo-dev/fluxo/internal/logger"
	"github.com/fluxo-dev/fluxo/internal/projection"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve balances, projections and settlements over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				window, err := projection.ParseWindow(a.cfg.Projection.DefaultWindow)
				if err != nil {
					return err
				}
				log := logger.WithComponent(a.log, "http")

				api := httpapi.New(httpapi.Deps{
					Ledger:        a.ledger,
					Balances:      a.balances,
					Obligations:   a.obligations,
					Projection:    a.projection,
					Log:           log,
					DefaultWindow: window,
					Audit: func(tenantID string, e auditlog.Entry) {
						if err := auditlog.Append(filestore.TenantDir(a.dir, tenantID), e); err != nil {
							log.Warn().Err(err).Str("tenant", tenantID).Msg("writing audit log failed")
						}
					},
					Now: a.now,
				})

				srv := &http.Server{
					Addr:         addr,
					Handler:      api.Router(),
					ReadTimeout:  a.cfg.Server.ReadTimeout,
					WriteTimeout: a.cfg.Server.WriteTimeout,
				}

				errCh := make(chan error, 1)
				go func() {
					log.Info().Str("addr", addr).Msg("listening")
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return fmt.Errorf("serving: %w", err)
				case <-ctx.Done():
				}

				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from fluxo.yaml)")
	return cmd
}
