package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexnote/plexnote/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive Tautulli webhooks over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp(true)
			if err != nil {
				return err
			}
			defer a.cleanup()

			if address == "" {
				address = a.cfg.Server.Address()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.service, a.log)
			errCh := make(chan error, 1)
			go func() {
				a.log.Info().Str("address", address).Msg("Webhook server listening")
				errCh <- srv.Start(address)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-runCtx.Done():
			}

			a.log.Info().Msg("Shutting down webhook server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return <-errCh
		},
	}

	cmd.Flags().StringVar(&address, "listen", "", "Listen address (defaults to server.host:server.port)")
	return cmd
}
