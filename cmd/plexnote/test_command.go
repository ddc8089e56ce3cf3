package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexnote/plexnote/internal/metadata/tmdb"
)

func newTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the Tautulli, TMDB and Discord connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp(false)
			if err != nil {
				return err
			}
			defer a.cleanup()

			out := cmd.OutOrStdout()
			if err := a.tautulli.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("tautulli: %w", err)
			}
			fmt.Fprintln(out, "Tautulli reachable")

			if client := tmdb.NewClient(a.cfg.TMDB, a.log); client.IsConfigured() {
				if err := client.Test(cmd.Context()); err != nil {
					fmt.Fprintf(out, "TMDB check failed: %v\n", err)
				} else {
					fmt.Fprintln(out, "TMDB reachable")
				}
			}

			if err := a.sender.Test(cmd.Context()); err != nil {
				return fmt.Errorf("discord: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
