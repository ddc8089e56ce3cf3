package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexnote/plexnote/internal/scheduler"
	"github.com/plexnote/plexnote/internal/scheduler/tasks"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll Tautulli for recently added items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp(true)
			if err != nil {
				return err
			}
			defer a.cleanup()

			task := tasks.NewRecentlyAddedTask(a.tautulli, a.service, a.cfg.Watch.Count, a.log)
			if once {
				return task.Run(cmd.Context())
			}

			sched, err := scheduler.New(a.log)
			if err != nil {
				return err
			}
			if err := tasks.RegisterRecentlyAddedTask(sched, task, a.cfg.Watch.Cron); err != nil {
				return fmt.Errorf("register poll task: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched.Start()
			a.log.Info().Str("cron", a.cfg.Watch.Cron).Int("count", a.cfg.Watch.Count).Msg("Watching for new items")
			<-runCtx.Done()

			a.log.Info().Msg("Stopping watcher")
			return sched.Stop()
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Poll a single time and exit")
	return cmd
}
