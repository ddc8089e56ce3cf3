// Package tasks holds the scheduled jobs of the watch mode.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/dedup"
	"github.com/plexnote/plexnote/internal/notifier"
	"github.com/plexnote/plexnote/internal/scheduler"
	"github.com/plexnote/plexnote/internal/tautulli"
)

const RecentlyAddedTaskID = "recently-added"

// RecentSource lists the newest library items, newest first.
type RecentSource interface {
	GetRecentlyAdded(ctx context.Context, count int) ([]tautulli.RecentlyAddedItem, error)
}

// Processor handles one rating key.
type Processor interface {
	Process(ctx context.Context, ratingKey string) (notifier.Outcome, error)
}

// RecentlyAddedTask announces items Tautulli lists as recently added.
type RecentlyAddedTask struct {
	source    RecentSource
	processor Processor
	count     int
	logger    zerolog.Logger
}

// NewRecentlyAddedTask creates a new recently-added poll task
func NewRecentlyAddedTask(source RecentSource, processor Processor, count int, logger zerolog.Logger) *RecentlyAddedTask {
	return &RecentlyAddedTask{
		source:    source,
		processor: processor,
		count:     count,
		logger:    logger.With().Str("task", RecentlyAddedTaskID).Logger(),
	}
}

// Run processes the recently added items oldest first so announcements keep
// library order. Dedup turns already announced items into no-ops. A store
// lock timeout aborts the run; other per-item failures are logged.
func (t *RecentlyAddedTask) Run(ctx context.Context) error {
	items, err := t.source.GetRecentlyAdded(ctx, t.count)
	if err != nil {
		return fmt.Errorf("failed to list recently added items: %w", err)
	}

	counts := map[notifier.Outcome]int{}
	for i := len(items) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := items[i]
		if item.RatingKey == "" {
			continue
		}

		outcome, err := t.processor.Process(ctx, item.RatingKey)
		counts[outcome]++
		if err != nil {
			if errors.Is(err, dedup.ErrLockTimeout) {
				return err
			}
			t.logger.Warn().Err(err).Str("ratingKey", item.RatingKey).Str("title", item.Title).Msg("Item not announced")
		}
	}

	t.logger.Info().
		Int("items", len(items)).
		Int("sent", counts[notifier.OutcomeSent]).
		Int("duplicates", counts[notifier.OutcomeDuplicate]).
		Int("failed", counts[notifier.OutcomeFailed]).
		Msg("Recently added poll finished")
	return nil
}

// RegisterRecentlyAddedTask registers the poll on the scheduler.
func RegisterRecentlyAddedTask(sched *scheduler.Scheduler, task *RecentlyAddedTask, cron string) error {
	return sched.RegisterTask(&scheduler.TaskConfig{
		ID:          RecentlyAddedTaskID,
		Name:        "Recently Added",
		Description: "Announces items Tautulli reports as recently added",
		Cron:        cron,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
