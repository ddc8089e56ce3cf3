package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexnote/plexnote/internal/dedup"
	"github.com/plexnote/plexnote/internal/notifier"
	"github.com/plexnote/plexnote/internal/tautulli"
	"github.com/plexnote/plexnote/internal/testutil"
)

type staticSource struct {
	items []tautulli.RecentlyAddedItem
	err   error
}

func (s staticSource) GetRecentlyAdded(context.Context, int) ([]tautulli.RecentlyAddedItem, error) {
	return s.items, s.err
}

type recordingProcessor struct {
	seen    []string
	results map[string]error
}

func (p *recordingProcessor) Process(_ context.Context, ratingKey string) (notifier.Outcome, error) {
	p.seen = append(p.seen, ratingKey)
	if err := p.results[ratingKey]; err != nil {
		return notifier.OutcomeFailed, err
	}
	return notifier.OutcomeSent, nil
}

func items(keys ...string) []tautulli.RecentlyAddedItem {
	out := make([]tautulli.RecentlyAddedItem, len(keys))
	for i, k := range keys {
		out[i] = tautulli.RecentlyAddedItem{RatingKey: k}
	}
	return out
}

func TestRecentlyAddedTask_ProcessesOldestFirst(t *testing.T) {
	proc := &recordingProcessor{}
	task := NewRecentlyAddedTask(staticSource{items: items("30", "", "20", "10")}, proc, 10, testutil.NewTestLogger(t))

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, []string{"10", "20", "30"}, proc.seen)
}

func TestRecentlyAddedTask_ContinuesAfterItemFailure(t *testing.T) {
	proc := &recordingProcessor{results: map[string]error{"20": errors.New("tautulli timeout")}}
	task := NewRecentlyAddedTask(staticSource{items: items("30", "20", "10")}, proc, 10, testutil.NewTestLogger(t))

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, []string{"10", "20", "30"}, proc.seen)
}

func TestRecentlyAddedTask_AbortsOnLockTimeout(t *testing.T) {
	proc := &recordingProcessor{results: map[string]error{"10": dedup.ErrLockTimeout}}
	task := NewRecentlyAddedTask(staticSource{items: items("20", "10")}, proc, 10, testutil.NewTestLogger(t))

	err := task.Run(context.Background())
	assert.ErrorIs(t, err, dedup.ErrLockTimeout)
	assert.Equal(t, []string{"10"}, proc.seen)
}

func TestRecentlyAddedTask_SourceError(t *testing.T) {
	task := NewRecentlyAddedTask(staticSource{err: tautulli.ErrCircuitOpen}, &recordingProcessor{}, 10, testutil.NewTestLogger(t))

	assert.ErrorIs(t, task.Run(context.Background()), tautulli.ErrCircuitOpen)
}
