// Package notifier drives a library event from its rating key through
// deduplication, metadata resolution and delivery.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/dedup"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

var (
	ErrEventUnavailable = errors.New("library event unavailable")
	ErrDelivery         = errors.New("notification not delivered")
)

// Outcome is the result of processing one rating key.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// EventSource turns a rating key into an event.
type EventSource interface {
	BuildEvent(ctx context.Context, ratingKey string) (media.Event, error)
}

// Resolver enriches an event with catalog metadata. It never fails.
type Resolver interface {
	Resolve(ctx context.Context, ev media.Event) *metadata.Resolved
}

// Sender delivers a resolved event.
type Sender interface {
	Notify(ctx context.Context, ev media.Event, res *metadata.Resolved) error
}

// Store is the persisted set of announced keys.
type Store interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string) error
	SetStatus(ctx context.Context, key string, status dedup.Status) error
}

// Service orchestrates notification of new library items.
type Service struct {
	source   EventSource
	resolver Resolver
	sender   Sender
	store    Store
	logger   zerolog.Logger
}

// NewService creates a new notification service
func NewService(source EventSource, resolver Resolver, sender Sender, store Store, logger zerolog.Logger) *Service {
	return &Service{
		source:   source,
		resolver: resolver,
		sender:   sender,
		store:    store,
		logger:   logger.With().Str("component", "notifier").Logger(),
	}
}

// ShouldNotify reserves the event's dedup key. It returns false when the
// event was announced before. A store that could not be locked returns the
// lock error.
func (s *Service) ShouldNotify(ctx context.Context, ev media.Event) (bool, error) {
	key := dedup.Key(ev)
	added, err := s.store.Reserve(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check dedup store: %w", err)
	}
	if !added {
		s.logger.Info().Str("ratingKey", ev.RatingKey).Str("key", key).Msg("Already announced, skipping")
	}
	return added, nil
}

// ResolveAndRecord resolves metadata for the event and marks its key as
// recorded.
func (s *Service) ResolveAndRecord(ctx context.Context, ev media.Event) (*metadata.Resolved, error) {
	res := s.resolver.Resolve(ctx, ev)
	if err := s.store.Record(ctx, dedup.Key(ev)); err != nil {
		return res, fmt.Errorf("failed to record dedup key: %w", err)
	}
	return res, nil
}

// Process runs the full flow for one rating key: fetch, dedup, resolve,
// send and status update. A failed delivery keeps the key so the item is
// not announced again later.
func (s *Service) Process(ctx context.Context, ratingKey string) (Outcome, error) {
	log := s.logger.With().Str("ratingKey", ratingKey).Logger()

	ev, err := s.source.BuildEvent(ctx, ratingKey)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrEventUnavailable, err)
	}

	ok, err := s.ShouldNotify(ctx, ev)
	if err != nil {
		return OutcomeFailed, err
	}
	if !ok {
		return OutcomeDuplicate, nil
	}

	res, err := s.ResolveAndRecord(ctx, ev)
	if err != nil {
		return OutcomeFailed, err
	}

	key := dedup.Key(ev)
	if sendErr := s.sender.Notify(ctx, ev, res); sendErr != nil {
		log.Error().Err(sendErr).Str("title", res.Title.Value).Msg("Notification failed")
		if err := s.store.SetStatus(ctx, key, dedup.StatusFailed); err != nil {
			log.Warn().Err(err).Msg("Failed to update dedup status")
		}
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrDelivery, sendErr)
	}

	if err := s.store.SetStatus(ctx, key, dedup.StatusSent); err != nil {
		log.Warn().Err(err).Msg("Failed to update dedup status")
	}
	log.Info().
		Str("kind", string(ev.Kind)).
		Str("title", res.Title.Value).
		Str("imageSource", string(res.Image.Source)).
		Msg("Notification sent")
	return OutcomeSent, nil
}
