// Package discord renders resolved library events as Discord embeds and
// posts them to a webhook.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

var (
	ErrWebhookMissing = errors.New("discord webhook URL not configured")
	ErrSendFailed     = errors.New("discord delivery failed")
	errRateLimited    = errors.New("discord rate limited")
)

const (
	defaultRetryAfter = 5 * time.Second
	backoffStep       = 2 * time.Second
)

// Notifier sends notifications to Discord via webhook
type Notifier struct {
	webhookURL  string
	timeout     time.Duration
	maxAttempts int
	options     Options
	httpClient  *http.Client
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a new Discord notifier
func New(cfg config.DiscordConfig, plex config.PlexConfig, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Notifier{
		webhookURL:  cfg.WebhookURL,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		options: Options{
			Style:        cfg.Style,
			PlexBaseURL:  plex.BaseURL,
			PlexServerID: plex.ServerID,
		},
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "discord").Logger(),
		sleep:      sleepContext,
	}
}

// Notify builds the embed for a resolved event and posts it.
func (n *Notifier) Notify(ctx context.Context, ev media.Event, res *metadata.Resolved) error {
	embed := BuildEmbed(ev, res, n.options)
	return n.Send(ctx, WebhookPayload{Embeds: []Embed{embed}})
}

// Test posts a short message to verify the webhook.
func (n *Notifier) Test(ctx context.Context) error {
	return n.Send(ctx, WebhookPayload{
		Embeds: []Embed{{
			Title:       "plexnote Test Notification",
			Description: "Webhook erreichbar.",
			Color:       ColorSeason,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// Send posts the payload, retrying up to the configured number of attempts.
// A 429 waits for Retry-After; other failures back off linearly.
func (n *Notifier) Send(ctx context.Context, payload WebhookPayload) error {
	if n.webhookURL == "" {
		return ErrWebhookMissing
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		wait, err := n.post(ctx, body)
		if err == nil {
			n.logger.Debug().Int("attempt", attempt).Msg("Notification sent")
			return nil
		}
		lastErr = err
		if attempt == n.maxAttempts {
			break
		}

		if !errors.Is(err, errRateLimited) {
			wait = time.Duration(attempt) * backoffStep
		}
		n.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", wait).Msg("Discord send failed, retrying")
		if err := n.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrSendFailed, n.maxAttempts, lastErr)
}

// post makes one bounded request. On 429 it returns the server's requested
// delay with errRateLimited.
func (n *Notifier) post(ctx context.Context, body []byte) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode == http.StatusTooManyRequests {
		return retryAfter(resp.Header.Get("Retry-After")), errRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("discord returned status %d", resp.StatusCode)
	}
	return 0, nil
}

// retryAfter parses a Retry-After value in (possibly fractional) seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
