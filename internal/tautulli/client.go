// Package tautulli reads library items from the Tautulli API v2 and turns
// them into media events.
package tautulli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/plexnote/plexnote/internal/config"
)

var (
	ErrNotFound     = errors.New("tautulli: item not found")
	ErrRateLimited  = errors.New("tautulli: rate limit exceeded")
	ErrCircuitOpen  = errors.New("tautulli: circuit open")
	ErrAPIFailure   = errors.New("tautulli: api error")
	errServerStatus = errors.New("tautulli: server error")
)

// maxErrorBodySize limits how much of an error body is kept for diagnostics.
const maxErrorBodySize = 64 * 1024

// Client is a Tautulli API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger

	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a new Tautulli client.
func NewClient(cfg config.TautulliConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:        cfg.URL,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger.With().Str("component", "tautulli").Logger(),
		maxRetries:     3,
		retryBaseDelay: time.Second,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tautulli",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return c
}

// GetMetadata returns the item with the given rating key.
func (c *Client) GetMetadata(ctx context.Context, ratingKey string) (*Metadata, error) {
	params := url.Values{}
	params.Set("rating_key", ratingKey)

	var resp Response[Metadata]
	if err := c.makeRequest(ctx, "get_metadata", params, &resp); err != nil {
		return nil, err
	}
	if resp.Response.Data.IsEmpty() {
		return nil, fmt.Errorf("%w: rating key %s", ErrNotFound, ratingKey)
	}
	return &resp.Response.Data, nil
}

// GetRecentlyAdded returns the newest library items, newest first.
func (c *Client) GetRecentlyAdded(ctx context.Context, count int) ([]RecentlyAddedItem, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))

	var resp Response[RecentlyAdded]
	if err := c.makeRequest(ctx, "get_recently_added", params, &resp); err != nil {
		return nil, err
	}
	return resp.Response.Data.RecentlyAdded, nil
}

// LatestRatingKey returns the rating key of the most recently added item.
func (c *Client) LatestRatingKey(ctx context.Context) (string, error) {
	items, err := c.GetRecentlyAdded(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(items) == 0 || items[0].RatingKey == "" {
		return "", fmt.Errorf("%w: nothing recently added", ErrNotFound)
	}
	return items[0].RatingKey, nil
}

// Ping verifies connectivity to the Tautulli API.
func (c *Client) Ping(ctx context.Context) error {
	var resp Response[json.RawMessage]
	return c.makeRequest(ctx, "arnold", nil, &resp)
}

// makeRequest runs a command through the circuit breaker, decodes the body
// into result and checks the response envelope.
func (c *Client) makeRequest(ctx context.Context, cmd string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)
	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cmd)
		}
		return fmt.Errorf("failed to make %s request: %w", cmd, err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}

	var envelope Response[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Response.Result != "success" {
		msg := "unknown error"
		if envelope.Response.Message != nil {
			msg = *envelope.Response.Message
		}
		return fmt.Errorf("%w: %s: %s", ErrAPIFailure, cmd, msg)
	}
	return nil
}

// fetch performs the GET, retrying 429 responses with Retry-After or
// exponential backoff.
func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt == c.maxRetries {
				break
			}
			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
					delay = time.Duration(seconds) * time.Second
				}
			}
			c.logger.Debug().Dur("delay", delay).Int("attempt", attempt+1).Msg("Rate limited, backing off")
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := readBody(resp)
		if err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w after %d retries", ErrRateLimited, c.maxRetries)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("%w: status %d: %s", errServerStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
