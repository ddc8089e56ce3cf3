// Package server receives Tautulli webhook notifications over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/dedup"
	"github.com/plexnote/plexnote/internal/notifier"
	"github.com/plexnote/plexnote/internal/tautulli"
)

const maxWebhookBody = 1 << 20

// Processor handles one rating key.
type Processor interface {
	Process(ctx context.Context, ratingKey string) (notifier.Outcome, error)
}

// Server is the webhook HTTP server.
type Server struct {
	echo      *echo.Echo
	processor Processor
	logger    zerolog.Logger
}

// WebhookResponse is returned by POST /webhook.
type WebhookResponse struct {
	RatingKey string           `json:"ratingKey,omitempty"`
	Outcome   notifier.Outcome `json:"outcome,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// New creates the server and registers its routes.
func New(processor Processor, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		processor: processor,
		logger:    logger.With().Str("component", "server").Logger(),
	}
	s.setupMiddleware()
	s.echo.GET("/health", s.healthCheck)
	s.echo.POST("/webhook", s.webhook)
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.BodyLimit("1M"))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = s.logger.Error().Err(v.Error)
			}
			event.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
}

// Start listens on address until Shutdown is called.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting HTTP server")
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// webhook takes the rating key from the query string, a form field or a JSON
// body and processes it before responding.
func (s *Server) webhook(c echo.Context) error {
	ratingKey, err := ratingKeyFromRequest(c)
	if err != nil {
		return err
	}
	if ratingKey == "" {
		return c.JSON(http.StatusBadRequest, WebhookResponse{Error: "rating key missing"})
	}

	outcome, err := s.processor.Process(c.Request().Context(), ratingKey)
	resp := WebhookResponse{RatingKey: ratingKey, Outcome: outcome}
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, dedup.ErrLockTimeout):
		resp.Error = err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	case errors.Is(err, notifier.ErrEventUnavailable):
		resp.Error = err.Error()
		return c.JSON(http.StatusNotFound, resp)
	default:
		resp.Error = err.Error()
		return c.JSON(http.StatusBadGateway, resp)
	}
}

func ratingKeyFromRequest(c echo.Context) (string, error) {
	for _, name := range tautulli.RatingKeyNames {
		if v := strings.TrimSpace(c.QueryParam(name)); tautulli.ValidRatingKey(v) {
			return v, nil
		}
	}

	req := c.Request()
	contentType := req.Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEApplicationForm) || strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		for _, name := range tautulli.RatingKeyNames {
			if v := strings.TrimSpace(c.FormValue(name)); tautulli.ValidRatingKey(v) {
				return v, nil
			}
		}
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	key, _ := tautulli.RatingKeyFromPayload(body)
	return key, nil
}
