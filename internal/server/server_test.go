package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexnote/plexnote/internal/dedup"
	"github.com/plexnote/plexnote/internal/notifier"
	"github.com/plexnote/plexnote/internal/testutil"
)

type stubProcessor struct {
	keys []string
	err  error
}

func (p *stubProcessor) Process(_ context.Context, ratingKey string) (notifier.Outcome, error) {
	p.keys = append(p.keys, ratingKey)
	if p.err != nil {
		return notifier.OutcomeFailed, p.err
	}
	return notifier.OutcomeSent, nil
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, WebhookResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body WebhookResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHealth(t *testing.T) {
	s := New(&stubProcessor{}, testutil.NewTestLogger(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhook_RatingKeySources(t *testing.T) {
	form := url.Values{"rating_key": {"12"}}
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"query", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/webhook?rating_key=12", nil)
		}},
		{"form", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}},
		{"json", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"ratingKey":12,"title":"Heat"}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}},
		{"plain digits", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("12"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{}
			s := New(proc, testutil.NewTestLogger(t))

			rec, body := do(t, s, tt.req())

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{"12"}, proc.keys)
			assert.Equal(t, notifier.OutcomeSent, body.Outcome)
		})
	}
}

func TestWebhook_MissingRatingKey(t *testing.T) {
	proc := &stubProcessor{}
	s := New(proc, testutil.NewTestLogger(t))

	rec, body := do(t, s, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"title":"x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body.Error)
	assert.Empty(t, proc.keys)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dedup.ErrLockTimeout, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: gone", notifier.ErrEventUnavailable), http.StatusNotFound},
		{fmt.Errorf("%w: 500", notifier.ErrDelivery), http.StatusBadGateway},
	}
	for _, tt := range tests {
		s := New(&stubProcessor{err: tt.err}, testutil.NewTestLogger(t))
		rec, body := do(t, s, httptest.NewRequest(http.MethodPost, "/webhook?rating_key=5", nil))
		require.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Equal(t, notifier.OutcomeFailed, body.Outcome)
	}
}
