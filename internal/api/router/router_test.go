package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnoslabs/turnosbot/internal/http/handlers"
	"github.com/turnoslabs/turnosbot/internal/stats"
)

type stubDialogue struct{}

func (stubDialogue) HandleMessage(context.Context, string, string) string { return "ok" }

type stubSender struct{}

func (stubSender) Send(context.Context, string, string) error { return nil }

type stubStats struct{}

func (stubStats) Summary(context.Context) (*stats.Summary, error) {
	return &stats.Summary{Today: 1}, nil
}

const testSecret = "test-secret"

func signToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newTestRouter() http.Handler {
	return New(Config{
		Webhook:        handlers.NewWebhookHandler("verify-me", stubDialogue{}, stubSender{}, nil),
		Stats:          handlers.NewAdminStatsHandler(stubStats{}, nil),
		AdminJWTSecret: testSecret,
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookVerifyIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.verify_token=verify-me&hub.challenge=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())
}

func TestAdminRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAcceptsValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t))

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"today":1`)
}

func TestUnmountedAdminRoutesAre404(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/appointments?date=2026-09-07", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t))

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRateLimit(t *testing.T) {
	r := New(Config{
		Webhook:              handlers.NewWebhookHandler("verify-me", stubDialogue{}, stubSender{}, nil),
		AdminJWTSecret:       testSecret,
		WebhookRatePerSecond: 1,
		WebhookBurst:         2,
	})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=verify-me&hub.challenge=x", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.9")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
