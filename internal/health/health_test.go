package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedChecker Status

func (f fixedChecker) Check() Check { return Check{Name: string(f), Status: Status(f)} }

func serveHealthz(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, resp
}

func TestHandler_AggregatesStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers map[string]Checker
		code     int
		status   Status
	}{
		{name: "no checkers", code: http.StatusOK, status: StatusHealthy},
		{
			name:     "all healthy",
			checkers: map[string]Checker{"storage": fixedChecker(StatusHealthy), "redis": fixedChecker(StatusHealthy)},
			code:     http.StatusOK,
			status:   StatusHealthy,
		},
		{
			name:     "degraded keeps 200",
			checkers: map[string]Checker{"storage": fixedChecker(StatusHealthy), "redis": fixedChecker(StatusDegraded)},
			code:     http.StatusOK,
			status:   StatusDegraded,
		},
		{
			name:     "unhealthy wins over degraded",
			checkers: map[string]Checker{"storage": fixedChecker(StatusUnhealthy), "redis": fixedChecker(StatusDegraded)},
			code:     http.StatusServiceUnavailable,
			status:   StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler("v0.3.1")
			for name, c := range tt.checkers {
				h.RegisterChecker(name, c)
			}

			code, resp := serveHealthz(t, h)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "v0.3.1", resp.Version)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestHandler_RegisterReplacesChecker(t *testing.T) {
	h := NewHandler("")
	h.RegisterChecker("storage", fixedChecker(StatusUnhealthy))
	h.RegisterChecker("storage", fixedChecker(StatusHealthy))

	code, resp := serveHealthz(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Checks, 1)
}

func TestLivenessAndReadiness(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	h := NewHandler("")
	w = httptest.NewRecorder()
	h.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())

	h.RegisterChecker("storage", fixedChecker(StatusUnhealthy))
	w = httptest.NewRecorder()
	h.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", w.Body.String())
}

func TestSimpleChecker(t *testing.T) {
	ok := NewSimpleChecker("storage", func() error { return nil }).Check()
	assert.Equal(t, StatusHealthy, ok.Status)
	assert.Equal(t, "storage", ok.Name)
	assert.Empty(t, ok.Message)

	failed := NewSimpleChecker("storage", func() error { return errors.New("database is closed") }).Check()
	assert.Equal(t, StatusUnhealthy, failed.Status)
	assert.Equal(t, "database is closed", failed.Message)
}

func TestPingChecker(t *testing.T) {
	var deadline time.Time
	check := NewPingChecker("redis", 0, func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}).Check()
	assert.Equal(t, StatusHealthy, check.Status)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)

	check = NewPingChecker("redis", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}).Check()
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), check.Message)
}
