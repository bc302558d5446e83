package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/queueapp/internal/counter"
	healthcheck "github.com/vladislavdragonenkov/queueapp/internal/health"
	"github.com/vladislavdragonenkov/queueapp/internal/notify"
)

func newTestDependencies(t *testing.T, cfg Config) *Dependencies {
	t.Helper()
	deps, err := NewDependencies(context.Background(), cfg, log.WithField("test", "dependencies"))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = deps.Close(ctx)
	})
	return deps
}

func TestNewDependencies(t *testing.T) {
	deps := newTestDependencies(t, DefaultConfig())

	assert.NotNil(t, deps.Selector)
	assert.NotNil(t, deps.Service)
	assert.NotNil(t, deps.Tokens)
	assert.NotNil(t, deps.Metrics)
	assert.Nil(t, deps.Producer)
	assert.IsType(t, &counter.Local{}, deps.Counter)

	n, err := deps.Service.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewDependencies_WithNilLogger(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	defer func() { _ = deps.Close(context.Background()) }()

	assert.NotNil(t, deps.Logger)
}

func TestNewDependencies_RedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()

	deps := newTestDependencies(t, cfg)
	require.IsType(t, &counter.Redis{}, deps.Counter)

	n, err := deps.Counter.Increment(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	h := healthcheck.NewHandler("test")
	deps.RegisterCheckers(h)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis"`)
	assert.Contains(t, rec.Body.String(), `"storage"`)

	mr.Close()
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewDependencies_RedisUnavailableFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	deps := newTestDependencies(t, cfg)
	assert.IsType(t, &counter.Local{}, deps.Counter)
}

func TestNewNotifier_WithoutKafka(t *testing.T) {
	n := newNotifier(nil, "")
	assert.IsType(t, &notify.LogNotifier{}, n)
}

func TestDependencies_CloseTwiceSafe(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, deps.Close(context.Background()))
	assert.NotPanics(t, func() { _ = deps.Close(context.Background()) })
}
