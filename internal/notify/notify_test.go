package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

func TestLogNotifier_ClientCreated(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(time.Millisecond)
	n.logger = log.NewEntry(logger)

	require.NoError(t, n.ClientCreated(context.Background(), "Alice"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "NOTIFICATION - ACCOUNT WITH NAME Alice", entry.Message)
	assert.Equal(t, "Alice", entry.Data["client_name"])
}

func TestLogNotifier_Cancelled(t *testing.T) {
	n := NewLogNotifier(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.ClientCreated(ctx, "Alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, n.OrderStatusChanged(ctx, domain.OrderRecord{ID: 1}), context.Canceled)
}

func TestNewLogNotifier_DefaultDelay(t *testing.T) {
	assert.Equal(t, DefaultDelay, NewLogNotifier(-1).delay)
	assert.Equal(t, time.Duration(0), NewLogNotifier(0).delay)
}

type recordingNotifier struct {
	clients []string
	orders  []int64
	err     error
}

func (r *recordingNotifier) ClientCreated(_ context.Context, name string) error {
	r.clients = append(r.clients, name)
	return r.err
}

func (r *recordingNotifier) OrderStatusChanged(_ context.Context, order domain.OrderRecord) error {
	r.orders = append(r.orders, order.ID)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("broker down")}
	m := Multi{ok, nil, failing}

	err := m.ClientCreated(context.Background(), "Bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, []string{"Bob"}, ok.clients)
	assert.Equal(t, []string{"Bob"}, failing.clients)

	failing.err = nil
	require.NoError(t, m.OrderStatusChanged(context.Background(), domain.OrderRecord{ID: 3}))
	assert.Equal(t, []int64{3}, ok.orders)
	assert.Equal(t, []int64{3}, failing.orders)
}
