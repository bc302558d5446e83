package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return TopicEvents }
func (m *mockClaim) Partition() int32                         { return 0 }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func claimOf(messages ...*sarama.ConsumerMessage) *mockClaim {
	ch := make(chan *sarama.ConsumerMessage, len(messages))
	for _, m := range messages {
		ch <- m
	}
	close(ch)
	return &mockClaim{messages: ch}
}

func eventMessage(t *testing.T, offset int64, event *Event) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Topic: TopicEvents, Offset: offset, Value: raw}
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func TestNewEventConsumer_InvalidBroker(t *testing.T) {
	handle := func(context.Context, *Event) error { return nil }
	if _, err := NewEventConsumer([]string{"invalid-broker:9092"}, "group", []string{TopicEvents}, handle); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}

func TestConsumerConfig(t *testing.T) {
	if err := consumerConfig().Validate(); err != nil {
		t.Fatalf("config should be valid: %v", err)
	}
}

func TestEventConsumer_Options(t *testing.T) {
	logger := quietLogger()
	c := newEventConsumer(&mockConsumerGroup{}, nil, nil, WithRetry(0, time.Second), WithConsumerLogger(logger))
	if c.attempts != 1 {
		t.Fatalf("attempts should be clamped to 1, got %d", c.attempts)
	}
	if c.retryDelay != time.Second || c.logger != logger {
		t.Fatalf("options not applied: %+v", c)
	}

	c = newEventConsumer(&mockConsumerGroup{}, nil, nil, WithConsumerLogger(nil))
	if c.attempts != defaultHandleAttempts || c.logger == nil {
		t.Fatalf("defaults expected, got attempts=%d", c.attempts)
	}
}

func TestEventConsumer_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumeCalls atomic.Int32
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, topics []string, _ sarama.ConsumerGroupHandler) error {
			if len(topics) != 1 || topics[0] != TopicEvents {
				t.Errorf("unexpected topics %v", topics)
			}
			consumeCalls.Add(1)
			cancel()
			return nil
		},
	}
	c := newEventConsumer(group, []string{TopicEvents}, func(context.Context, *Event) error { return nil },
		WithConsumerLogger(quietLogger()))

	errorsCh <- errors.New("background error")
	c.Start(ctx)
	<-ctx.Done()
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls.Load() == 0 {
		t.Fatal("expected at least one Consume call")
	}
}

func TestEventConsumer_StopError(t *testing.T) {
	errorsCh := make(chan error)
	group := &mockConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}
	c := newEventConsumer(group, nil, nil, WithConsumerLogger(quietLogger()))
	if err := c.Stop(); err == nil {
		t.Fatal("expected stop error")
	}
}

func TestConsumeClaim_DeliversParsedEvents(t *testing.T) {
	var got []*Event
	c := newEventConsumer(&mockConsumerGroup{}, nil, func(_ context.Context, e *Event) error {
		got = append(got, e)
		return nil
	}, WithConsumerLogger(quietLogger()))

	session := &mockSession{ctx: context.Background()}
	claim := claimOf(
		eventMessage(t, 1, NewClientCreatedEvent("alice")),
		&sarama.ConsumerMessage{Topic: TopicEvents, Offset: 2, Value: []byte("garbage")},
		eventMessage(t, 3, NewOrderStatusEvent(domain.OrderRecord{ID: 4, Status: domain.OrderStatusComplete})),
	)
	if err := c.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 handled events, got %d", len(got))
	}
	if got[0].ClientName != "alice" || got[1].Order == nil || got[1].Order.ID != 4 {
		t.Fatalf("unexpected events: %+v, %+v", got[0], got[1])
	}
	// Битое сообщение тоже помечается, иначе группа застрянет на нём.
	if len(session.marked) != 3 {
		t.Fatalf("expected 3 marked messages, got %d", len(session.marked))
	}
}

func TestConsumeClaim_FailedEventNotMarked(t *testing.T) {
	attempts := 0
	c := newEventConsumer(&mockConsumerGroup{}, nil, func(context.Context, *Event) error {
		attempts++
		return errors.New("downstream unavailable")
	}, WithRetry(3, time.Millisecond), WithConsumerLogger(quietLogger()))

	session := &mockSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, claimOf(eventMessage(t, 1, NewClientCreatedEvent("bob")))); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(session.marked) != 0 {
		t.Fatalf("failed event should not be marked, got %d", len(session.marked))
	}
}

func TestConsumeClaim_RetrySucceeds(t *testing.T) {
	attempts := 0
	c := newEventConsumer(&mockConsumerGroup{}, nil, func(context.Context, *Event) error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary")
		}
		return nil
	}, WithRetry(3, time.Millisecond), WithConsumerLogger(quietLogger()))

	session := &mockSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, claimOf(eventMessage(t, 1, NewClientCreatedEvent("carol")))); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if attempts != 2 || len(session.marked) != 1 {
		t.Fatalf("attempts=%d marked=%d", attempts, len(session.marked))
	}
}

func TestConsumeClaim_CancelledDuringRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newEventConsumer(&mockConsumerGroup{}, nil, func(context.Context, *Event) error {
		cancel()
		return errors.New("fail")
	}, WithRetry(5, time.Hour), WithConsumerLogger(quietLogger()))

	session := &mockSession{ctx: ctx}
	done := make(chan struct{})
	go func() {
		_ = c.ConsumeClaim(session, claimOf(eventMessage(t, 1, NewClientCreatedEvent("dave"))))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
	if len(session.marked) != 0 {
		t.Fatalf("interrupted event should not be marked, got %d", len(session.marked))
	}
}

func TestConsumeClaim_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newEventConsumer(&mockConsumerGroup{}, nil, func(context.Context, *Event) error { return nil },
		WithConsumerLogger(quietLogger()))

	done := make(chan struct{})
	go func() {
		_ = c.ConsumeClaim(&mockSession{ctx: ctx}, &mockClaim{messages: make(chan *sarama.ConsumerMessage)})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
