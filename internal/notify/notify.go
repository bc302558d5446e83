// Package notify содержит реализации domain.Notifier.
package notify

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// DefaultDelay имитирует отправку письма.
const DefaultDelay = 10 * time.Millisecond

// LogNotifier пишет уведомления в лог после короткой задержки.
type LogNotifier struct {
	delay  time.Duration
	logger *log.Entry
}

// NewLogNotifier создаёт нотификатор; delay < 0 заменяется на DefaultDelay.
func NewLogNotifier(delay time.Duration) *LogNotifier {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &LogNotifier{
		delay:  delay,
		logger: log.WithField("component", "notifier"),
	}
}

func (n *LogNotifier) ClientCreated(ctx context.Context, name string) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	n.logger.WithField("client_name", name).Infof("NOTIFICATION - ACCOUNT WITH NAME %s", name)
	return nil
}

func (n *LogNotifier) OrderStatusChanged(ctx context.Context, order domain.OrderRecord) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	n.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Debug("order status changed")
	return nil
}

func (n *LogNotifier) wait(ctx context.Context) error {
	if n.delay == 0 {
		return nil
	}
	timer := time.NewTimer(n.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Multi рассылает уведомление всем вложенным нотификаторам и собирает ошибки.
type Multi []domain.Notifier

func (m Multi) ClientCreated(ctx context.Context, name string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ClientCreated(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) OrderStatusChanged(ctx context.Context, order domain.OrderRecord) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.OrderStatusChanged(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = Multi(nil)
)
