package queue

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

const (
	// DefaultOrderNotFoundMessage - сообщение, если заказа для обработки нет.
	DefaultOrderNotFoundMessage = "No such order"
	// NoAwaitingOrderMessage - в очереди нет заказов в статусе received.
	NoAwaitingOrderMessage = "No awaiting order"
)

// ProcessOptions переопределяет сообщения ошибок ProcessOrder.
type ProcessOptions struct {
	NotFoundMessage string
	ConflictMessage string
}

// ProcessOrder переводит заказ id в in_progress и запускает фоновое завершение.
// Возвращает снимок заказа сразу после перехода.
func (s *Service) ProcessOrder(ctx context.Context, id int64, opts ProcessOptions) (*domain.Order, error) {
	if opts.NotFoundMessage == "" {
		opts.NotFoundMessage = DefaultOrderNotFoundMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store().OrderByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if order == nil {
		s.logger.WithField("order_id", id).Warn("no order to process")
		return nil, domain.NewOrderNotFound(id, opts.NotFoundMessage)
	}
	if order.Status != domain.OrderStatusReceived {
		s.logger.WithFields(log.Fields{
			"order_id": id,
			"status":   order.Status,
		}).Warn("order has wrong status")
		return nil, domain.NewConflict(opts.ConflictMessage)
	}
	return s.beginLocked(ctx, order)
}

// ProcessNext берёт в обработку заказ в статусе received с минимальным ID.
// Выбор и смена статуса выполняются под одной блокировкой.
func (s *Service) ProcessNext(ctx context.Context) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store().FirstOrderWithStatus(ctx, domain.OrderStatusReceived)
	if err != nil {
		return nil, fmt.Errorf("find awaiting order: %w", err)
	}
	if order == nil {
		s.logger.Warn("no awaiting order")
		return nil, &domain.NotFoundError{Kind: domain.EntityOrder, Message: NoAwaitingOrderMessage}
	}
	return s.beginLocked(ctx, order)
}

func (s *Service) beginLocked(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	order.Status = domain.OrderStatusInProgress
	if err := s.store().ReplaceOrderInClient(ctx, order); err != nil {
		order.Status = domain.OrderStatusReceived
		return nil, fmt.Errorf("start processing order %d: %w", order.ID, err)
	}

	delay := time.Duration(order.Time) * s.timeUnit
	startedAt := time.Now()
	id := order.ID
	dispatched := s.runAsync("complete-order", func(ctx context.Context) {
		s.complete(ctx, id, delay, startedAt)
	})
	if !dispatched {
		order.Status = domain.OrderStatusReceived
		if err := s.store().ReplaceOrderInClient(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_id", id).Error("failed to return order to queue")
		}
		return nil, ErrServiceClosed
	}

	snapshot := order.Clone()
	s.metrics.RecordProcessingStarted()
	s.logger.WithField("order_id", id).Info("processing order")
	s.notifyStatusChanged(snapshot.Record())
	return snapshot, nil
}

// complete ждёт delay и переводит заказ в complete, если он всё ещё в обработке.
func (s *Service) complete(ctx context.Context, id int64, delay time.Duration, startedAt time.Time) {
	logger := s.logger.WithField("order_id", id)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		logger.Warn("processing interrupted, order left in progress")
		return
	}

	s.mu.Lock()
	order, err := s.store().OrderByID(ctx, id)
	if err != nil {
		s.mu.Unlock()
		logger.WithError(err).Error("failed to load order for completion")
		return
	}
	if order == nil || order.Status != domain.OrderStatusInProgress {
		s.mu.Unlock()
		s.metrics.RecordProcessingDropped()
		logger.Warn("order vanished during processing, completion dropped")
		return
	}
	order.Status = domain.OrderStatusComplete
	if err := s.store().ReplaceOrderInClient(ctx, order); err != nil {
		s.mu.Unlock()
		logger.WithError(err).Error("failed to complete order")
		return
	}
	record := order.Record()
	s.mu.Unlock()

	s.metrics.RecordProcessingCompleted(time.Since(startedAt))
	logger.Info("finished processing order")
	s.notifyStatusChanged(record)
}
