// Package queue реализует операции над клиентами и заказами и жизненный цикл обработки заказа.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/auth"
	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/metrics"
	"github.com/vladislavdragonenkov/queueapp/internal/notify"
	"github.com/vladislavdragonenkov/queueapp/internal/storage"
)

const (
	// DefaultTimeUnit - длительность одной единицы Order.Time.
	DefaultTimeUnit = time.Second
	// DefaultPassword выдаётся клиентам, созданным без пароля.
	DefaultPassword = "123"

	newClientPrefix = "New client"
)

// ErrServiceClosed возвращается после Shutdown.
var ErrServiceClosed = errors.New("queue service is shutting down")

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	// TimeUnit умножается на Order.Time при имитации обработки.
	TimeUnit time.Duration
	Notifier domain.Notifier
	Hasher   domain.PasswordHasher
	Metrics  *metrics.QueueMetrics
	Logger   *log.Entry
}

// Service координирует доступ к активному хранилищу.
//
// mu - общая блокировка заказов: под ней выполняются все составные
// операции чтения-изменения и оба перехода статуса.
type Service struct {
	selector *storage.Selector
	mu       sync.RWMutex

	timeUnit time.Duration
	notifier domain.Notifier
	hasher   domain.PasswordHasher
	metrics  *metrics.QueueMetrics
	logger   *log.Entry

	sessionMu sync.Mutex
	sessions  int

	asyncMu     sync.Mutex
	asyncClosed bool
	asyncWG     sync.WaitGroup
	asyncCtx    context.Context
	asyncCancel context.CancelFunc
}

// NewService конструирует сервис поверх селектора хранилищ.
func NewService(selector *storage.Selector, opts Options) *Service {
	if opts.TimeUnit <= 0 {
		opts.TimeUnit = DefaultTimeUnit
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(notify.DefaultDelay)
	}
	if opts.Hasher == nil {
		opts.Hasher = auth.NewBcryptHasher(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "queue-service")
	}
	asyncCtx, asyncCancel := context.WithCancel(context.Background())
	return &Service{
		selector:    selector,
		timeUnit:    opts.TimeUnit,
		notifier:    opts.Notifier,
		hasher:      opts.Hasher,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		asyncCtx:    asyncCtx,
		asyncCancel: asyncCancel,
	}
}

func (s *Service) store() domain.Store {
	return s.selector.Current()
}

// Backend возвращает тип активного хранилища.
func (s *Service) Backend() domain.BackendKind {
	return s.selector.Kind()
}

// Acquire открывает хранилище для запроса. Первый одновременный запрос
// открывает запись, последний освобождённый - закрывает.
func (s *Service) Acquire(_ context.Context) (release func()) {
	s.sessionMu.Lock()
	s.sessions++
	if s.sessions == 1 {
		s.store().OpenDBs()
	}
	s.sessionMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sessionMu.Lock()
			defer s.sessionMu.Unlock()
			s.sessions--
			if s.sessions == 0 {
				s.store().CloseDBs()
			}
		})
	}
}

// ResetStorage отбрасывает все данные и подменяет хранилище новым экземпляром kind.
func (s *Service) ResetStorage(ctx context.Context, kind domain.BackendKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.selector.Reset(ctx, kind); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	s.metrics.RecordStorageReset(string(kind))
	s.logger.WithField("backend", kind).Info("storage reset")
	return nil
}

// Info возвращает количество заказов в хранилище.
func (s *Service) Info(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.store().OrdersCount(ctx)
}

// Shutdown запрещает новые фоновые задачи и ждёт завершения текущих.
// Если ctx истекает раньше, незавершённые обработки прерываются и заказы
// остаются в статусе in_progress.
func (s *Service) Shutdown(ctx context.Context) error {
	s.asyncMu.Lock()
	s.asyncClosed = true
	s.asyncMu.Unlock()

	waitDone := make(chan struct{})
	go func() {
		s.asyncWG.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		s.asyncCancel()
		return nil
	case <-ctx.Done():
		s.asyncCancel()
		return ctx.Err()
	}
}

// runAsync запускает отслеживаемую горутину, которую запрос не ждёт.
func (s *Service) runAsync(task string, fn func(ctx context.Context)) bool {
	s.asyncMu.Lock()
	if s.asyncClosed {
		s.asyncMu.Unlock()
		s.logger.WithField("task", task).Warn("background task skipped during shutdown")
		return false
	}
	s.asyncWG.Add(1)
	s.asyncMu.Unlock()

	go func() {
		defer s.asyncWG.Done()
		fn(s.asyncCtx)
	}()
	return true
}

func (s *Service) notifyClientCreated(name string) {
	s.runAsync("notify-client-created", func(ctx context.Context) {
		err := s.notifier.ClientCreated(ctx, name)
		s.metrics.RecordNotification("client_created", err)
		if err != nil {
			s.logger.WithError(err).WithField("client_name", name).Warn("client notification failed")
		}
	})
}

func (s *Service) notifyStatusChanged(record domain.OrderRecord) {
	s.runAsync("notify-order-status", func(ctx context.Context) {
		err := s.notifier.OrderStatusChanged(ctx, record)
		s.metrics.RecordNotification("order_status", err)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", record.ID).Warn("order notification failed")
		}
	})
}
