package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/auth"
	"github.com/vladislavdragonenkov/queueapp/internal/counter"
	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/queueapp/internal/health"
	"github.com/vladislavdragonenkov/queueapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/queueapp/internal/metrics"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
	"github.com/vladislavdragonenkov/queueapp/internal/storage"
)

const checkTimeout = 2 * time.Second

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Selector *storage.Selector
	Service  *queue.Service
	Tokens   *auth.TokenIssuer
	Counter  domain.CallCounter
	Metrics  *metrics.QueueMetrics
	Producer *kafka.Producer
	Logger   *log.Entry

	redis *counter.Redis
}

// NewDependencies создаёт и инициализирует все зависимости приложения.
// Недоступные Kafka и Redis не считаются ошибкой: сервис работает без них.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	selector, err := storage.NewSelector(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage %q: %w", cfg.Storage.Kind, err)
	}

	deps := &Dependencies{
		Selector: selector,
		Tokens:   tokens,
		Counter:  counter.NewLocal(),
		Metrics:  metrics.NewQueueMetrics(),
		Logger:   logger,
	}

	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		rc, err := counter.Dial(dialCtx, cfg.RedisAddr, cfg.RedisKey)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, using local calls counter")
		} else {
			logger.WithField("addr", cfg.RedisAddr).Info("redis calls counter initialized")
			deps.redis = rc
			deps.Counter = rc
		}
	}

	// ошибка уже залогирована, работаем без Kafka
	deps.Producer, _ = initKafkaProducer(cfg.KafkaBrokers, logger)

	deps.Service = queue.NewService(selector, queue.Options{
		TimeUnit: cfg.ProcessTimeUnit,
		Notifier: newNotifier(deps.Producer, cfg.KafkaTopic),
		Metrics:  deps.Metrics,
		Logger:   logger.WithField("layer", "service"),
	})
	return deps, nil
}

// RegisterCheckers добавляет проверки хранилища и Redis в health handler.
func (d *Dependencies) RegisterCheckers(h *healthcheck.Handler) {
	h.RegisterChecker("storage", healthcheck.NewPingChecker("storage", checkTimeout, func(ctx context.Context) error {
		_, err := d.Service.Info(ctx)
		return err
	}))
	if d.redis != nil {
		h.RegisterChecker("redis", healthcheck.NewPingChecker("redis", checkTimeout, d.redis.Ping))
	}
}

// Close дожидается фоновых задач и освобождает ресурсы.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.Service != nil {
		if err := d.Service.Shutdown(ctx); err != nil {
			d.Logger.WithError(err).Warn("background processing interrupted")
			errs = append(errs, err)
		}
	}
	closeKafka(d.Producer, d.Logger)
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.Selector != nil {
		if err := d.Selector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
