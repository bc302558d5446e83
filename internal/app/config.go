package app

import (
	"time"

	"github.com/vladislavdragonenkov/queueapp/internal/auth"
	"github.com/vladislavdragonenkov/queueapp/internal/counter"
	"github.com/vladislavdragonenkov/queueapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
	"github.com/vladislavdragonenkov/queueapp/internal/storage"
	"github.com/vladislavdragonenkov/queueapp/internal/transport/httpapi"
)

// DefaultJWTSecret используется, если секрет не задан окружением.
const DefaultJWTSecret = "queueapp-dev-secret"

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	Storage storage.Config
	// ProcessTimeUnit - длительность одной единицы Order.Time.
	ProcessTimeUnit time.Duration

	// RedisAddr включает общий счётчик вызовов; пустой - локальный счётчик.
	RedisAddr    string
	RedisKey     string
	KafkaBrokers string
	KafkaTopic   string

	JWTSecret       string
	TokenTTL        time.Duration
	VerificationKey string
	StaticDir       string

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8000",
		GRPCAddr:        ":50051",
		MetricsAddr:     ":9090",
		Storage:         storage.DefaultConfig(),
		ProcessTimeUnit: queue.DefaultTimeUnit,
		RedisKey:        counter.DefaultKey,
		KafkaTopic:      kafka.TopicEvents,
		JWTSecret:       DefaultJWTSecret,
		TokenTTL:        auth.DefaultTokenTTL,
		VerificationKey: httpapi.DefaultVerificationKey,
		ShutdownTimeout: 5 * time.Second,
	}
}
