package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/app"
	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqldb"
	"github.com/vladislavdragonenkov/queueapp/internal/version"
)

const (
	envLogLevel        = "QUEUEAPP_LOG_LEVEL"
	envHTTPAddr        = "QUEUEAPP_HTTP_ADDR"
	envGRPCAddr        = "QUEUEAPP_GRPC_ADDR"
	envMetricsAddr     = "QUEUEAPP_METRICS_ADDR"
	envStorageDriver   = "QUEUEAPP_STORAGE_DRIVER"
	envSQLDialect      = "QUEUEAPP_SQL_DIALECT"
	envDSN             = "QUEUEAPP_DSN"
	envAutoMigrate     = "QUEUEAPP_AUTO_MIGRATE"
	envProcessTimeUnit = "QUEUEAPP_PROCESS_TIME_UNIT"
	envRedisAddr       = "QUEUEAPP_REDIS_ADDR"
	envKafkaBrokers    = "KAFKA_BROKERS"
	envKafkaTopic      = "QUEUEAPP_KAFKA_TOPIC"
	envJWTSecret       = "QUEUEAPP_JWT_SECRET"
	envTokenTTL        = "QUEUEAPP_TOKEN_TTL"
	envVerificationKey = "QUEUEAPP_VERIFICATION_KEY"
	envStaticDir       = "QUEUEAPP_STATIC_DIR"
)

type lookupFunc func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup lookupFunc) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level := log.InfoLevel
	if raw, ok := lookup(envLogLevel); ok {
		if parsed, err := log.ParseLevel(strings.TrimSpace(raw)); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
}

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректные значения не прерывают запуск: они возвращаются как предупреждения
// и заменяются значениями по умолчанию.
func readConfigFromEnv(lookup lookupFunc) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}
	get := func(key string) (string, bool) {
		raw, ok := lookup(key)
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}

	if v, ok := get(envHTTPAddr); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := get(envGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := get(envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := get(envStorageDriver); ok {
		kind, err := domain.ParseBackendKind(strings.ToLower(v))
		if err != nil {
			warn(envStorageDriver, v, err)
		} else {
			cfg.Storage.Kind = kind
		}
	}
	if v, ok := get(envSQLDialect); ok {
		dialect, err := sqldb.ParseDialect(v)
		if err != nil {
			warn(envSQLDialect, v, err)
		} else {
			cfg.Storage.Dialect = dialect
		}
	}
	if v, ok := get(envDSN); ok {
		cfg.Storage.DSN = v
	}
	if v, ok := get(envAutoMigrate); ok {
		enabled, err := parseBool(v)
		if err != nil {
			warn(envAutoMigrate, v, err)
		} else {
			cfg.Storage.AutoMigrate = enabled
		}
	}
	if v, ok := get(envProcessTimeUnit); ok {
		d, err := time.ParseDuration(v)
		if err == nil && d <= 0 {
			err = errors.New("must be positive")
		}
		if err != nil {
			warn(envProcessTimeUnit, v, err)
		} else {
			cfg.ProcessTimeUnit = d
		}
	}
	if v, ok := get(envRedisAddr); ok {
		cfg.RedisAddr = v
	}
	if v, ok := get(envKafkaBrokers); ok {
		cfg.KafkaBrokers = v
	}
	if v, ok := get(envKafkaTopic); ok {
		cfg.KafkaTopic = v
	}
	if v, ok := get(envJWTSecret); ok {
		cfg.JWTSecret = v
	}
	if v, ok := get(envTokenTTL); ok {
		d, err := time.ParseDuration(v)
		if err == nil && d <= 0 {
			err = errors.New("must be positive")
		}
		if err != nil {
			warn(envTokenTTL, v, err)
		} else {
			cfg.TokenTTL = d
		}
	}
	if v, ok := get(envVerificationKey); ok {
		cfg.VerificationKey = v
	}
	if v, ok := get(envStaticDir); ok {
		cfg.StaticDir = v
	}
	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}
	if cfg.JWTSecret == app.DefaultJWTSecret {
		log.Warnf("%s не задан, используется секрет для разработки", envJWTSecret)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.Storage.Kind,
		"version":      version.String(),
	}).Info("запускаем queue-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("queue-service остановлен")
}
