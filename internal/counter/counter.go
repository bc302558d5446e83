// Package counter считает обработанные HTTP-вызовы.
package counter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// DefaultKey - ключ счётчика в Redis.
const DefaultKey = "queueapp:calls_count"

// Local - счётчик внутри процесса.
type Local struct {
	n atomic.Int64
}

func NewLocal() *Local {
	return &Local{}
}

func (c *Local) Increment(context.Context) (int64, error) {
	return c.n.Add(1), nil
}

// Redis - счётчик, общий для всех экземпляров сервиса.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis создаёт счётчик поверх готового клиента.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

// Dial подключается к Redis по адресу и проверяет соединение.
func Dial(ctx context.Context, addr, key string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedis(client, key), nil
}

func (c *Redis) Increment(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", c.key, err)
	}
	return n, nil
}

// Ping проверяет доступность Redis.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

var (
	_ domain.CallCounter = (*Local)(nil)
	_ domain.CallCounter = (*Redis)(nil)
)
