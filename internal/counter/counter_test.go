package counter

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Concurrent(t *testing.T) {
	c := NewLocal()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Increment(context.Background())
		}()
	}
	wg.Wait()

	n, err := c.Increment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
}

func TestRedis_Increment(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	c, err := Dial(ctx, srv.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	value, err := srv.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "3", value)
	require.NoError(t, c.Ping(ctx))
}

func TestRedis_SharedBetweenClients(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	a := NewRedis(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "calls")
	b := NewRedis(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "calls")
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	_, err := a.Increment(ctx)
	require.NoError(t, err)
	n, err := b.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedis_Errors(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	c := NewRedis(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "calls")
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, srv.Set("calls", "not-a-number"))
	_, err := c.Increment(ctx)
	assert.Error(t, err)

	addr := srv.Addr()
	srv.Close()
	_, err = Dial(ctx, addr, "")
	assert.Error(t, err)
}
