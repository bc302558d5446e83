package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/memory"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/ormstore"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/sqlstore"
)

func TestBuild_AllKinds(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()

	store, err := Build(ctx, domain.BackendMemory, cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	store, err = Build(ctx, domain.BackendSQL, cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, store)
	require.NoError(t, closeStore(store))

	store, err = Build(ctx, domain.BackendORM, cfg)
	require.NoError(t, err)
	assert.IsType(t, &ormstore.Store{}, store)
	require.NoError(t, closeStore(store))

	_, err = Build(ctx, domain.BackendKind("redis"), cfg)
	assert.True(t, errors.Is(err, domain.ErrUnknownBackend))
}

func TestSelector_ResetDiscardsState(t *testing.T) {
	ctx := context.Background()
	sel, err := NewSelector(ctx, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sel.Close() })

	first := sel.Current()
	_, err = first.AddClient(ctx, "Alice", "p", "", nil)
	require.NoError(t, err)

	for _, kind := range []domain.BackendKind{domain.BackendSQL, domain.BackendORM, domain.BackendMemory} {
		fresh, err := sel.Reset(ctx, kind)
		require.NoError(t, err, kind)
		assert.Same(t, fresh, sel.Current())
		assert.Equal(t, kind, sel.Kind())

		count, err := fresh.ClientsCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count, kind)
		assert.True(t, fresh.Opened(), kind)

		_, err = fresh.AddClient(ctx, "Bob", "p", "", nil)
		require.NoError(t, err)
	}
}

func TestSelector_ResetUnknownKeepsCurrent(t *testing.T) {
	store := memory.NewStore()
	sel := NewStaticSelector(store, domain.BackendMemory, DefaultConfig())

	_, err := sel.Reset(context.Background(), "unknown")
	require.Error(t, err)
	assert.Same(t, domain.Store(store), sel.Current())
	assert.Equal(t, domain.BackendMemory, sel.Kind())
}
