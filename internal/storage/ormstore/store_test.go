package ormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/storage/storetest"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(storetest.OpenSQLite(t))
	require.NoError(t, err)
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return newSQLiteStore(t)
	})
}

func TestStore_DuplicateDescriptionIsConflict(t *testing.T) {
	s := newSQLiteStore(t)
	client := storetest.AddClient(t, s, "Alice")
	storetest.AddOrder(t, s, client, "same")

	dup := domain.NewOrder(2, "same", 5, domain.ID(client.ID), time.Now().UTC())
	err := s.AddOrder(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.True(t, errors.Is(err, domain.ErrDescriptionTaken))
}

func TestStore_DuplicateNameIsConflict(t *testing.T) {
	s := newSQLiteStore(t)
	storetest.AddClient(t, s, "Alice")

	id, err := s.AddClient(context.Background(), "Alice", "x", "", nil)
	require.Error(t, err)
	assert.Zero(t, id)
	assert.True(t, errors.Is(err, domain.ErrNameTaken))
}

func TestStore_RemoveClientLeavesOrdersOwnerless(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	client := storetest.AddClient(t, s, "Alice")
	order := storetest.AddOrder(t, s, client, "survivor")

	require.NoError(t, s.RemoveClient(ctx, client))

	got, err := s.OrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ClientID)
}

func TestStore_AddClientAttachesOrders(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	order := storetest.AddOrder(t, s, nil, "loose")

	id, err := s.AddClient(ctx, "Owner", "p", "", []*domain.Order{order})
	require.NoError(t, err)

	owned, found, err := s.OrdersByClientID(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, owned, 1)
	assert.Equal(t, order.ID, owned[0].ID)
}

func TestStore_UpdateMissingClient(t *testing.T) {
	s := newSQLiteStore(t)

	err := s.UpdateOneClient(context.Background(), "ghost", &domain.Client{Name: "x"})
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, "Wrong name", err.Error())
}

func TestStore_PostgresContract(t *testing.T) {
	db := storetest.OpenPostgres(t)

	storetest.Run(t, func(t *testing.T) domain.Store {
		s, err := New(db)
		require.NoError(t, err)
		require.NoError(t, s.Clear(context.Background()))
		return s
	})
}
