package sqlstore

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
	return New(storetest.OpenSQLite(t))
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return newSQLiteStore(t)
	})
}

func TestStore_DuplicateDescriptionIsConflict(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	client := storetest.AddClient(t, s, "Alice")
	storetest.AddOrder(t, s, client, "same")

	dup := domain.NewOrder(2, "same", 5, domain.ID(client.ID), time.Now().UTC())
	err := s.AddOrder(ctx, dup)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.True(t, errors.Is(err, domain.ErrDescriptionTaken))

	count, err := s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_DuplicateNameIsConflict(t *testing.T) {
	s := newSQLiteStore(t)
	storetest.AddClient(t, s, "Alice")

	_, err := s.AddClient(context.Background(), "Alice", "x", "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNameTaken))
}

func TestStore_OrderForMissingClientIsNotFound(t *testing.T) {
	s := newSQLiteStore(t)

	order := domain.NewOrder(1, "orphan", 5, domain.ID(42), time.Now().UTC())
	err := s.AddOrder(context.Background(), order)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
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

func TestStore_ChangeOwnerOfMissingOrder(t *testing.T) {
	s := newSQLiteStore(t)

	err := s.ChangeOrderOwner(context.Background(), nil, 7)
	assert.True(t, domain.IsNotFound(err))
}

func TestStore_CreationDateRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

	order := domain.NewOrder(1, "dated", 5, nil, created)
	require.NoError(t, s.AddOrder(ctx, order))

	got, err := s.OrderByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, created.Equal(got.CreationDate), "got %s", got.CreationDate)
	assert.Equal(t, 5, got.Time)
	assert.Equal(t, domain.OrderStatusReceived, got.Status)
}

func TestStore_SetNewClientsRestoresOwners(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	alice := storetest.AddClient(t, s, "Alice")
	order := storetest.AddOrder(t, s, alice, "owned")

	alice, err := s.ClientByID(ctx, alice.ID)
	require.NoError(t, err)
	bob := &domain.Client{ID: 9, Name: "Bob", Password: "p", Orders: alice.Orders}

	require.NoError(t, s.SetNewClients(ctx, []*domain.Client{bob}))

	got, err := s.OrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClientID)
	assert.EqualValues(t, 9, *got.ClientID)

	count, err := s.ClientsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	storetest.AssertRelationship(t, s)
}

func TestStore_PostgresContract(t *testing.T) {
	db := storetest.OpenPostgres(t)

	storetest.Run(t, func(t *testing.T) domain.Store {
		s := New(db)
		require.NoError(t, s.Clear(context.Background()))
		return s
	})
}
