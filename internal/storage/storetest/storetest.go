// Package storetest содержит общий набор проверок контракта domain.Store.
// Каждая реализация хранилища прогоняет его в своих тестах.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// Factory создаёт пустое открытое хранилище для одного подтеста.
type Factory func(t *testing.T) domain.Store

// Run прогоняет все проверки контракта.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := map[string]func(t *testing.T, s domain.Store){
		"NextIDsStartAtOne":              testNextIDsStartAtOne,
		"IDsAreMonotonic":                testIDsAreMonotonic,
		"LookupsReturnAbsence":           testLookupsReturnAbsence,
		"ClosedStoreIgnoresWrites":       testClosedStoreIgnoresWrites,
		"ClosedStoreKeepsOrderLists":     testClosedStoreKeepsOrderLists,
		"ClientOrdersMatchOwnerField":    testClientOrdersMatchOwnerField,
		"OrdersByClientIDDistinguishes":  testOrdersByClientIDDistinguishes,
		"FirstOrderWithStatusByID":       testFirstOrderWithStatusByID,
		"OrderRecordsAscending":          testOrderRecordsAscending,
		"ChangeOrderOwner":               testChangeOrderOwner,
		"ReplaceOrderInClient":           testReplaceOrderInClient,
		"RemoveAllClientsOrders":         testRemoveAllClientsOrders,
		"SetNewOrdersDropsMissing":       testSetNewOrdersDropsMissing,
		"UpdateOneClient":                testUpdateOneClient,
		"ChangeClientPassword":           testChangeClientPassword,
		"ClientsLimitAndIDs":             testClientsLimitAndIDs,
		"ClearRemovesEverything":         testClearRemovesEverything,
		"NextOrderIDFollowsMaxAfterGaps": testNextOrderIDFollowsMaxAfterGaps,
	}

	names := make([]string, 0, len(tests))
	for name := range tests {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn := tests[name]
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

// AddClient создаёт клиента и проверяет, что ID выдан.
func AddClient(t *testing.T, s domain.Store, name string) *domain.Client {
	t.Helper()
	ctx := context.Background()

	id, err := s.AddClient(ctx, name, "hash-"+name, "", nil)
	require.NoError(t, err)
	require.NotZero(t, id)

	client, err := s.ClientByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, client)
	return client
}

// AddOrder создаёт заказ для клиента так же, как это делает сервис.
func AddOrder(t *testing.T, s domain.Store, client *domain.Client, description string) *domain.Order {
	t.Helper()
	ctx := context.Background()

	id, err := s.NextOrderID(ctx)
	require.NoError(t, err)

	var owner *int64
	if client != nil {
		owner = domain.ID(client.ID)
	}
	order := domain.NewOrder(id, description, 10, owner, time.Now().UTC())
	require.NoError(t, s.AddOrderToClient(ctx, order, client))
	require.NoError(t, s.AddOrder(ctx, order))

	stored, err := s.OrderByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func ids(orders []*domain.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AssertRelationship проверяет, что заказы клиента совпадают с заказами, где он владелец.
func AssertRelationship(t *testing.T, s domain.Store) {
	t.Helper()
	ctx := context.Background()

	clients, err := s.Clients(ctx, 0)
	require.NoError(t, err)
	orders, err := s.Orders(ctx)
	require.NoError(t, err)

	for _, c := range clients {
		owned, found, err := s.OrdersByClientID(ctx, c.ID)
		require.NoError(t, err)
		require.True(t, found)

		var expected []*domain.Order
		for _, o := range orders {
			if o.OwnedBy(c.ID) {
				expected = append(expected, o)
			}
		}
		assert.Equal(t, ids(expected), ids(owned), "client %d", c.ID)
	}
}

func testNextIDsStartAtOne(t *testing.T, s domain.Store) {
	ctx := context.Background()

	orderID, err := s.NextOrderID(ctx)
	require.NoError(t, err)
	clientID, err := s.NextClientID(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 1, orderID)
	assert.EqualValues(t, 1, clientID)
}

func testIDsAreMonotonic(t *testing.T, s domain.Store) {
	var lastClient, lastOrder int64
	for i := 0; i < 5; i++ {
		client := AddClient(t, s, fmt.Sprintf("client-%d", i))
		require.Greater(t, client.ID, lastClient)
		lastClient = client.ID

		order := AddOrder(t, s, client, fmt.Sprintf("order-%d", i))
		require.Greater(t, order.ID, lastOrder)
		lastOrder = order.ID
	}
}

func testLookupsReturnAbsence(t *testing.T, s domain.Store) {
	ctx := context.Background()

	order, err := s.OrderByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, order)

	client, err := s.ClientByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = s.ClientByName(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, client)

	first, err := s.FirstOrderWithStatus(ctx, domain.OrderStatusReceived)
	require.NoError(t, err)
	assert.Nil(t, first)
}

func testClosedStoreKeepsOrderLists(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	kept := AddOrder(t, s, client, "kept")

	s.CloseDBs()
	owner, err := s.ClientByID(ctx, client.ID)
	require.NoError(t, err)

	late := domain.NewOrder(kept.ID+1, "late", 5, domain.ID(client.ID), time.Now().UTC())
	require.NoError(t, s.AddOrderToClient(ctx, late, owner))
	require.NoError(t, s.AddOrder(ctx, late))
	require.NoError(t, s.SetNewOrders(ctx, nil))
	require.NoError(t, s.RemoveOrderFromClient(ctx, owner, kept))
	s.OpenDBs()

	count, err := s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	owned, found, err := s.OrdersByClientID(ctx, client.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int64{kept.ID}, ids(owned))
}

func testClosedStoreIgnoresWrites(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")

	s.CloseDBs()
	require.False(t, s.Opened())

	id, err := s.AddClient(ctx, "Bob", "hash", "", nil)
	require.NoError(t, err)
	assert.Zero(t, id)

	order := domain.NewOrder(1, "closed", 5, domain.ID(client.ID), time.Now().UTC())
	require.NoError(t, s.AddOrder(ctx, order))

	clients, err := s.ClientsCount(ctx)
	require.NoError(t, err)
	orders, err := s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, clients)
	assert.Equal(t, 0, orders)

	require.NoError(t, s.RemoveClient(ctx, client))
	clients, err = s.ClientsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, clients)

	s.OpenDBs()
	require.True(t, s.Opened())

	id, err = s.AddClient(ctx, "Bob", "hash", "", nil)
	require.NoError(t, err)
	assert.NotZero(t, id)
	require.NoError(t, s.AddOrder(ctx, order))

	clients, err = s.ClientsCount(ctx)
	require.NoError(t, err)
	orders, err = s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, clients)
	assert.Equal(t, 1, orders)
}

func testClientOrdersMatchOwnerField(t *testing.T, s domain.Store) {
	alice := AddClient(t, s, "Alice")
	bob := AddClient(t, s, "Bob")
	AddOrder(t, s, alice, "a1")
	AddOrder(t, s, alice, "a2")
	AddOrder(t, s, bob, "b1")
	AddOrder(t, s, nil, "nobody")

	AssertRelationship(t, s)

	owned, found, err := s.OrdersByClientID(context.Background(), alice.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, owned, 2)
}

func testOrdersByClientIDDistinguishes(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Empty")

	orders, found, err := s.OrdersByClientID(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, orders)

	orders, found, err = s.OrdersByClientID(ctx, client.ID+100)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, orders)
}

func testFirstOrderWithStatusByID(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	first := AddOrder(t, s, client, "first")
	second := AddOrder(t, s, client, "second")

	got, err := s.FirstOrderWithStatus(ctx, domain.OrderStatusReceived)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	first.Status = domain.OrderStatusInProgress
	require.NoError(t, s.ReplaceOrderInClient(ctx, first))

	got, err = s.FirstOrderWithStatus(ctx, domain.OrderStatusReceived)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	got, err = s.FirstOrderWithStatus(ctx, domain.OrderStatusComplete)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testOrderRecordsAscending(t *testing.T, s domain.Store) {
	client := AddClient(t, s, "Alice")
	for i := 0; i < 3; i++ {
		AddOrder(t, s, client, fmt.Sprintf("record-%d", i))
	}

	records, err := s.OrderRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.EqualValues(t, i+1, r.ID)
		assert.Equal(t, domain.OrderStatusReceived, r.Status)
		require.NotNil(t, r.ClientID)
		assert.Equal(t, client.ID, *r.ClientID)
	}
}

func testChangeOrderOwner(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := AddClient(t, s, "Alice")
	bob := AddClient(t, s, "Bob")
	order := AddOrder(t, s, alice, "moving")

	require.NoError(t, s.RemoveOrderFromClient(ctx, alice, order))
	require.NoError(t, s.ChangeOrderOwner(ctx, domain.ID(bob.ID), order.ID))
	moved, err := s.OrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, s.AddOrderToClient(ctx, moved, bob))

	require.NotNil(t, moved.ClientID)
	assert.Equal(t, bob.ID, *moved.ClientID)
	assert.Equal(t, domain.OrderStatusReceived, moved.Status)
	AssertRelationship(t, s)

	require.NoError(t, s.RemoveOrderFromClient(ctx, bob, moved))
	require.NoError(t, s.ChangeOrderOwner(ctx, nil, order.ID))
	orphan, err := s.OrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan.ClientID)
	AssertRelationship(t, s)
}

func testReplaceOrderInClient(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	order := AddOrder(t, s, client, "status")

	order.Status = domain.OrderStatusInProgress
	require.NoError(t, s.ReplaceOrderInClient(ctx, order))

	stored, err := s.OrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInProgress, stored.Status)

	owned, _, err := s.OrdersByClientID(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, domain.OrderStatusInProgress, owned[0].Status)
}

func testRemoveAllClientsOrders(t *testing.T, s domain.Store) {
	ctx := context.Background()
	alice := AddClient(t, s, "Alice")
	bob := AddClient(t, s, "Bob")
	AddOrder(t, s, alice, "a1")
	AddOrder(t, s, alice, "a2")
	AddOrder(t, s, bob, "b1")

	alice, err := s.ClientByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NoError(t, s.RemoveAllClientsOrders(ctx, alice))
	require.NoError(t, s.RemoveClient(ctx, alice))

	count, err := s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	clients, err := s.ClientsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, clients)
	AssertRelationship(t, s)
}

func testSetNewOrdersDropsMissing(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	keep := AddOrder(t, s, client, "keep")
	drop := AddOrder(t, s, client, "drop")

	orders, err := s.Orders(ctx)
	require.NoError(t, err)
	var rest []*domain.Order
	for _, o := range orders {
		if o.ID != drop.ID {
			rest = append(rest, o)
		}
	}
	require.NoError(t, s.SetNewOrders(ctx, rest))
	client, err = s.ClientByID(ctx, client.ID)
	require.NoError(t, err)
	require.NoError(t, s.RemoveOrderFromClient(ctx, client, drop))

	count, err := s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.OrderByID(ctx, keep.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "keep", got.Description)
	AssertRelationship(t, s)
}

func testUpdateOneClient(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	AddOrder(t, s, client, "kept")

	updated := client.Clone()
	updated.Name = "Alicia"
	updated.Password = "new-hash"
	updated.Photo = "cGhvdG8="
	require.NoError(t, s.UpdateOneClient(ctx, "Alice", updated))

	old, err := s.ClientByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Nil(t, old)

	got, err := s.ClientByName(ctx, "Alicia")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, client.ID, got.ID)
	assert.Equal(t, "new-hash", got.Password)
	assert.Equal(t, "cGhvdG8=", got.Photo)
	assert.Len(t, got.Orders, 1)
}

func testChangeClientPassword(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")

	require.NoError(t, s.ChangeClientPassword(ctx, client, "rotated"))

	got, err := s.ClientByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Password)
}

func testClientsLimitAndIDs(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		AddClient(t, s, fmt.Sprintf("client-%d", i))
	}

	limited, err := s.Clients(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := s.Clients(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	picked, err := s.ClientsByIDs(ctx, []int64{2, 4, 99})
	require.NoError(t, err)
	assert.Len(t, picked, 2)
}

func testClearRemovesEverything(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	AddOrder(t, s, client, "gone")

	require.NoError(t, s.Clear(ctx))

	clients, err := s.ClientsCount(ctx)
	require.NoError(t, err)
	orders, err := s.OrdersCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, clients)
	assert.Zero(t, orders)

	next, err := s.NextClientID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, next)
}

func testNextOrderIDFollowsMaxAfterGaps(t *testing.T, s domain.Store) {
	ctx := context.Background()
	client := AddClient(t, s, "Alice")
	first := AddOrder(t, s, client, "one")
	AddOrder(t, s, client, "two")
	AddOrder(t, s, client, "three")

	require.NoError(t, s.RemoveOrderFromClient(ctx, client, first))
	require.NoError(t, s.RemoveOrder(ctx, first))

	next, err := s.NextOrderID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, next)
}
