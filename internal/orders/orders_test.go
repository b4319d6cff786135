package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/inventory"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store/storetest"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

const tenant = "tenant-1"

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test"})
}

func newTestManager(t *testing.T) (*Manager, *inventory.Manager, *storetest.Store) {
	t.Helper()
	ctx := context.Background()
	st := storetest.New()

	inv, err := inventory.NewManager(ctx, st, testLogger(), tenant)
	require.NoError(t, err)
	m, err := NewManager(ctx, st, testLogger(), nil, inv, tenant)
	require.NoError(t, err)
	return m, inv, st
}

func flourRequirement(qty float64) inventory.Ingredient {
	return inventory.Ingredient{ID: "ing-flour", Name: "Flour", Quantity: qty, Unit: "lbs"}
}

func stockFlour(t *testing.T, inv *inventory.Manager, qty float64) {
	t.Helper()
	require.NoError(t, inv.Add(context.Background(), inventory.Ingredient{
		ID: "ing-flour", Name: "Flour", Quantity: qty, Unit: "lbs", Available: true,
	}))
}

func addPasta(t *testing.T, m *Manager, perOrder float64) {
	t.Helper()
	require.NoError(t, m.AddMenuItem(context.Background(), MenuItem{
		ID:          "item-pasta",
		Name:        "Pasta",
		Price:       decimal.NewFromInt(15),
		Category:    "mains",
		Ingredients: []inventory.Ingredient{flourRequirement(perOrder)},
	}))
}

func TestCreateTicket_PersistedMonotonicCounter(t *testing.T) {
	m, _, st := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateTicket(ctx, 3)
	require.NoError(t, err)
	second, err := m.CreateTicket(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, TicketOpen, first.Status)
	assert.True(t, first.Total.IsZero())

	// counter survives a rebuild
	inv, err := inventory.NewManager(ctx, st, testLogger(), tenant)
	require.NoError(t, err)
	rebuilt, err := NewManager(ctx, st, testLogger(), nil, inv, tenant)
	require.NoError(t, err)
	third, err := rebuilt.CreateTicket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, third.ID)
}

func TestPlaceOrder_TicketTotalTracksOrders(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 100)
	addPasta(t, m, 2)

	ticket, err := m.CreateTicket(ctx, 3)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		order, err := m.PlaceOrder(ctx, 3, "item-pasta", &ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, OrderPending, order.Status)

		current, err := m.Ticket(ticket.ID)
		require.NoError(t, err)
		assert.True(t, current.Total.Equal(sumOrderTotals(current.Orders)),
			"total must equal the sum of order totals after order %d", i)
		assert.True(t, current.Total.Equal(decimal.NewFromInt(int64(15*i))))
	}
}

func TestPlaceOrder_DeductsExactly(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 10)
	addPasta(t, m, 2)

	ticket, err := m.CreateTicket(ctx, 1)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, 1, "item-pasta", &ticket.ID)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, 1, "item-pasta", &ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, 6.0, inv.Get("ing-flour").Quantity)
}

func TestPlaceOrder_InsufficientStockRejects(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	// $15 item needs 2 units, only 1 in stock
	stockFlour(t, inv, 1)
	addPasta(t, m, 2)

	ticket, err := m.CreateTicket(ctx, 3)
	require.NoError(t, err)

	order, err := m.PlaceOrder(ctx, 3, "item-pasta", &ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderRejected, order.Status)
	assert.Equal(t, ReasonInsufficient, order.Reason)

	current, err := m.Ticket(ticket.ID)
	require.NoError(t, err)
	assert.True(t, current.Total.IsZero())
	assert.Empty(t, current.Orders)
	assert.Equal(t, 1.0, inv.Get("ing-flour").Quantity)
}

func TestPlaceOrder_UnknownItemRejects(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	order, err := m.PlaceOrder(ctx, 3, "item-ghost", nil)
	require.NoError(t, err)
	assert.Equal(t, OrderRejected, order.Status)
	assert.Equal(t, ReasonItemNotFound, order.Reason)
}

func TestPlaceOrder_UnknownTicketIsHardError(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 10)
	addPasta(t, m, 2)

	missing := 42
	_, err := m.PlaceOrder(ctx, 3, "item-pasta", &missing)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	// nothing consumed
	assert.Equal(t, 10.0, inv.Get("ing-flour").Quantity)
}

func TestPlaceOrder_StandaloneOrderIsLogged(t *testing.T) {
	m, inv, st := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 10)
	addPasta(t, m, 2)

	order, err := m.PlaceOrder(ctx, 7, "item-pasta", nil)
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)

	events, err := st.GetEvents(ctx, tenant, "order")
	require.NoError(t, err)
	require.Len(t, events, 1)
	var logged Order
	require.NoError(t, events[0].Decode(&logged))
	assert.Equal(t, order.ID, logged.ID)
}

func TestPlaceOrder_RecomputesAvailability(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 2)
	addPasta(t, m, 2)
	require.True(t, m.MenuItemByID("item-pasta").Available)

	_, err := m.PlaceOrder(ctx, 3, "item-pasta", nil)
	require.NoError(t, err)

	// the last serving drained the flour
	assert.False(t, m.MenuItemByID("item-pasta").Available)
}

func TestCloseTicket_ArchivesAndRemoves(t *testing.T) {
	m, inv, st := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 10)
	addPasta(t, m, 2)

	ticket, err := m.CreateTicket(ctx, 3)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, 3, "item-pasta", &ticket.ID)
	require.NoError(t, err)

	closed, err := m.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, TicketClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = m.Ticket(ticket.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	events, err := st.GetEvents(ctx, tenant, "closed_ticket")
	require.NoError(t, err)
	require.Len(t, events, 1)
	var archived Ticket
	require.NoError(t, events[0].Decode(&archived))
	assert.Equal(t, ticket.ID, archived.ID)
	require.Len(t, archived.Orders, 1)
}

func TestCloseTicket_UnknownIsHardError(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.CloseTicket(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateOrderStatus(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 10)
	addPasta(t, m, 2)

	ticket, err := m.CreateTicket(ctx, 3)
	require.NoError(t, err)
	order, err := m.PlaceOrder(ctx, 3, "item-pasta", &ticket.ID)
	require.NoError(t, err)

	updated, err := m.UpdateOrderStatus(ctx, order.ID, OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, OrderCompleted, updated.Status)

	_, err = m.UpdateOrderStatus(ctx, order.ID, OrderStatus("simmering"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = m.UpdateOrderStatus(ctx, "ghost", OrderCompleted)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMenuManagement(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 10)
	addPasta(t, m, 2)

	err := m.AddMenuItem(ctx, MenuItem{ID: "item-pasta", Name: "Dup", Category: "mains"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	moved := MenuItem{
		ID: "item-pasta", Name: "Pasta Special", Price: decimal.NewFromInt(18),
		Category: "specials", Ingredients: []inventory.Ingredient{flourRequirement(2)},
	}
	require.NoError(t, m.UpdateMenuItem(ctx, moved))
	menu := m.Menu()
	assert.NotContains(t, menu, "mains")
	require.Len(t, menu["specials"], 1)
	assert.Equal(t, "Pasta Special", menu["specials"][0].Name)

	require.NoError(t, m.SetItemAvailability(ctx, "item-pasta", false))
	assert.False(t, m.MenuItemByID("item-pasta").Available)
	require.NoError(t, m.RefreshAvailability(ctx))
	assert.True(t, m.MenuItemByID("item-pasta").Available)

	require.NoError(t, m.RemoveMenuItem(ctx, "item-pasta"))
	assert.Nil(t, m.MenuItemByID("item-pasta"))
	err = m.RemoveMenuItem(ctx, "item-pasta")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOrdersAggregation(t *testing.T) {
	m, inv, _ := newTestManager(t)
	ctx := context.Background()

	stockFlour(t, inv, 100)
	addPasta(t, m, 2)

	ticket, err := m.CreateTicket(ctx, 3)
	require.NoError(t, err)
	onTicket, err := m.PlaceOrder(ctx, 3, "item-pasta", &ticket.ID)
	require.NoError(t, err)
	standalone, err := m.PlaceOrder(ctx, 4, "item-pasta", nil)
	require.NoError(t, err)

	all, err := m.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := m.OrderByID(ctx, onTicket.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Table)
	got, err = m.OrderByID(ctx, standalone.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Table)

	_, err = m.OrderByID(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
