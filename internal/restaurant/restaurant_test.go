package restaurant

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/inventory"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/orders"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/staff"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store/storetest"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/locks"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

func newDeps() Deps {
	return Deps{
		Store:  storetest.New(),
		Locker: locks.NewMemory(),
		Logger: logger.New(logger.Options{ServiceName: "restaurant-test"}),
	}
}

func newRestaurant(t *testing.T) *Restaurant {
	t.Helper()
	r, err := New(context.Background(), newDeps(), "Trattoria Nonna")
	require.NoError(t, err)
	return r
}

func TestNewAndOpen(t *testing.T) {
	deps := newDeps()
	ctx := context.Background()

	created, err := New(ctx, deps, "Trattoria Nonna")
	require.NoError(t, err)
	require.NotEmpty(t, created.Key())
	assert.Equal(t, "Trattoria Nonna", created.Name())

	opened, err := Open(ctx, deps, created.Key())
	require.NoError(t, err)
	assert.Equal(t, created.Key(), opened.Key())

	_, err = Open(ctx, deps, "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOpenOrCreate(t *testing.T) {
	deps := newDeps()
	ctx := context.Background()

	first, err := OpenOrCreate(ctx, deps, "tenant-1", "Trattoria Nonna")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", first.Key())

	again, err := OpenOrCreate(ctx, deps, "tenant-1", "Different Name")
	require.NoError(t, err)
	assert.Equal(t, "Trattoria Nonna", again.Name())
}

func TestOrderFlowEndToEnd(t *testing.T) {
	r := newRestaurant(t)
	ctx := context.Background()

	require.NoError(t, r.AddIngredient(ctx, inventory.Ingredient{
		ID: "ing-flour", Name: "Flour", Quantity: 10, Unit: "lbs", Available: true,
	}))
	require.NoError(t, r.AddMenuItem(ctx, orders.MenuItem{
		ID: "item-pasta", Name: "Pasta", Price: decimal.NewFromInt(15), Category: "mains",
		Ingredients: []inventory.Ingredient{{ID: "ing-flour", Name: "Flour", Quantity: 2, Unit: "lbs"}},
	}))

	ticket, err := r.CreateTicket(ctx, 3)
	require.NoError(t, err)

	order, err := r.PlaceOrder(ctx, 3, "item-pasta", &ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderPending, order.Status)

	current, err := r.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, current.Total.Equal(decimal.NewFromInt(15)))

	flour, err := r.GetIngredient(ctx, "Flour")
	require.NoError(t, err)
	require.NotNil(t, flour)
	assert.Equal(t, 8.0, flour.Quantity)

	closed, err := r.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.TicketClosed, closed.Status)

	_, err = r.Ticket(ctx, ticket.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	// the archive feeds the consumption analyzer
	report, err := r.AnalyzeConsumptionPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TicketsAnalyzed)
	assert.Contains(t, report.PerIngredient, "ing-flour")
}

func TestRejectedOrderScenario(t *testing.T) {
	r := newRestaurant(t)
	ctx := context.Background()

	require.NoError(t, r.AddIngredient(ctx, inventory.Ingredient{
		ID: "ing-truffle", Name: "Truffle", Quantity: 1, Unit: "oz", Available: true,
	}))
	require.NoError(t, r.AddMenuItem(ctx, orders.MenuItem{
		ID: "item-risotto", Name: "Truffle Risotto", Price: decimal.NewFromInt(15), Category: "mains",
		Ingredients: []inventory.Ingredient{{ID: "ing-truffle", Name: "Truffle", Quantity: 2, Unit: "oz"}},
	}))

	ticket, err := r.CreateTicket(ctx, 3)
	require.NoError(t, err)

	order, err := r.PlaceOrder(ctx, 3, "item-risotto", &ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderRejected, order.Status)
	assert.Equal(t, orders.ReasonInsufficient, order.Reason)

	current, err := r.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, current.Total.IsZero())

	truffle, err := r.GetIngredient(ctx, "ing-truffle")
	require.NoError(t, err)
	assert.Equal(t, 1.0, truffle.Quantity)
}

func TestConcurrentOrders_NeverOverdraw(t *testing.T) {
	r := newRestaurant(t)
	ctx := context.Background()

	require.NoError(t, r.AddIngredient(ctx, inventory.Ingredient{
		ID: "ing-flour", Name: "Flour", Quantity: 10, Unit: "lbs", Available: true,
	}))
	require.NoError(t, r.AddMenuItem(ctx, orders.MenuItem{
		ID: "item-pasta", Name: "Pasta", Price: decimal.NewFromInt(15), Category: "mains",
		Ingredients: []inventory.Ingredient{{ID: "ing-flour", Name: "Flour", Quantity: 2, Unit: "lbs"}},
	}))

	var wg sync.WaitGroup
	results := make(chan orders.Order, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := r.PlaceOrder(ctx, 1, "item-pasta", nil)
			if !assert.NoError(t, err) {
				return
			}
			results <- order
		}()
	}
	wg.Wait()
	close(results)

	pending := 0
	for order := range results {
		if order.Status == orders.OrderPending {
			pending++
		}
	}
	// 10 lbs at 2 per order serves exactly 5
	assert.Equal(t, 5, pending)

	flour, err := r.GetIngredient(ctx, "ing-flour")
	require.NoError(t, err)
	assert.Equal(t, 0.0, flour.Quantity)
}

func TestStaffAndScheduleSurface(t *testing.T) {
	r := newRestaurant(t)
	ctx := context.Background()

	require.NoError(t, r.AddStaff(ctx, staff.StaffMember{
		ID: "s1", Name: "Ana", Role: "Chef",
		Shifts: []staff.Shift{{DayOfWeek: "Monday", StartTime: "09:00", EndTime: "17:00"}},
	}))
	require.NoError(t, r.AddStaff(ctx, staff.StaffMember{
		ID: "s2", Name: "Ben", Role: "Line Cook",
		Shifts: []staff.Shift{{DayOfWeek: "Tuesday", StartTime: "09:00", EndTime: "17:00"}},
	}))

	roster, err := r.Staff(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	monday, err := r.ScheduleForDay(ctx, "Monday")
	require.NoError(t, err)
	require.Len(t, monday, 1)
	assert.Equal(t, "Ana", monday[0].Name)

	week, err := r.ScheduleForWeek(ctx)
	require.NoError(t, err)
	assert.Len(t, week["Tuesday"], 1)

	suggestions, err := r.SuggestAbsenceReplacements(ctx, "s1", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "s2", suggestions[0].StaffID)

	coverage, err := r.AnalyzeCoverage(ctx)
	require.NoError(t, err)
	assert.Len(t, coverage, 35)

	utilization, err := r.AnalyzeUtilization(ctx)
	require.NoError(t, err)
	assert.Len(t, utilization, 2)
}

func TestTableSurface(t *testing.T) {
	r := newRestaurant(t)
	ctx := context.Background()

	all, err := r.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)

	require.NoError(t, r.SeatParty(ctx, 1))
	available, err := r.AvailableTables(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, available, 9)

	require.NoError(t, r.ClearTable(ctx, 1))

	res, err := r.ReserveTable(ctx, "Ada", 2, "19:00")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ID)
}

func TestAnalyticsNoData(t *testing.T) {
	r := newRestaurant(t)
	ctx := context.Background()

	_, err := r.AnalyzeConsumptionPatterns(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoData))

	_, err = r.AnalyzeUtilization(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoData))
}
