package consumption

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/inventory"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/orders"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store/storetest"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

const tenant = "tenant-1"

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "consumption-test"})
}

func newFixture(t *testing.T) (*Analyzer, *storetest.Store, time.Time) {
	t.Helper()
	st := storetest.New()
	a, err := NewAnalyzer(st, testLogger())
	require.NoError(t, err)

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	return a, st, now
}

func seedTicket(t *testing.T, st *storetest.Store, at time.Time, menuItem string, lines []inventory.Ingredient) {
	t.Helper()
	ticket := orders.Ticket{
		ID:     1,
		Status: orders.TicketClosed,
		Orders: []orders.Order{{
			Status: orders.OrderPending,
			Items:  []orders.OrderLine{{ItemID: "item-1", Name: menuItem, Ingredients: lines}},
		}},
	}
	require.NoError(t, st.SeedEvent(tenant, "closed_ticket", ticket, at))
}

func TestAnalyzePatterns_NoData(t *testing.T) {
	a, _, _ := newFixture(t)

	_, err := a.AnalyzePatterns(context.Background(), tenant)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoData))
}

func TestAnalyzePatterns(t *testing.T) {
	a, st, now := newFixture(t)
	ctx := context.Background()

	flour := func(qty float64) []inventory.Ingredient {
		return []inventory.Ingredient{{ID: "ing-flour", Name: "Flour", Quantity: qty, Unit: "lbs"}}
	}
	seedTicket(t, st, now.Add(-49*time.Hour), "Pasta", flour(2))
	seedTicket(t, st, now.Add(-25*time.Hour), "Pizza", flour(4))
	seedTicket(t, st, now.Add(-1*time.Hour), "Pasta", flour(6))

	report, err := a.AnalyzePatterns(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TicketsAnalyzed)
	assert.Equal(t, 2, report.AnalysisPeriodDays)

	pattern, ok := report.PerIngredient["ing-flour"]
	require.True(t, ok)
	assert.InDelta(t, 12.0, pattern.TotalUsage, 1e-9)
	assert.InDelta(t, 4.0, pattern.AvgUsagePerOrder, 1e-9)
	assert.InDelta(t, 2.0, pattern.UsageVolatility, 1e-9) // stdev of 2,4,6
	assert.Equal(t, 2, pattern.TimeSpanDays)              // 48h span
	assert.InDelta(t, 6.0, pattern.AvgDailyUsage, 1e-9)
	assert.InDelta(t, 0.25, pattern.AvgHourlyUsage, 1e-9)
	assert.Equal(t, []string{"Pasta", "Pizza"}, pattern.MenuItems)
	assert.Equal(t, 3, pattern.EventCount)

	// all three events land at 11:00 UTC
	assert.Equal(t, []int{11}, pattern.PeakHours)
}

func TestAnalyzePatterns_SingleSampleVolatilityZero(t *testing.T) {
	a, st, now := newFixture(t)

	seedTicket(t, st, now.Add(-1*time.Hour), "Pasta",
		[]inventory.Ingredient{{ID: "ing-egg", Name: "Egg", Quantity: 3, Unit: "pcs"}})

	report, err := a.AnalyzePatterns(context.Background(), tenant)
	require.NoError(t, err)
	pattern := report.PerIngredient["ing-egg"]
	assert.Zero(t, pattern.UsageVolatility)
	assert.Equal(t, 1, pattern.TimeSpanDays)
	assert.InDelta(t, 3.0/24.0, pattern.AvgHourlyUsage, 1e-9)
}

func TestPredictStockoutTime(t *testing.T) {
	a, _, now := newFixture(t)

	never := a.PredictStockoutTime(10, 0)
	assert.True(t, never.Sub(now) >= 364*24*time.Hour)

	predicted := a.PredictStockoutTime(2, 0.5)
	assert.InDelta(t, 6.0, predicted.Sub(now).Hours(), 1e-9) // 4h + 2h buffer
}

func TestLowStockWarnings(t *testing.T) {
	a, st, now := newFixture(t)
	ctx := context.Background()

	inv, err := inventory.NewManager(ctx, st, testLogger(), tenant)
	require.NoError(t, err)
	require.NoError(t, inv.Add(ctx, inventory.Ingredient{
		ID: "ing-a", Name: "Saffron", Quantity: 2, Unit: "g", Available: true, Supplier: "SpiceCo",
	}))
	require.NoError(t, inv.Add(ctx, inventory.Ingredient{
		ID: "ing-b", Name: "Butter", Quantity: 18, Unit: "lbs", Available: true,
	}))
	require.NoError(t, inv.Add(ctx, inventory.Ingredient{
		ID: "ing-c", Name: "Salt", Quantity: 100, Unit: "lbs", Available: true,
	}))

	// two tickets within one day: ing-a at 0.5/h, ing-b at 1.0/h, ing-c at 1.25/h
	lines := func(a, b, c float64) []inventory.Ingredient {
		return []inventory.Ingredient{
			{ID: "ing-a", Name: "Saffron", Quantity: a, Unit: "g"},
			{ID: "ing-b", Name: "Butter", Quantity: b, Unit: "lbs"},
			{ID: "ing-c", Name: "Salt", Quantity: c, Unit: "lbs"},
		}
	}
	seedTicket(t, st, now.Add(-20*time.Hour), "Risotto", lines(6, 12, 15))
	seedTicket(t, st, now.Add(-2*time.Hour), "Risotto", lines(6, 12, 15))

	warnings, err := a.LowStockWarnings(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, warnings, 2)

	// ing-a: 2/0.5 + 2h = 6h -> critical, first
	assert.Equal(t, "ing-a", warnings[0].IngredientID)
	assert.Equal(t, SeverityCritical, warnings[0].Severity)
	assert.InDelta(t, 6.0, warnings[0].PredictedRunout.Sub(now).Hours(), 1e-9)
	assert.InDelta(t, 0.25, warnings[0].DaysRemaining, 1e-9)
	assert.Equal(t, "SpiceCo", warnings[0].Supplier)
	assert.Equal(t, []string{"Risotto"}, warnings[0].MenuItemsAffected)

	// ing-b: 18/1 + 2h = 20h -> medium
	assert.Equal(t, "ing-b", warnings[1].IngredientID)
	assert.Equal(t, SeverityMedium, warnings[1].Severity)

	// ing-c: 100/1.25 + 2h = 82h, beyond the warning window
}

func TestLowStockWarnings_NoHistoryIsNoData(t *testing.T) {
	a, st, _ := newFixture(t)
	ctx := context.Background()

	inv, err := inventory.NewManager(ctx, st, testLogger(), tenant)
	require.NoError(t, err)
	require.NoError(t, inv.Add(ctx, inventory.Ingredient{
		ID: "ing-a", Name: "Saffron", Quantity: 2, Unit: "g", Available: true,
	}))

	_, err = a.LowStockWarnings(ctx, tenant)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoData))
}

func TestConsumptionForecast(t *testing.T) {
	a, st, now := newFixture(t)
	ctx := context.Background()

	flour := []inventory.Ingredient{{ID: "ing-flour", Name: "Flour", Quantity: 6, Unit: "lbs"}}
	seedTicket(t, st, now.Add(-20*time.Hour), "Pasta", flour)
	seedTicket(t, st, now.Add(-2*time.Hour), "Pasta", flour)

	forecast, err := a.ConsumptionForecast(ctx, tenant, "ing-flour", 48)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, forecast.AvgHourlyUsage, 1e-9)
	assert.InDelta(t, 12.0, forecast.PredictedUsage24, 1e-9)
	assert.InDelta(t, 24.0, forecast.PredictedUsage48, 1e-9)
	assert.InDelta(t, 24.0, forecast.PredictedUsage, 1e-9)
	assert.Equal(t, 2, forecast.DataPoints)
	assert.Greater(t, forecast.ConfidenceLevel, 0.0)
	assert.LessOrEqual(t, forecast.ConfidenceLevel, 1.0)

	_, err = a.ConsumptionForecast(ctx, tenant, "ing-ghost", 24)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoData))
}
