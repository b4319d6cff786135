// Package restaurant is the composition root: it binds one tenant key to the
// managers and analyzers and serializes mutations per tenant. Manager state
// is rebuilt from the store inside every operation, so there is no
// cross-request cache to go stale.
package restaurant

import (
	"context"
	"time"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/analytics/consumption"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/analytics/schedule"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/inventory"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/orders"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/staff"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/tables"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/locks"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/metrics"
)

// Deps are the shared dependencies a Restaurant is built from. Metrics may
// be nil.
type Deps struct {
	Store   store.Store
	Locker  locks.Locker
	Logger  *logger.Logger
	Metrics *metrics.CoreMetrics
}

func (d Deps) validate() error {
	if d.Store == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "restaurant: store is required")
	}
	if d.Locker == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "restaurant: locker is required")
	}
	if d.Logger == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "restaurant: logger is required")
	}
	return nil
}

// Restaurant is the per-tenant API surface.
type Restaurant struct {
	deps       Deps
	key        string
	name       string
	tableCount int
}

// New registers a new tenant and returns its facade.
func New(ctx context.Context, deps Deps, name string) (*Restaurant, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	key, err := deps.Store.CreateRestaurant(ctx, name)
	if err != nil {
		return nil, err
	}
	return Open(ctx, deps, key)
}

// Open binds an existing tenant; unknown keys are NOT_FOUND.
func Open(ctx context.Context, deps Deps, key string) (*Restaurant, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	record, err := deps.Store.GetRestaurant(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Restaurant{
		deps:       deps,
		key:        record.Key,
		name:       record.Name,
		tableCount: record.TableCount,
	}, nil
}

// OpenOrCreate opens the tenant, registering it under the given key first
// when it does not exist yet.
func OpenOrCreate(ctx context.Context, deps Deps, key, name string) (*Restaurant, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	r, err := Open(ctx, deps, key)
	if err == nil {
		return r, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	if err := deps.Store.CreateRestaurantWithKey(ctx, name, key); err != nil {
		return nil, err
	}
	return Open(ctx, deps, key)
}

// Key returns the tenant key.
func (r *Restaurant) Key() string { return r.key }

// Name returns the restaurant's display name.
func (r *Restaurant) Name() string { return r.name }

// withLock serializes the mutation against all other writers for this
// tenant. Managers are built inside the critical section so the mutation
// works on freshly loaded state.
func (r *Restaurant) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := r.deps.Locker.Acquire(ctx, r.key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (r *Restaurant) inventoryManager(ctx context.Context) (*inventory.Manager, error) {
	return inventory.NewManager(ctx, r.deps.Store, r.deps.Logger, r.key)
}

func (r *Restaurant) tableManager(ctx context.Context) (*tables.Manager, error) {
	return tables.NewManager(ctx, r.deps.Store, r.deps.Logger, r.key, r.tableCount)
}

func (r *Restaurant) staffManager(ctx context.Context) (*staff.Manager, error) {
	return staff.NewManager(ctx, r.deps.Store, r.deps.Logger, r.key)
}

func (r *Restaurant) orderManager(ctx context.Context) (*orders.Manager, *inventory.Manager, error) {
	inv, err := r.inventoryManager(ctx)
	if err != nil {
		return nil, nil, err
	}
	ord, err := orders.NewManager(ctx, r.deps.Store, r.deps.Logger, r.deps.Metrics, inv, r.key)
	if err != nil {
		return nil, nil, err
	}
	return ord, inv, nil
}

// --- tickets and orders ---

func (r *Restaurant) CreateTicket(ctx context.Context, table int) (orders.Ticket, error) {
	var ticket orders.Ticket
	err := r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		ticket, err = ord.CreateTicket(ctx, table)
		return err
	})
	return ticket, err
}

func (r *Restaurant) PlaceOrder(ctx context.Context, table int, itemID string, ticketID *int) (orders.Order, error) {
	var order orders.Order
	err := r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		order, err = ord.PlaceOrder(ctx, table, itemID, ticketID)
		return err
	})
	return order, err
}

func (r *Restaurant) CloseTicket(ctx context.Context, ticketID int) (orders.Ticket, error) {
	var ticket orders.Ticket
	err := r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		ticket, err = ord.CloseTicket(ctx, ticketID)
		return err
	})
	return ticket, err
}

func (r *Restaurant) Ticket(ctx context.Context, ticketID int) (orders.Ticket, error) {
	ord, _, err := r.orderManager(ctx)
	if err != nil {
		return orders.Ticket{}, err
	}
	return ord.Ticket(ticketID)
}

func (r *Restaurant) Tickets(ctx context.Context) ([]orders.Ticket, error) {
	ord, _, err := r.orderManager(ctx)
	if err != nil {
		return nil, err
	}
	return ord.Tickets(), nil
}

func (r *Restaurant) UpdateOrderStatus(ctx context.Context, orderID string, status orders.OrderStatus) (orders.Order, error) {
	var order orders.Order
	err := r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		order, err = ord.UpdateOrderStatus(ctx, orderID, status)
		return err
	})
	return order, err
}

// --- menu ---

func (r *Restaurant) Menu(ctx context.Context) (map[string][]orders.MenuItem, error) {
	ord, _, err := r.orderManager(ctx)
	if err != nil {
		return nil, err
	}
	return ord.Menu(), nil
}

func (r *Restaurant) AddMenuItem(ctx context.Context, item orders.MenuItem) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		return ord.AddMenuItem(ctx, item)
	})
}

func (r *Restaurant) UpdateMenuItem(ctx context.Context, item orders.MenuItem) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		return ord.UpdateMenuItem(ctx, item)
	})
}

func (r *Restaurant) RemoveMenuItem(ctx context.Context, itemID string) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		ord, _, err := r.orderManager(ctx)
		if err != nil {
			return err
		}
		return ord.RemoveMenuItem(ctx, itemID)
	})
}

// --- inventory ---

func (r *Restaurant) AddIngredient(ctx context.Context, ing inventory.Ingredient) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		inv, err := r.inventoryManager(ctx)
		if err != nil {
			return err
		}
		return inv.Add(ctx, ing)
	})
}

func (r *Restaurant) RemoveIngredient(ctx context.Context, id string, qty float64) (bool, error) {
	var ok bool
	err := r.withLock(ctx, func(ctx context.Context) error {
		inv, err := r.inventoryManager(ctx)
		if err != nil {
			return err
		}
		ok, err = inv.Remove(ctx, id, qty)
		return err
	})
	return ok, err
}

func (r *Restaurant) GetIngredient(ctx context.Context, ref string) (*inventory.Ingredient, error) {
	inv, err := r.inventoryManager(ctx)
	if err != nil {
		return nil, err
	}
	return inv.GetByIDOrName(ref), nil
}

func (r *Restaurant) Inventory(ctx context.Context) ([]inventory.Ingredient, error) {
	inv, err := r.inventoryManager(ctx)
	if err != nil {
		return nil, err
	}
	return inv.Inventory(), nil
}

// --- staff ---

func (r *Restaurant) AddStaff(ctx context.Context, member staff.StaffMember) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.staffManager(ctx)
		if err != nil {
			return err
		}
		return mgr.Add(ctx, member)
	})
}

func (r *Restaurant) UpdateStaff(ctx context.Context, member staff.StaffMember) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.staffManager(ctx)
		if err != nil {
			return err
		}
		return mgr.Update(ctx, member)
	})
}

func (r *Restaurant) RemoveStaff(ctx context.Context, id string) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.staffManager(ctx)
		if err != nil {
			return err
		}
		return mgr.Remove(ctx, id)
	})
}

func (r *Restaurant) Staff(ctx context.Context) ([]staff.StaffMember, error) {
	mgr, err := r.staffManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.All(), nil
}

func (r *Restaurant) AvailableStaff(ctx context.Context, day, timeOfDay string) ([]staff.StaffMember, error) {
	mgr, err := r.staffManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.AvailableStaff(day, timeOfDay)
}

func (r *Restaurant) MarkAbsent(ctx context.Context, id, date string) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.staffManager(ctx)
		if err != nil {
			return err
		}
		return mgr.MarkAbsent(ctx, id, date)
	})
}

func (r *Restaurant) ClearAbsence(ctx context.Context, id, date string) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.staffManager(ctx)
		if err != nil {
			return err
		}
		return mgr.ClearAbsence(ctx, id, date)
	})
}

func (r *Restaurant) ScheduleForDay(ctx context.Context, day string) ([]staff.ScheduledShift, error) {
	mgr, err := r.staffManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.ScheduleForDay(day)
}

func (r *Restaurant) ScheduleForWeek(ctx context.Context) (map[string][]staff.ScheduledShift, error) {
	mgr, err := r.staffManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.ScheduleForWeek()
}

// --- tables ---

func (r *Restaurant) ReserveTable(ctx context.Context, name string, partySize int, when string) (tables.Reservation, error) {
	var res tables.Reservation
	err := r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.tableManager(ctx)
		if err != nil {
			return err
		}
		res, err = mgr.MakeReservation(ctx, name, partySize, when)
		return err
	})
	return res, err
}

func (r *Restaurant) SeatParty(ctx context.Context, tableID int) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.tableManager(ctx)
		if err != nil {
			return err
		}
		return mgr.SeatParty(ctx, tableID)
	})
}

func (r *Restaurant) ClearTable(ctx context.Context, tableID int) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		mgr, err := r.tableManager(ctx)
		if err != nil {
			return err
		}
		return mgr.ClearTable(ctx, tableID)
	})
}

func (r *Restaurant) Tables(ctx context.Context) ([]tables.Table, error) {
	mgr, err := r.tableManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.Tables(), nil
}

func (r *Restaurant) AvailableTables(ctx context.Context, partySize int) ([]tables.Table, error) {
	mgr, err := r.tableManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.AvailableTables(partySize), nil
}

// --- analytics ---

func (r *Restaurant) AnalyzeCoverage(ctx context.Context) ([]schedule.CoverageMetric, error) {
	a, err := schedule.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeCoverage(ctx, r.key)
}

func (r *Restaurant) AnalyzeUtilization(ctx context.Context) ([]schedule.UtilizationMetric, error) {
	a, err := schedule.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeUtilization(ctx, r.key)
}

func (r *Restaurant) SuggestAbsenceReplacements(ctx context.Context, absentID, date string) ([]schedule.ReplacementSuggestion, error) {
	a, err := schedule.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return nil, err
	}
	return a.SuggestAbsenceReplacements(ctx, r.key, absentID, date)
}

func (r *Restaurant) IdentifyScheduleWeaknesses(ctx context.Context) (schedule.WeaknessReport, error) {
	a, err := schedule.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return schedule.WeaknessReport{}, err
	}
	return a.IdentifyWeaknesses(ctx, r.key)
}

func (r *Restaurant) AnalyzeConsumptionPatterns(ctx context.Context) (consumption.PatternReport, error) {
	a, err := consumption.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return consumption.PatternReport{}, err
	}
	return a.AnalyzePatterns(ctx, r.key)
}

func (r *Restaurant) LowStockWarnings(ctx context.Context) ([]consumption.StockWarning, error) {
	a, err := consumption.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return nil, err
	}
	return a.LowStockWarnings(ctx, r.key)
}

func (r *Restaurant) PredictStockoutTime(currentQuantity, hourlyRate float64) (time.Time, error) {
	a, err := consumption.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return time.Time{}, err
	}
	return a.PredictStockoutTime(currentQuantity, hourlyRate), nil
}

func (r *Restaurant) ConsumptionForecast(ctx context.Context, ingredientID string, hoursAhead int) (consumption.Forecast, error) {
	a, err := consumption.NewAnalyzer(r.deps.Store, r.deps.Logger)
	if err != nil {
		return consumption.Forecast{}, err
	}
	return a.ConsumptionForecast(ctx, r.key, ingredientID, hoursAhead)
}
