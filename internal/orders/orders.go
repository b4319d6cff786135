// Package orders runs the ticket and order state machines: menu lookups,
// inventory deduction on placement, ticket totals, and the closed-ticket
// archive that analytics later read.
package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/inventory"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/metrics"
)

const (
	// MenuCategory is the document category the menu persists under.
	MenuCategory = "menu"
	// ActiveTicketsCategory holds the open ticket set.
	ActiveTicketsCategory = "active_tickets"
	// CounterCategory holds the persisted ticket id counter.
	CounterCategory = "ticket_counter"

	eventClosedTicket        = "closed_ticket"
	eventOrder               = "order"
	eventOrderUpdate         = "order_update"
	eventActiveTicketsUpdate = "active_tickets_update"

	// ReasonItemNotFound and ReasonInsufficient are the rejection reasons an
	// order can carry.
	ReasonItemNotFound = "item not found"
	ReasonInsufficient = "insufficient ingredients"
)

// TicketStatus is a ticket's lifecycle state. The transition is one-way.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// OrderStatus tracks an order after placement. Rejected is terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderRejected  OrderStatus = "rejected"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) valid() bool {
	switch s {
	case OrderPending, OrderRejected, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// MenuItem is one sellable dish. Ingredients carry the per-serving amounts
// the inventory check runs against.
type MenuItem struct {
	ID          string                 `json:"id" validate:"required"`
	Name        string                 `json:"name" validate:"required"`
	Price       decimal.Decimal        `json:"price"`
	Category    string                 `json:"category" validate:"required"`
	Description string                 `json:"description,omitempty"`
	Available   bool                   `json:"available"`
	Ingredients []inventory.Ingredient `json:"ingredients"`
}

// OrderLine is one menu item on an order. Ingredients snapshot the
// per-serving amounts at placement time, so consumption history stays
// accurate when the menu later changes.
type OrderLine struct {
	ItemID      string                 `json:"item_id"`
	Name        string                 `json:"name"`
	Price       decimal.Decimal        `json:"price"`
	Ingredients []inventory.Ingredient `json:"ingredients,omitempty"`
}

// Order is immutable after creation except for its status.
type Order struct {
	ID        string          `json:"id"`
	Table     int             `json:"table"`
	TicketID  *int            `json:"ticket_id,omitempty"`
	Items     []OrderLine     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Ticket is an open tab accumulating orders until closed.
type Ticket struct {
	ID        int             `json:"id"`
	Table     int             `json:"table"`
	Status    TicketStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	ClosedAt  *time.Time      `json:"closed_at,omitempty"`
	Orders    []Order         `json:"orders"`
	Total     decimal.Decimal `json:"total"`
}

type ticketCounter struct {
	Count int `json:"count"`
}

var validate = validator.New()

// Manager owns one tenant's menu, active tickets, and order flow. Mutating
// calls assume the caller serializes access per tenant.
type Manager struct {
	store     store.Store
	logg      *logger.Logger
	metrics   *metrics.CoreMetrics
	inv       *inventory.Manager
	tenantKey string

	menu    map[string][]MenuItem
	active  map[int]*Ticket
	counter int
}

// NewManager loads the tenant's menu, active tickets, and ticket counter.
// metrics may be nil.
func NewManager(ctx context.Context, st store.Store, logg *logger.Logger, m *metrics.CoreMetrics, inv *inventory.Manager, tenantKey string) (*Manager, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders: store is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders: logger is required")
	}
	if inv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders: inventory manager is required")
	}
	if tenantKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders: tenant key is required")
	}

	mgr := &Manager{
		store:     st,
		logg:      logg,
		metrics:   m,
		inv:       inv,
		tenantKey: tenantKey,
		menu:      map[string][]MenuItem{},
		active:    map[int]*Ticket{},
	}

	if _, err := st.GetData(ctx, tenantKey, MenuCategory, &mgr.menu); err != nil {
		return nil, err
	}
	if mgr.menu == nil {
		mgr.menu = map[string][]MenuItem{}
	}

	var stored map[int]Ticket
	if _, err := st.GetData(ctx, tenantKey, ActiveTicketsCategory, &stored); err != nil {
		return nil, err
	}
	for id, ticket := range stored {
		entry := ticket
		entry.ID = id
		mgr.active[id] = &entry
	}

	var counter ticketCounter
	if _, err := st.GetData(ctx, tenantKey, CounterCategory, &counter); err != nil {
		return nil, err
	}
	mgr.counter = counter.Count
	return mgr, nil
}

// CreateTicket opens a new tab for the table. Ticket ids come from a
// persisted monotonic counter so they survive restarts.
func (m *Manager) CreateTicket(ctx context.Context, table int) (Ticket, error) {
	m.counter++
	if err := m.store.SetData(ctx, m.tenantKey, CounterCategory, ticketCounter{Count: m.counter}); err != nil {
		m.counter--
		return Ticket{}, err
	}

	ticket := &Ticket{
		ID:        m.counter,
		Table:     table,
		Status:    TicketOpen,
		CreatedAt: time.Now().UTC(),
		Total:     decimal.Zero,
	}
	m.active[ticket.ID] = ticket
	if err := m.persistActive(ctx); err != nil {
		return Ticket{}, err
	}
	m.logg.Info(m.logg.WithTicketID(m.logg.WithTenantKey(ctx, m.tenantKey), ticket.ID),
		fmt.Sprintf("ticket opened for table %d", table))
	return *ticket, nil
}

// PlaceOrder runs the order flow for one menu item. A missing item or an
// inventory shortfall yields a rejected order, not an error; rejected orders
// never touch the ledger and never join a ticket. ticketID may be nil, in
// which case a pending order is logged as a standalone event.
func (m *Manager) PlaceOrder(ctx context.Context, table int, itemID string, ticketID *int) (Order, error) {
	if ticketID != nil {
		if _, ok := m.active[*ticketID]; !ok {
			return Order{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "ticket %d not found", *ticketID)
		}
	}

	item := m.MenuItemByID(itemID)
	if item == nil {
		return m.rejectOrder(ctx, table, ticketID, nil, ReasonItemNotFound)
	}
	for _, required := range item.Ingredients {
		if !m.inv.HasEnough(required) {
			return m.rejectOrder(ctx, table, ticketID, item, ReasonInsufficient)
		}
	}

	for _, required := range item.Ingredients {
		ok, err := m.inv.Remove(ctx, required.ID, required.Quantity)
		if err != nil {
			return Order{}, err
		}
		if !ok {
			// the availability check passed; a failing deduct means the
			// ledger changed underneath us mid-operation
			return Order{}, pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"ingredient %s drained between check and deduction", required.ID)
		}
	}
	if err := m.RefreshAvailability(ctx); err != nil {
		return Order{}, err
	}

	order := Order{
		ID:       uuid.NewString(),
		Table:    table,
		TicketID: ticketID,
		Items: []OrderLine{{
			ItemID:      item.ID,
			Name:        item.Name,
			Price:       item.Price,
			Ingredients: item.Ingredients,
		}},
		Total:     item.Price,
		Status:    OrderPending,
		Timestamp: time.Now().UTC(),
	}

	if ticketID != nil {
		ticket := m.active[*ticketID]
		ticket.Orders = append(ticket.Orders, order)
		ticket.Total = sumOrderTotals(ticket.Orders)
		if err := m.persistActive(ctx); err != nil {
			return Order{}, err
		}
	} else {
		if err := m.store.LogEvent(ctx, m.tenantKey, eventOrder, order); err != nil {
			return Order{}, err
		}
	}
	m.metrics.IncOrderPlaced(string(OrderPending))
	return order, nil
}

func (m *Manager) rejectOrder(ctx context.Context, table int, ticketID *int, item *MenuItem, reason string) (Order, error) {
	order := Order{
		ID:        uuid.NewString(),
		Table:     table,
		TicketID:  ticketID,
		Total:     decimal.Zero,
		Status:    OrderRejected,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if item != nil {
		order.Items = []OrderLine{{ItemID: item.ID, Name: item.Name, Price: item.Price}}
	}
	if err := m.store.LogEvent(ctx, m.tenantKey, eventOrder, order); err != nil {
		return Order{}, err
	}
	m.metrics.IncOrderPlaced(string(OrderRejected))
	m.logg.Warn(m.logg.WithTenantKey(ctx, m.tenantKey),
		fmt.Sprintf("order rejected: %s", reason))
	return order, nil
}

// CloseTicket closes the tab, archives it as a closed_ticket event, and
// drops it from the active set. Closing an unknown ticket is a hard error.
func (m *Manager) CloseTicket(ctx context.Context, ticketID int) (Ticket, error) {
	ticket, ok := m.active[ticketID]
	if !ok {
		return Ticket{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "ticket %d not found", ticketID)
	}

	now := time.Now().UTC()
	ticket.Status = TicketClosed
	ticket.ClosedAt = &now

	if err := m.store.LogEvent(ctx, m.tenantKey, eventClosedTicket, ticket); err != nil {
		return Ticket{}, err
	}
	closed := *ticket
	delete(m.active, ticketID)
	if err := m.persistActive(ctx); err != nil {
		return Ticket{}, err
	}
	m.metrics.IncTicketClosed()
	m.logg.Info(m.logg.WithTicketID(m.logg.WithTenantKey(ctx, m.tenantKey), ticketID),
		"ticket closed")
	return closed, nil
}

// Ticket returns an active ticket by id; unknown ids are NOT_FOUND.
func (m *Manager) Ticket(ticketID int) (Ticket, error) {
	ticket, ok := m.active[ticketID]
	if !ok {
		return Ticket{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "ticket %d not found", ticketID)
	}
	return *ticket, nil
}

// Tickets snapshots the active set, ordered by id.
func (m *Manager) Tickets() []Ticket {
	out := make([]Ticket, 0, len(m.active))
	for _, ticket := range m.active {
		out = append(out, *ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TicketOrders returns the orders on an active ticket.
func (m *Manager) TicketOrders(ticketID int) ([]Order, error) {
	ticket, err := m.Ticket(ticketID)
	if err != nil {
		return nil, err
	}
	return append([]Order(nil), ticket.Orders...), nil
}

// Orders aggregates orders across active tickets and standalone order
// events, oldest first.
func (m *Manager) Orders(ctx context.Context) ([]Order, error) {
	var out []Order
	for _, ticket := range m.Tickets() {
		out = append(out, ticket.Orders...)
	}
	events, err := m.store.GetEvents(ctx, m.tenantKey, eventOrder)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		var order Order
		if err := ev.Decode(&order); err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// OrderByID finds an order on any active ticket or in the standalone order
// log.
func (m *Manager) OrderByID(ctx context.Context, orderID string) (Order, error) {
	for _, ticket := range m.active {
		for _, order := range ticket.Orders {
			if order.ID == orderID {
				return order, nil
			}
		}
	}
	events, err := m.store.GetEvents(ctx, m.tenantKey, eventOrder)
	if err != nil {
		return Order{}, err
	}
	for _, ev := range events {
		var order Order
		if err := ev.Decode(&order); err != nil {
			return Order{}, err
		}
		if order.ID == orderID {
			return order, nil
		}
	}
	return Order{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
}

// UpdateOrderStatus changes the status of an order on an active ticket.
// Rejected orders are terminal.
func (m *Manager) UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error) {
	if !status.valid() {
		return Order{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", status)
	}
	for _, ticket := range m.active {
		for i := range ticket.Orders {
			if ticket.Orders[i].ID != orderID {
				continue
			}
			if ticket.Orders[i].Status == OrderRejected {
				return Order{}, pkgerrors.Newf(pkgerrors.CodeStateConflict,
					"order %s is rejected and cannot change status", orderID)
			}
			ticket.Orders[i].Status = status
			if err := m.persistActive(ctx); err != nil {
				return Order{}, err
			}
			if err := m.store.LogEvent(ctx, m.tenantKey, eventOrderUpdate, map[string]any{
				"order_id": orderID,
				"status":   status,
			}); err != nil {
				return Order{}, err
			}
			return ticket.Orders[i], nil
		}
	}
	return Order{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found on an active ticket", orderID)
}

// Menu snapshots the menu by category.
func (m *Manager) Menu() map[string][]MenuItem {
	out := make(map[string][]MenuItem, len(m.menu))
	for category, items := range m.menu {
		out[category] = append([]MenuItem(nil), items...)
	}
	return out
}

// MenuItemByID resolves an item across all categories; nil when unknown.
func (m *Manager) MenuItemByID(itemID string) *MenuItem {
	for _, items := range m.menu {
		for _, item := range items {
			if item.ID == itemID {
				copied := item
				copied.Ingredients = append([]inventory.Ingredient(nil), item.Ingredients...)
				return &copied
			}
		}
	}
	return nil
}

// AddMenuItem registers a dish. Availability is computed from the current
// ledger, not taken from the input.
func (m *Manager) AddMenuItem(ctx context.Context, item MenuItem) error {
	if err := validate.Struct(item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid menu item")
	}
	if m.MenuItemByID(item.ID) != nil {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "menu item %q already exists", item.ID)
	}
	item.Available = m.itemAvailable(item)
	m.menu[item.Category] = append(m.menu[item.Category], item)
	return m.persistMenu(ctx)
}

// UpdateMenuItem replaces an existing dish, moving it between categories
// when the category changed.
func (m *Manager) UpdateMenuItem(ctx context.Context, item MenuItem) error {
	if err := validate.Struct(item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid menu item")
	}
	if m.MenuItemByID(item.ID) == nil {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %q not found", item.ID)
	}
	m.deleteMenuItem(item.ID)
	item.Available = m.itemAvailable(item)
	m.menu[item.Category] = append(m.menu[item.Category], item)
	return m.persistMenu(ctx)
}

// RemoveMenuItem drops a dish from the menu.
func (m *Manager) RemoveMenuItem(ctx context.Context, itemID string) error {
	if m.MenuItemByID(itemID) == nil {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %q not found", itemID)
	}
	m.deleteMenuItem(itemID)
	return m.persistMenu(ctx)
}

// SetItemAvailability forces an item on or off, overriding the computed
// value until the next refresh.
func (m *Manager) SetItemAvailability(ctx context.Context, itemID string, available bool) error {
	for category, items := range m.menu {
		for i := range items {
			if items[i].ID == itemID {
				m.menu[category][i].Available = available
				return m.persistMenu(ctx)
			}
		}
	}
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %q not found", itemID)
}

// RefreshAvailability recomputes every item's availability from the ledger
// and persists the menu.
func (m *Manager) RefreshAvailability(ctx context.Context) error {
	for category, items := range m.menu {
		for i := range items {
			m.menu[category][i].Available = m.itemAvailable(items[i])
		}
	}
	return m.persistMenu(ctx)
}

func (m *Manager) itemAvailable(item MenuItem) bool {
	for _, required := range item.Ingredients {
		if !m.inv.HasEnough(required) {
			return false
		}
	}
	return true
}

func (m *Manager) deleteMenuItem(itemID string) {
	for category, items := range m.menu {
		filtered := items[:0]
		for _, item := range items {
			if item.ID != itemID {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) == 0 {
			delete(m.menu, category)
		} else {
			m.menu[category] = filtered
		}
	}
}

func (m *Manager) persistMenu(ctx context.Context) error {
	return m.store.SetData(ctx, m.tenantKey, MenuCategory, m.menu)
}

func (m *Manager) persistActive(ctx context.Context) error {
	snapshot := make(map[int]Ticket, len(m.active))
	for id, ticket := range m.active {
		snapshot[id] = *ticket
	}
	if err := m.store.SetData(ctx, m.tenantKey, ActiveTicketsCategory, snapshot); err != nil {
		return err
	}
	return m.store.LogEvent(ctx, m.tenantKey, eventActiveTicketsUpdate, map[string]any{
		"active_count": len(snapshot),
	})
}

func sumOrderTotals(orders []Order) decimal.Decimal {
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(order.Total)
	}
	return total
}
