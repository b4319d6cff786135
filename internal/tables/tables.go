// Package tables tracks the dining room: table status transitions and the
// reservation log.
package tables

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

const (
	// Category is the document category table state persists under.
	Category = "tables"

	eventReservation = "reservation"
	eventSeat        = "seat"
	eventClear       = "clear"
)

// Status is a table's occupancy state.
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusReserved  Status = "reserved"
)

func (s Status) valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusReserved:
		return true
	}
	return false
}

// Table is one seatable table.
type Table struct {
	ID          int    `json:"id"`
	NumPpl      int    `json:"num_ppl"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Reservation is a logged booking request. Reservations never block a table;
// they are an advisory log the front of house works from.
type Reservation struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	PartySize int    `json:"party_size"`
	Time      string `json:"time"`
	CreatedAt string `json:"created_at"`
}

// Manager owns one tenant's dining room state.
type Manager struct {
	store     store.Store
	logg      *logger.Logger
	tenantKey string

	tables map[int]*Table
}

// NewManager loads the tenant's tables, seeding a default floor of
// tableCount tables on first use.
func NewManager(ctx context.Context, st store.Store, logg *logger.Logger, tenantKey string, tableCount int) (*Manager, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tables: store is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tables: logger is required")
	}
	if tenantKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tables: tenant key is required")
	}

	m := &Manager{
		store:     st,
		logg:      logg,
		tenantKey: tenantKey,
		tables:    map[int]*Table{},
	}

	var stored map[int]Table
	found, err := st.GetData(ctx, tenantKey, Category, &stored)
	if err != nil {
		return nil, err
	}
	if found {
		for id, tbl := range stored {
			entry := tbl
			entry.ID = id
			m.tables[id] = &entry
		}
		return m, nil
	}

	for i := 1; i <= tableCount; i++ {
		// capacities cycle 2, 4, 6 across the floor
		capacity := 2 + 2*((i-1)%3)
		m.tables[i] = &Table{
			ID:          i,
			NumPpl:      capacity,
			Description: fmt.Sprintf("Table %d", i),
			Status:      StatusAvailable,
		}
	}
	if tableCount > 0 {
		if err := m.persist(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns the table by id, nil when unknown.
func (m *Manager) Get(id int) *Table {
	tbl, ok := m.tables[id]
	if !ok {
		return nil
	}
	copied := *tbl
	return &copied
}

// Tables snapshots the floor, ordered by table id.
func (m *Manager) Tables() []Table {
	out := make([]Table, 0, len(m.tables))
	for _, tbl := range m.tables {
		out = append(out, *tbl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableTables returns available tables that fit the party, smallest
// fitting table first.
func (m *Manager) AvailableTables(partySize int) []Table {
	var out []Table
	for _, tbl := range m.tables {
		if tbl.Status == StatusAvailable && tbl.NumPpl >= partySize {
			out = append(out, *tbl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumPpl != out[j].NumPpl {
			return out[i].NumPpl < out[j].NumPpl
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MakeReservation appends a reservation to the event log. Reservation ids
// continue the count of prior reservations.
func (m *Manager) MakeReservation(ctx context.Context, name string, partySize int, when string) (Reservation, error) {
	if name == "" {
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "reservation name is required")
	}
	if partySize <= 0 {
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "party size must be positive")
	}

	prior, err := m.store.GetEvents(ctx, m.tenantKey, eventReservation)
	if err != nil {
		return Reservation{}, err
	}
	res := Reservation{
		ID:        len(prior) + 1,
		Name:      name,
		PartySize: partySize,
		Time:      when,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.store.LogEvent(ctx, m.tenantKey, eventReservation, res); err != nil {
		return Reservation{}, err
	}
	m.logg.Info(m.logg.WithTenantKey(ctx, m.tenantKey),
		fmt.Sprintf("reservation %d for %s (party of %d)", res.ID, name, partySize))
	return res, nil
}

// Reservations re-reads the reservation log, oldest first.
func (m *Manager) Reservations(ctx context.Context) ([]Reservation, error) {
	events, err := m.store.GetEvents(ctx, m.tenantKey, eventReservation)
	if err != nil {
		return nil, err
	}
	out := make([]Reservation, 0, len(events))
	for _, ev := range events {
		var res Reservation
		if err := ev.Decode(&res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// SeatParty marks the table occupied.
func (m *Manager) SeatParty(ctx context.Context, tableID int) error {
	return m.transition(ctx, tableID, StatusOccupied, eventSeat)
}

// ClearTable returns the table to available.
func (m *Manager) ClearTable(ctx context.Context, tableID int) error {
	return m.transition(ctx, tableID, StatusAvailable, eventClear)
}

// UpdateStatus sets an arbitrary valid status on the table.
func (m *Manager) UpdateStatus(ctx context.Context, tableID int, status Status) error {
	if !status.valid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown table status %q", status)
	}
	tbl, ok := m.tables[tableID]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "table %d not found", tableID)
	}
	tbl.Status = status
	return m.persist(ctx)
}

func (m *Manager) transition(ctx context.Context, tableID int, status Status, eventType string) error {
	tbl, ok := m.tables[tableID]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "table %d not found", tableID)
	}
	tbl.Status = status
	if err := m.persist(ctx); err != nil {
		return err
	}
	return m.store.LogEvent(ctx, m.tenantKey, eventType, map[string]any{
		"table_id":  tableID,
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *Manager) persist(ctx context.Context) error {
	snapshot := make(map[int]Table, len(m.tables))
	for id, tbl := range m.tables {
		snapshot[id] = *tbl
	}
	return m.store.SetData(ctx, m.tenantKey, Category, snapshot)
}
