// Package inventory keeps the per-tenant ingredient ledger: current
// quantities, a dual id/name index, and the restock/consume operations the
// order flow depends on.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

const (
	// Category is the document category the ledger persists under.
	Category = "inventory"

	eventInventoryUpdate = "inventory_update"
)

// Ingredient is one ledger entry. Quantity is a physical amount in Unit;
// Cost is the per-unit purchase price.
type Ingredient struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Quantity  float64         `json:"quantity" validate:"gte=0"`
	Unit      string          `json:"unit" validate:"required"`
	Available bool            `json:"available"`
	Cost      decimal.Decimal `json:"cost"`
	Supplier  string          `json:"supplier,omitempty"`
}

var validate = validator.New()

// Manager owns one tenant's ledger. It is loaded fresh from the store on
// construction and writes every successful mutation back synchronously.
type Manager struct {
	store     store.Store
	logg      *logger.Logger
	tenantKey string

	byID   map[string]*Ingredient
	byName map[string]string
}

// NewManager loads the tenant's ledger and builds the dual index.
func NewManager(ctx context.Context, st store.Store, logg *logger.Logger, tenantKey string) (*Manager, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory: store is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory: logger is required")
	}
	if tenantKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory: tenant key is required")
	}

	m := &Manager{
		store:     st,
		logg:      logg,
		tenantKey: tenantKey,
		byID:      map[string]*Ingredient{},
		byName:    map[string]string{},
	}

	var stored map[string]Ingredient
	if _, err := st.GetData(ctx, tenantKey, Category, &stored); err != nil {
		return nil, err
	}
	for id, ing := range stored {
		entry := ing
		entry.ID = id
		m.byID[id] = &entry
		m.byName[entry.Name] = id
	}
	return m, nil
}

// Get returns the ledger entry for id, or nil when unknown.
func (m *Manager) Get(id string) *Ingredient {
	entry, ok := m.byID[id]
	if !ok {
		return nil
	}
	copied := *entry
	return &copied
}

// GetByName resolves through the secondary index; nil when unknown.
func (m *Manager) GetByName(name string) *Ingredient {
	id, ok := m.byName[name]
	if !ok {
		return nil
	}
	return m.Get(id)
}

// GetByIDOrName tries the id index first, then the name index.
func (m *Manager) GetByIDOrName(ref string) *Ingredient {
	if entry := m.Get(ref); entry != nil {
		return entry
	}
	return m.GetByName(ref)
}

// HasEnough reports whether the ledger can satisfy the required amount. It
// never errors: any mismatch, including an unknown id, reads as false.
func (m *Manager) HasEnough(required Ingredient) bool {
	stored, ok := m.byID[required.ID]
	if !ok {
		return false
	}
	return stored.Name == required.Name &&
		stored.Unit == required.Unit &&
		stored.Quantity >= required.Quantity &&
		stored.Available
}

// Add restocks an existing entry additively, or inserts a new one. A new
// entry whose name collides with a different id is a conflict.
func (m *Manager) Add(ctx context.Context, ing Ingredient) error {
	if err := validate.Struct(ing); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ingredient")
	}

	if existing, ok := m.byID[ing.ID]; ok {
		existing.Quantity += ing.Quantity
		if existing.Quantity > 0 {
			existing.Available = true
		}
		return m.persist(ctx, "restock", existing.ID, existing.Quantity)
	}

	if otherID, ok := m.byName[ing.Name]; ok && otherID != ing.ID {
		return pkgerrors.Newf(pkgerrors.CodeConflict,
			"ingredient name %q already registered under id %s", ing.Name, otherID)
	}

	entry := ing
	m.byID[entry.ID] = &entry
	m.byName[entry.Name] = entry.ID
	return m.persist(ctx, "insert", entry.ID, entry.Quantity)
}

// Remove consumes qty units of the ingredient. It reports false without
// touching the ledger when stock is insufficient or the id is unknown. An
// entry drained to zero stays in both indexes as a zero row so restocks and
// name lookups keep working.
func (m *Manager) Remove(ctx context.Context, id string, qty float64) (bool, error) {
	entry, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if qty < 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}
	if entry.Quantity < qty {
		return false, nil
	}

	entry.Quantity -= qty
	if entry.Quantity <= 0 {
		entry.Quantity = 0
		entry.Available = false
	}
	if err := m.persist(ctx, "consume", id, entry.Quantity); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveByName is Remove through the secondary index.
func (m *Manager) RemoveByName(ctx context.Context, name string, qty float64) (bool, error) {
	id, ok := m.byName[name]
	if !ok {
		return false, nil
	}
	return m.Remove(ctx, id, qty)
}

// Override replaces the whole ledger. Used by data seeding and corrections.
func (m *Manager) Override(ctx context.Context, entries []Ingredient) error {
	byID := make(map[string]*Ingredient, len(entries))
	byName := make(map[string]string, len(entries))
	for _, ing := range entries {
		if err := validate.Struct(ing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ingredient")
		}
		if otherID, ok := byName[ing.Name]; ok && otherID != ing.ID {
			return pkgerrors.Newf(pkgerrors.CodeConflict,
				"ingredient name %q duplicated across ids %s and %s", ing.Name, otherID, ing.ID)
		}
		entry := ing
		byID[entry.ID] = &entry
		byName[entry.Name] = entry.ID
	}
	m.byID = byID
	m.byName = byName
	return m.persist(ctx, "override", "", float64(len(entries)))
}

// Inventory snapshots the ledger, sorted by name.
func (m *Manager) Inventory() []Ingredient {
	out := make([]Ingredient, 0, len(m.byID))
	for _, entry := range m.byID {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) persist(ctx context.Context, action, id string, qty float64) error {
	snapshot := make(map[string]Ingredient, len(m.byID))
	for entryID, entry := range m.byID {
		snapshot[entryID] = *entry
	}
	if err := m.store.SetData(ctx, m.tenantKey, Category, snapshot); err != nil {
		return err
	}
	payload := map[string]any{
		"action":    action,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if id != "" {
		payload["ingredient_id"] = id
		payload["quantity"] = qty
	}
	if err := m.store.LogEvent(ctx, m.tenantKey, eventInventoryUpdate, payload); err != nil {
		return err
	}
	m.logg.Debug(m.logg.WithTenantKey(ctx, m.tenantKey),
		fmt.Sprintf("inventory %s: %s", action, id))
	return nil
}
