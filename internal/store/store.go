// Package store persists tenant state. Each restaurant owns one root record,
// one JSON document per category (last write wins), and an append-only event
// log. Everything above this package works with decoded Go values; only this
// package touches rows.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/metrics"
)

// Store is the persistence contract the managers build on.
type Store interface {
	// CreateRestaurant registers a new tenant and returns its generated key.
	CreateRestaurant(ctx context.Context, name string) (string, error)
	// CreateRestaurantWithKey registers a tenant under a caller-chosen key.
	CreateRestaurantWithKey(ctx context.Context, name, key string) error
	GetRestaurant(ctx context.Context, key string) (*Restaurant, error)
	ListRestaurants(ctx context.Context) ([]Restaurant, error)

	// SetData replaces the document stored under (key, category).
	SetData(ctx context.Context, key, category string, value any) error
	// GetData decodes the document under (key, category) into out. The bool
	// reports whether a document existed; absence is not an error.
	GetData(ctx context.Context, key, category string, out any) (bool, error)

	LogEvent(ctx context.Context, key, eventType string, payload any) error
	// GetEvents returns the tenant's events of one type, oldest first. An
	// empty eventType returns every event for the tenant.
	GetEvents(ctx context.Context, key, eventType string) ([]Event, error)
}

// Gorm implements Store on a relational database.
type Gorm struct {
	conn    *gorm.DB
	logg    *logger.Logger
	metrics *metrics.CoreMetrics
}

var _ Store = (*Gorm)(nil)

// NewGorm builds a Store on an open gorm connection. metrics may be nil.
func NewGorm(conn *gorm.DB, logg *logger.Logger, m *metrics.CoreMetrics) (*Gorm, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store: conn is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store: logger is required")
	}
	return &Gorm{conn: conn, logg: logg, metrics: m}, nil
}

func (g *Gorm) CreateRestaurant(ctx context.Context, name string) (string, error) {
	key := uuid.NewString()
	if err := g.CreateRestaurantWithKey(ctx, name, key); err != nil {
		return "", err
	}
	return key, nil
}

func (g *Gorm) CreateRestaurantWithKey(ctx context.Context, name, key string) error {
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant name is required")
	}
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant key is required")
	}

	var existing int64
	if err := g.conn.WithContext(ctx).Model(&restaurantRow{}).
		Where("key = ?", key).Count(&existing).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "checking restaurant key")
	}
	if existing > 0 {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "restaurant %q already exists", key)
	}

	row := restaurantRow{
		Key:        key,
		Name:       name,
		TableCount: defaultTableCount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := g.conn.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "creating restaurant")
	}
	g.logg.Info(g.logg.WithTenantKey(ctx, key), "restaurant created: "+name)
	return nil
}

func (g *Gorm) GetRestaurant(ctx context.Context, key string) (*Restaurant, error) {
	var row restaurantRow
	err := g.conn.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "restaurant %q not found", key)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "fetching restaurant")
	}
	return &Restaurant{
		Key:        row.Key,
		Name:       row.Name,
		TableCount: row.TableCount,
		CreatedAt:  row.CreatedAt,
	}, nil
}

func (g *Gorm) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	var rows []restaurantRow
	if err := g.conn.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "listing restaurants")
	}
	out := make([]Restaurant, 0, len(rows))
	for _, row := range rows {
		out = append(out, Restaurant{
			Key:        row.Key,
			Name:       row.Name,
			TableCount: row.TableCount,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

// SetData deletes any prior document for the (key, category) pair and inserts
// the new one in a single transaction, so readers never observe a partial
// overwrite.
func (g *Gorm) SetData(ctx context.Context, key, category string, value any) error {
	if category == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding document payload")
	}

	err = g.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_key = ? AND category = ?", key, category).
			Delete(&documentRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&documentRow{
			TenantKey: key,
			Category:  category,
			Payload:   string(payload),
			UpdatedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "writing document")
	}
	return nil
}

func (g *Gorm) GetData(ctx context.Context, key, category string, out any) (bool, error) {
	var row documentRow
	err := g.conn.WithContext(ctx).
		Where("tenant_key = ? AND category = ?", key, category).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "fetching document")
	}
	if err := json.Unmarshal([]byte(row.Payload), out); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeCorruption, err,
			fmt.Sprintf("decoding %q document for tenant %s", category, key))
	}
	return true, nil
}

func (g *Gorm) LogEvent(ctx context.Context, key, eventType string, payload any) error {
	if eventType == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding event payload")
	}
	row := eventRow{
		ID:        uuid.NewString(),
		TenantKey: key,
		EventType: eventType,
		Payload:   string(encoded),
		CreatedAt: time.Now().UTC(),
	}
	if err := g.conn.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "logging event")
	}
	g.metrics.IncEventLogged(eventType)
	return nil
}

func (g *Gorm) GetEvents(ctx context.Context, key, eventType string) ([]Event, error) {
	var rows []eventRow
	query := g.conn.WithContext(ctx).Where("tenant_key = ?", key)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	// seq is database-assigned, so read-back order is strictly append order
	// even when two events land in the same created_at granularity
	err := query.Order("seq ASC").Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "fetching events")
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, Event{
			ID:        row.ID,
			TenantKey: row.TenantKey,
			Type:      row.EventType,
			Payload:   json.RawMessage(row.Payload),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}
