package store

import (
	"encoding/json"
	"time"

	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
)

// defaultTableCount is the table allotment written on every new tenant root.
const defaultTableCount = 10

// Restaurant is the tenant root record.
type Restaurant struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	TableCount int       `json:"tables"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is one entry of the append-only tenant log. Payload stays raw until
// the caller decodes it into its own shape.
type Event struct {
	ID        string          `json:"id"`
	TenantKey string          `json:"tenant_key"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the event payload, reporting corrupt stored data
// explicitly instead of yielding a zero value.
func (e Event) Decode(out any) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "decoding event payload")
	}
	return nil
}

type restaurantRow struct {
	Key        string    `gorm:"column:key;primaryKey"`
	Name       string    `gorm:"column:name"`
	TableCount int       `gorm:"column:table_count"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (restaurantRow) TableName() string { return "restaurants" }

type documentRow struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantKey string    `gorm:"column:tenant_key"`
	Category  string    `gorm:"column:category"`
	Payload   string    `gorm:"column:payload"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (documentRow) TableName() string { return "documents" }

type eventRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Seq       int64     `gorm:"column:seq;->"`
	TenantKey string    `gorm:"column:tenant_key"`
	EventType string    `gorm:"column:event_type"`
	Payload   string    `gorm:"column:payload"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (eventRow) TableName() string { return "events" }
