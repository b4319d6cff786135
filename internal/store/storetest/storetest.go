// Package storetest provides an in-memory Store for manager and analyzer
// tests, so they can run without a database.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
)

type docKey struct {
	tenant   string
	category string
}

// Store is an in-memory store.Store. The zero value is not usable; call New.
type Store struct {
	mu          sync.Mutex
	restaurants map[string]store.Restaurant
	documents   map[docKey]json.RawMessage
	events      []store.Event
	seq         int

	// FailWrites makes every mutation return a storage error, for testing
	// propagation paths.
	FailWrites bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		restaurants: map[string]store.Restaurant{},
		documents:   map[docKey]json.RawMessage{},
	}
}

func (s *Store) CreateRestaurant(ctx context.Context, name string) (string, error) {
	key := uuid.NewString()
	if err := s.CreateRestaurantWithKey(ctx, name, key); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) CreateRestaurantWithKey(_ context.Context, name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return pkgerrors.New(pkgerrors.CodeStorage, "storetest: writes disabled")
	}
	if name == "" || key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and key are required")
	}
	if _, ok := s.restaurants[key]; ok {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "restaurant %q already exists", key)
	}
	s.restaurants[key] = store.Restaurant{
		Key:        key,
		Name:       name,
		TableCount: 10,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

func (s *Store) GetRestaurant(_ context.Context, key string) (*store.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.restaurants[key]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "restaurant %q not found", key)
	}
	return &rec, nil
}

func (s *Store) ListRestaurants(context.Context) ([]store.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Restaurant, 0, len(s.restaurants))
	for _, rec := range s.restaurants {
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) SetData(_ context.Context, key, category string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return pkgerrors.New(pkgerrors.CodeStorage, "storetest: writes disabled")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding document payload")
	}
	s.documents[docKey{key, category}] = payload
	return nil
}

func (s *Store) GetData(_ context.Context, key, category string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.documents[docKey{key, category}]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeCorruption, err, "decoding document payload")
	}
	return true, nil
}

func (s *Store) LogEvent(_ context.Context, key, eventType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return pkgerrors.New(pkgerrors.CodeStorage, "storetest: writes disabled")
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding event payload")
	}
	s.seq++
	s.events = append(s.events, store.Event{
		ID:        fmt.Sprintf("%06d-%s", s.seq, uuid.NewString()),
		TenantKey: key,
		Type:      eventType,
		Payload:   encoded,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Store) GetEvents(_ context.Context, key, eventType string) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Event
	for _, ev := range s.events {
		if ev.TenantKey != key {
			continue
		}
		if eventType != "" && ev.Type != eventType {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// SeedEvent appends a pre-built event, bypassing the normal write path.
// Tests use it to plant historical events with chosen timestamps.
func (s *Store) SeedEvent(key, eventType string, payload any, at time.Time) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.events = append(s.events, store.Event{
		ID:        fmt.Sprintf("%06d-%s", s.seq, uuid.NewString()),
		TenantKey: key,
		Type:      eventType,
		Payload:   encoded,
		CreatedAt: at,
	})
	return nil
}
