// Package memorystore provides in-memory implementations of the monitor
// stores for tests and database-less local runs.
package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jdsantos/quakewatch/internal/monitor"
)

// EventStore is an in-memory monitor.EventStore.
type EventStore struct {
	mu     sync.Mutex
	nextID int64
	events map[string]monitor.Event
}

// NewEventStore builds an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{nextID: 1, events: make(map[string]monitor.Event)}
}

// FindByIdentifier returns the event with the given identifier.
func (s *EventStore) FindByIdentifier(_ context.Context, identifier string) (monitor.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[identifier]
	if !ok {
		return monitor.Event{}, monitor.ErrNotFound
	}
	return e, nil
}

// Create inserts a new event, enforcing identifier uniqueness like the
// database unique constraint does.
func (s *EventStore) Create(_ context.Context, e monitor.Event) (monitor.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.Identifier]; exists {
		return monitor.Event{}, monitor.ErrDuplicateIdentifier
	}
	e.ID = s.nextID
	s.nextID++
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	s.events[e.Identifier] = e
	return e, nil
}

// MarkProcessed flips the processed flag for the event with the given id.
func (s *EventStore) MarkProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for identifier, e := range s.events {
		if e.ID == id {
			e.Processed = true
			s.events[identifier] = e
			return nil
		}
	}
	return monitor.ErrNotFound
}

// Latest returns the most recently recorded event.
func (s *EventStore) Latest(_ context.Context) (monitor.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest monitor.Event
	found := false
	for _, e := range s.events {
		if !found || e.RecordedAt.After(latest.RecordedAt) {
			latest = e
			found = true
		}
	}
	if !found {
		return monitor.Event{}, monitor.ErrNotFound
	}
	return latest, nil
}

// Len reports the number of stored events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// UserStore is an in-memory monitor.UserStore.
type UserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]monitor.User
}

// NewUserStore builds an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{nextID: 1, users: make(map[int64]monitor.User)}
}

// Create inserts a new account, enforcing email uniqueness.
func (s *UserStore) Create(_ context.Context, u monitor.User) (monitor.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return monitor.User{}, monitor.ErrDuplicateEmail
		}
	}
	u.ID = s.nextID
	s.nextID++
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return u, nil
}

// GetByID returns the account with the given id.
func (s *UserStore) GetByID(_ context.Context, id int64) (monitor.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return monitor.User{}, monitor.ErrNotFound
	}
	return u, nil
}

// GetByEmail returns the account with the given email.
func (s *UserStore) GetByEmail(_ context.Context, email string) (monitor.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return monitor.User{}, monitor.ErrNotFound
}

// ListActive returns active accounts ordered by id.
func (s *UserStore) ListActive(_ context.Context) ([]monitor.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []monitor.User
	for _, u := range s.users {
		if u.Active {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// SettingsStore is an in-memory monitor.SettingsStore.
type SettingsStore struct {
	mu       sync.Mutex
	nextID   int64
	settings map[int64]monitor.Settings
}

// NewSettingsStore builds an empty SettingsStore.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{nextID: 1, settings: make(map[int64]monitor.Settings)}
}

// Create inserts the preferences row for a user.
func (s *SettingsStore) Create(_ context.Context, set monitor.Settings) (monitor.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	set.CreatedAt = now
	set.ModifiedAt = now
	s.settings[set.UserID] = set
	return set, nil
}

// GetByUserID returns the preferences for a user.
func (s *SettingsStore) GetByUserID(_ context.Context, userID int64) (monitor.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.settings[userID]
	if !ok {
		return monitor.Settings{}, monitor.ErrNotFound
	}
	return set, nil
}

// Update rewrites the preferences for a user.
func (s *SettingsStore) Update(_ context.Context, set monitor.Settings) (monitor.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.settings[set.UserID]
	if !ok {
		return monitor.Settings{}, monitor.ErrNotFound
	}
	set.ID = existing.ID
	set.CreatedAt = existing.CreatedAt
	set.ModifiedAt = time.Now().UTC()
	s.settings[set.UserID] = set
	return set, nil
}
