package monitor

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateIdentifier is returned by EventStore.Create when another writer
// inserted the same identifier first. Callers re-read the existing row.
var ErrDuplicateIdentifier = errors.New("event identifier already exists")

// ErrDuplicateEmail is returned by UserStore.Create when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Fetcher retrieves the latest bulletin from the source page.
type Fetcher interface {
	Fetch(ctx context.Context) (Bulletin, error)
}

// Summarizer turns a bulletin into human-readable prose. It never fails:
// implementations fall back to a deterministic template.
type Summarizer interface {
	Summarize(ctx context.Context, b Bulletin, includeSafetyTips bool) string
}

// Notifier composes and dispatches an alert email for a matched user.
// It reports success or failure; it never returns an error.
type Notifier interface {
	Notify(ctx context.Context, user User, settings Settings, b Bulletin) bool
}

// Cache is a key-value store with per-key TTL. The miss path always
// recomputes, so implementations may drop entries at any time.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// EventStore persists deduplicated seismic events.
type EventStore interface {
	// FindByIdentifier returns ErrNotFound when no event matches.
	FindByIdentifier(ctx context.Context, identifier string) (Event, error)
	// Create inserts a new event row. Returns ErrDuplicateIdentifier when the
	// identifier is already present.
	Create(ctx context.Context, e Event) (Event, error)
	MarkProcessed(ctx context.Context, id int64) error
	// Latest returns the most recently recorded event, or ErrNotFound.
	Latest(ctx context.Context) (Event, error)
}

// UserStore persists registered accounts.
type UserStore interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListActive(ctx context.Context) ([]User, error)
}

// SettingsStore persists per-user notification preferences.
type SettingsStore interface {
	Create(ctx context.Context, s Settings) (Settings, error)
	// GetByUserID returns ErrNotFound when the user has no settings row.
	GetByUserID(ctx context.Context, userID int64) (Settings, error)
	Update(ctx context.Context, s Settings) (Settings, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}
