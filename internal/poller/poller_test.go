package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	memorystore "github.com/jdsantos/quakewatch/internal/store/memory"
)

type fakeFetcher struct {
	bulletin monitor.Bulletin
	err      error
	failures int
	calls    int
}

func (f *fakeFetcher) Fetch(context.Context) (monitor.Bulletin, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return monitor.Bulletin{}, errors.New("fetch failed")
	}
	if f.err != nil {
		return monitor.Bulletin{}, f.err
	}
	return f.bulletin, nil
}

type notification struct {
	user     monitor.User
	settings monitor.Settings
	bulletin monitor.Bulletin
}

type fakeNotifier struct {
	sent []notification
	fail bool
}

func (f *fakeNotifier) Notify(_ context.Context, user monitor.User, settings monitor.Settings, b monitor.Bulletin) bool {
	f.sent = append(f.sent, notification{user: user, settings: settings, bulletin: b})
	return !f.fail
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// racingEventStore misses the first lookup but rejects the insert, the shape
// of a concurrent writer winning the race between check and insert. Later
// lookups see the winner's row.
type racingEventStore struct {
	*memorystore.EventStore
	missed bool
}

func (s *racingEventStore) FindByIdentifier(ctx context.Context, identifier string) (monitor.Event, error) {
	if !s.missed {
		s.missed = true
		return monitor.Event{}, monitor.ErrNotFound
	}
	return s.EventStore.FindByIdentifier(ctx, identifier)
}

// flakyEventStore fails the first lookups with a transport-shaped error, then
// behaves normally.
type flakyEventStore struct {
	*memorystore.EventStore
	failures int
}

func (s *flakyEventStore) FindByIdentifier(ctx context.Context, identifier string) (monitor.Event, error) {
	if s.failures > 0 {
		s.failures--
		return monitor.Event{}, errors.New("connection reset")
	}
	return s.EventStore.FindByIdentifier(ctx, identifier)
}

type fixture struct {
	poller   *Poller
	fetcher  *fakeFetcher
	notifier *fakeNotifier
	events   *memorystore.EventStore
	users    *memorystore.UserStore
	settings *memorystore.SettingsStore
}

func newFixture(t *testing.T, b monitor.Bulletin) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:  &fakeFetcher{bulletin: b},
		notifier: &fakeNotifier{},
		events:   memorystore.NewEventStore(),
		users:    memorystore.NewUserStore(),
		settings: memorystore.NewSettingsStore(),
	}
	cfg := Config{
		Interval:     time.Minute,
		MinMagnitude: 3.0,
		MaxAttempts:  3,
		RetryDelay:   time.Millisecond,
	}
	f.poller = New(cfg, Deps{
		Fetcher:  f.fetcher,
		Events:   f.events,
		Users:    f.users,
		Settings: f.settings,
		Notifier: f.notifier,
		Clock:    fixedClock{now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
		Logger:   zap.NewNop(),
	})
	return f
}

func (f *fixture) addUser(t *testing.T, email, province, city string) monitor.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), monitor.User{
		FullName: "Test User",
		Email:    email,
		Province: province,
		City:     city,
		Active:   true,
	})
	require.NoError(t, err)
	set := monitor.DefaultSettings(u.ID)
	_, err = f.settings.Create(context.Background(), set)
	require.NoError(t, err)
	return u
}

// seedEvent stores the bulletin's event row directly, as if a previous run
// had recorded it.
func (f *fixture) seedEvent(t *testing.T, b monitor.Bulletin, processed bool) monitor.Event {
	t.Helper()
	lat, lon := monitor.ParseCoordinates(b.Latitude, b.Longitude)
	e, err := f.events.Create(context.Background(), monitor.Event{
		Identifier: b.Identifier(),
		Magnitude:  monitor.ParseMagnitude(b.Magnitude),
		Location:   b.Location,
		Lat:        lat,
		Lon:        lon,
	})
	require.NoError(t, err)
	if processed {
		require.NoError(t, f.events.MarkProcessed(context.Background(), e.ID))
		e.Processed = true
	}
	return e
}

// manilaBulletin is a strong quake with an epicenter right at Manila.
func manilaBulletin() monitor.Bulletin {
	return monitor.Bulletin{
		DateTime:   "14 March 2025 - 05:26 PM",
		Latitude:   "14.60",
		Longitude:  "120.98",
		Depth:      "10",
		Magnitude:  "5.4",
		Location:   "05 km W of Manila City (Metro Manila)",
		DetailLink: "https://earthquake.phivolcs.dost.gov.ph/2025_0314.html",
	}
}

func TestRunOnce_BelowMinimumStoresNothing(t *testing.T) {
	t.Parallel()
	b := manilaBulletin()
	b.Magnitude = "2.5"
	f := newFixture(t, b)
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBelowMinimum, outcome)
	assert.Equal(t, 0, f.events.Len())
	assert.Empty(t, f.notifier.sent)
}

func TestRunOnce_NotifiesMatchingUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	matched := f.addUser(t, "juan@example.com", "Metro Manila", "Manila")
	f.addUser(t, "far@example.com", "Davao", "Davao City")

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, outcome)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, matched.Email, f.notifier.sent[0].user.Email)

	event, err := f.events.FindByIdentifier(context.Background(), manilaBulletin().Identifier())
	require.NoError(t, err)
	assert.True(t, event.Processed)
	assert.Equal(t, 5.4, event.Magnitude)
}

func TestRunOnce_SecondPassIsDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, outcome)

	outcome, err = f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Len(t, f.notifier.sent, 1, "duplicate bulletin must not re-notify")
	assert.Equal(t, 1, f.events.Len())
}

func TestRunOnce_ResumesUnprocessedEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")

	// A previous run stored the event but died before marking it processed.
	seeded := f.seedEvent(t, manilaBulletin(), false)

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, outcome)
	require.Len(t, f.notifier.sent, 1, "the interrupted fan-out must be resumed")

	event, err := f.events.FindByIdentifier(context.Background(), manilaBulletin().Identifier())
	require.NoError(t, err)
	assert.True(t, event.Processed)
	assert.Equal(t, seeded.ID, event.ID, "the existing row is reused, not replaced")
	assert.Equal(t, 1, f.events.Len())
}

func TestRunOnce_InsertRaceWinnerFinished(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")

	f.seedEvent(t, manilaBulletin(), true)
	f.poller.events = &racingEventStore{EventStore: f.events}

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, f.notifier.sent)
}

func TestRunOnce_InsertRaceWinnerUnfinished(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")

	// The concurrent writer inserted the row but has not completed its
	// fan-out; this run takes over.
	f.seedEvent(t, manilaBulletin(), false)
	f.poller.events = &racingEventStore{EventStore: f.events}

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, outcome)
	require.Len(t, f.notifier.sent, 1)

	event, err := f.events.FindByIdentifier(context.Background(), manilaBulletin().Identifier())
	require.NoError(t, err)
	assert.True(t, event.Processed)
}

func TestRunOnce_MissingSettingsSkipsUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	_, err := f.users.Create(context.Background(), monitor.User{
		Email:    "nosettings@example.com",
		Province: "Metro Manila",
		City:     "Manila",
		Active:   true,
	})
	require.NoError(t, err)

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoRecipients, outcome)
	assert.Empty(t, f.notifier.sent, "accounts without a settings row are skipped")
}

func TestRunOnce_SendFailureStillMarksProcessed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")
	f.notifier.fail = true

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotified, outcome)

	event, err := f.events.FindByIdentifier(context.Background(), manilaBulletin().Identifier())
	require.NoError(t, err)
	assert.True(t, event.Processed)
}

func TestRunOnce_NoMatchingUsers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "far@example.com", "Davao", "Davao City")

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoRecipients, outcome)
	assert.Empty(t, f.notifier.sent)
}

func TestRunOnce_FetchFailureIsNoData(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.fetcher.err = errors.New("site unreachable")

	outcome, err := f.poller.RunOnce(context.Background())
	require.NoError(t, err, "a failed fetch ends the run quietly")
	assert.Equal(t, OutcomeNoData, outcome)
	assert.Equal(t, 0, f.events.Len())
}

func TestCycle_FetchFailureNotRetried(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")
	f.fetcher.failures = 1

	f.poller.cycle(context.Background())

	assert.Equal(t, 1, f.fetcher.calls, "an empty fetch waits for the next tick")
	assert.Empty(t, f.notifier.sent)
}

func TestCycle_RetriesAfterStoreFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.addUser(t, "juan@example.com", "Metro Manila", "Manila")
	f.poller.events = &flakyEventStore{EventStore: f.events, failures: 2}

	f.poller.cycle(context.Background())

	assert.Equal(t, 3, f.fetcher.calls)
	assert.Len(t, f.notifier.sent, 1)
}

func TestCycle_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())
	f.poller.events = &flakyEventStore{EventStore: f.events, failures: 5}

	f.poller.cycle(context.Background())

	assert.Equal(t, 3, f.fetcher.calls)
	assert.Equal(t, 0, f.events.Len())
}

func TestParseOccurredAt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())

	got := f.poller.parseOccurredAt("14 March 2025 - 05:26 PM")
	want := time.Date(2025, 3, 14, 17, 26, 0, 0, phTime)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)

	got = f.poller.parseOccurredAt("not a date")
	assert.Equal(t, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), got)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, manilaBulletin())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.poller.Run(ctx)
		close(done)
	}()

	// The first cycle runs immediately; cancel and wait for the loop to exit.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
	assert.GreaterOrEqual(t, f.fetcher.calls, 1)
}
