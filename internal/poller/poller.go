// Package poller drives the scheduled monitoring cycle: fetch the latest
// bulletin, deduplicate it against the event store, and fan out alert emails
// to matching users.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

// Outcomes of a single cycle, recorded in telemetry and logs.
const (
	OutcomeNotified     = "notified"
	OutcomeNoRecipients = "no_recipients"
	OutcomeNoData       = "no_data"
	OutcomeDuplicate    = "duplicate"
	OutcomeBelowMinimum = "below_minimum"
	OutcomeError        = "error"
)

// phTime is Philippine Standard Time, the zone bulletins are published in.
var phTime = time.FixedZone("PST", 8*60*60)

// Config tunes the polling schedule and the global magnitude floor.
type Config struct {
	Interval     time.Duration
	MinMagnitude float64
	MaxAttempts  int
	RetryDelay   time.Duration
}

// Deps are the collaborators a Poller orchestrates.
type Deps struct {
	Fetcher  monitor.Fetcher
	Events   monitor.EventStore
	Users    monitor.UserStore
	Settings monitor.SettingsStore
	Notifier monitor.Notifier
	Clock    monitor.Clock
	Logger   *zap.Logger
}

// Poller runs the monitoring cycle on a fixed interval.
type Poller struct {
	cfg      Config
	fetcher  monitor.Fetcher
	events   monitor.EventStore
	users    monitor.UserStore
	settings monitor.SettingsStore
	notifier monitor.Notifier
	clock    monitor.Clock
	logger   *zap.Logger
}

// New builds a Poller. MaxAttempts below 1 is treated as 1.
func New(cfg Config, deps Deps) *Poller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Poller{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		events:   deps.Events,
		users:    deps.Users,
		settings: deps.Settings,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// Run executes one cycle immediately, then repeats on the configured interval
// until the context is cancelled. A failed cycle never stops the loop.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Float64("min_magnitude", p.cfg.MinMagnitude),
	)

	p.cycle(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one monitoring pass with retries and records the outcome.
func (p *Poller) cycle(ctx context.Context) {
	var outcome string
	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		outcome, err = p.RunOnce(ctx)
		if err == nil {
			break
		}
		p.logger.Warn("monitoring cycle failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.MaxAttempts),
			zap.Error(err),
		)
		if attempt == p.cfg.MaxAttempts || !sleep(ctx, p.cfg.RetryDelay) {
			telemetry.ObservePoll(OutcomeError)
			return
		}
	}
	telemetry.ObservePoll(outcome)
}

// RunOnce performs a single fetch-dedup-notify pass and reports its outcome.
// Only store failures return an error; a failed fetch or an already processed
// bulletin is a successful pass. An event row left unprocessed by an earlier
// run resumes its fan-out here, so delivery is at-least-once rather than
// exactly-once.
func (p *Poller) RunOnce(ctx context.Context) (string, error) {
	bulletin, err := p.fetcher.Fetch(ctx)
	if err != nil {
		// Fetch failures are absorbed here; the next tick tries again.
		p.logger.Warn("bulletin fetch failed", zap.Error(err))
		return OutcomeNoData, nil
	}

	identifier := bulletin.Identifier()
	event, err := p.events.FindByIdentifier(ctx, identifier)
	found := err == nil
	if found && event.Processed {
		return OutcomeDuplicate, nil
	}
	if err != nil && !errors.Is(err, monitor.ErrNotFound) {
		return OutcomeError, fmt.Errorf("look up event: %w", err)
	}

	magnitude := monitor.ParseMagnitude(bulletin.Magnitude)
	if magnitude < p.cfg.MinMagnitude {
		p.logger.Debug("bulletin below magnitude floor",
			zap.Float64("magnitude", magnitude),
			zap.String("location", bulletin.Location),
		)
		return OutcomeBelowMinimum, nil
	}

	if found {
		// An earlier run stored the row but never finished its fan-out.
		p.logger.Info("resuming unfinished fan-out",
			zap.Int64("event_id", event.ID),
			zap.String("identifier", identifier),
		)
	} else {
		lat, lon := monitor.ParseCoordinates(bulletin.Latitude, bulletin.Longitude)
		event, err = p.events.Create(ctx, monitor.Event{
			Identifier: identifier,
			Magnitude:  magnitude,
			Location:   bulletin.Location,
			Lat:        lat,
			Lon:        lon,
			DepthKm:    monitor.ParseMagnitude(bulletin.Depth),
			OccurredAt: p.parseOccurredAt(bulletin.DateTime),
		})
		switch {
		case errors.Is(err, monitor.ErrDuplicateIdentifier):
			// Another instance recorded the same bulletin between our lookup
			// and insert. Re-read the winning row; if its fan-out already
			// finished there is nothing left to do, otherwise take over.
			event, err = p.events.FindByIdentifier(ctx, identifier)
			if err != nil {
				return OutcomeError, fmt.Errorf("re-read event after duplicate insert: %w", err)
			}
			if event.Processed {
				return OutcomeDuplicate, nil
			}
		case err != nil:
			return OutcomeError, fmt.Errorf("store event: %w", err)
		default:
			p.logger.Info("new seismic event recorded",
				zap.Int64("event_id", event.ID),
				zap.Float64("magnitude", event.Magnitude),
				zap.String("location", event.Location),
			)
		}
	}

	sent, failed, err := p.fanOut(ctx, bulletin, event)
	if err != nil {
		return OutcomeError, err
	}

	if err := p.events.MarkProcessed(ctx, event.ID); err != nil {
		return OutcomeError, fmt.Errorf("mark event processed: %w", err)
	}

	p.logger.Info("notification fan-out complete",
		zap.Int64("event_id", event.ID),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	if sent == 0 && failed == 0 {
		return OutcomeNoRecipients, nil
	}
	return OutcomeNotified, nil
}

// fanOut evaluates every active user against the event and dispatches alerts
// to those who match. Individual send failures are logged and counted, never
// fatal.
func (p *Poller) fanOut(ctx context.Context, bulletin monitor.Bulletin, event monitor.Event) (sent, failed int, err error) {
	users, err := p.users.ListActive(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list active users: %w", err)
	}

	for _, user := range users {
		settings, err := p.settings.GetByUserID(ctx, user.ID)
		if errors.Is(err, monitor.ErrNotFound) {
			// Registration creates a settings row; an account without one
			// has not opted in to alerts.
			continue
		} else if err != nil {
			return sent, failed, fmt.Errorf("load settings for user %d: %w", user.ID, err)
		}

		result := monitor.EvaluateUser(user, settings, event.Magnitude, event.Lat, event.Lon)
		if !result.Send {
			continue
		}
		if p.notifier.Notify(ctx, user, settings, bulletin) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed, nil
}

// Layouts the bulletin page has been observed to use for the date column.
var occurredAtLayouts = []string{
	"02 January 2006 03:04 PM",
	"2006-01-02 15:04:05",
}

// parseOccurredAt converts bulletin date text such as
// "14 March 2025 - 05:26 PM" into a timestamp in Philippine Standard Time.
// Unparseable text falls back to the current time so the event still records.
func (p *Poller) parseOccurredAt(text string) time.Time {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "PST"))
	cleaned = strings.ReplaceAll(cleaned, " - ", " ")
	for _, layout := range occurredAtLayouts {
		if ts, err := time.ParseInLocation(layout, cleaned, phTime); err == nil {
			return ts
		}
	}
	p.logger.Warn("unparseable bulletin timestamp", zap.String("date_time", text))
	return p.clock.Now()
}

// sleep waits for d or until the context is cancelled. It reports whether the
// full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
