// Package main hosts the earthquake monitoring service entrypoint.
//
// Architecture overview:
//   - Poller: internal/poller runs the monitoring cycle on a fixed interval.
//     Each cycle fetches the latest PHIVOLCS bulletin, applies the global
//     magnitude floor, deduplicates against the event store by the
//     datetime+location identifier, and fans alert emails out to matching
//     users. A failed fetch ends the cycle quietly until the next tick;
//     store failures mid-pipeline retry a bounded number of times per cycle,
//     and an event row left unprocessed by an interrupted run resumes its
//     fan-out on the next one.
//   - Fetch pipeline: the Colly-based fetcher scrapes the first structurally
//     valid row of the bulletin table with browser-like headers. Successful
//     fetches are cached so the poller and on-demand endpoints share one
//     request per cache window.
//   - Matching: internal/monitor holds the magnitude/radius rules. A user
//     matches when the magnitude meets their threshold and their monitored
//     city (home or custom) lies within the smaller of the magnitude-derived
//     impact radius and their configured range.
//   - Notifications: internal/notifier composes plain-text alert emails over
//     SMTP. Summaries come from Gemini via internal/summarizer, degrade to a
//     deterministic template on any failure, and are cached per bulletin.
//   - HTTP API: internal/api exposes health, metrics, registration, login,
//     preference management, the latest recorded earthquake, and an
//     on-demand test notification that exercises the same matching rules as
//     the poller.
//   - Persistence & plumbing: events, users, and preferences live in
//     Postgres via sqlx over the pgx driver; summaries and sessions live in
//     Redis (falling back to an in-process cache). Viper populates config
//     from env/files; zap provides structured logging; Prometheus metrics
//     are exported via middleware and the /metrics handler.
//
// Operational notes:
//   - Shutdown is coordinated via context cancellation: SIGTERM stops the
//     poller loop and drains the HTTP server with a 10s grace period.
//   - A poll cycle that exhausts its retries waits for the next tick; the
//     loop never exits on errors. Alert delivery is at-least-once: a crash
//     between insert and mark-processed may re-email matched users.
//   - Session tokens are UUIDv7 values stored in the shared cache, so they
//     expire with the configured TTL and survive restarts when Redis backs
//     the cache.
//
// Quick checklist:
//   - Configure env vars: QUAKEWATCH_SERVER_PORT, QUAKEWATCH_DB_DSN,
//     QUAKEWATCH_REDIS_ADDR, QUAKEWATCH_BULLETIN_URL,
//     QUAKEWATCH_POLLER_INTERVAL_SECONDS, QUAKEWATCH_AI_API_KEY, and
//     QUAKEWATCH_MAIL_* when real delivery is required.
//   - Run locally: go run ./cmd/quakewatch -config config.yaml (or rely
//     solely on env overrides; without mail/AI keys the service logs emails
//     and uses template summaries).
package main
