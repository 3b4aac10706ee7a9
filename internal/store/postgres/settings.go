package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jdsantos/quakewatch/internal/monitor"
)

// SettingsStore persists notification preferences, one row per user.
// It assumes a table schema like:
// CREATE TABLE notification_settings (
//
//	id BIGSERIAL PRIMARY KEY,
//	user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
//	magnitude_threshold DOUBLE PRECISION NOT NULL DEFAULT 3.0,
//	location_type TEXT NOT NULL DEFAULT 'near_me',
//	alt_province TEXT NOT NULL DEFAULT '',
//	alt_city TEXT NOT NULL DEFAULT '',
//	safety_tips BOOLEAN NOT NULL DEFAULT TRUE,
//	range_km DOUBLE PRECISION NOT NULL DEFAULT 100,
//	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//
// );
type SettingsStore struct {
	db *sqlx.DB
}

// NewSettingsStore builds a SettingsStore.
func NewSettingsStore(db *sqlx.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

const settingsColumns = `id, user_id, magnitude_threshold, location_type, alt_province, alt_city, safety_tips, range_km, created_at, modified_at`

// Create inserts the preferences row for a user.
func (s *SettingsStore) Create(ctx context.Context, set monitor.Settings) (monitor.Settings, error) {
	query := `
		INSERT INTO notification_settings
			(user_id, magnitude_threshold, location_type, alt_province, alt_city, safety_tips, range_km)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, modified_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		set.UserID,
		set.MagnitudeThreshold,
		set.LocationType,
		set.AltProvince,
		set.AltCity,
		set.SafetyTips,
		set.RangeKm,
	).Scan(&set.ID, &set.CreatedAt, &set.ModifiedAt)
	if err != nil {
		return monitor.Settings{}, fmt.Errorf("insert settings: %w", err)
	}
	return set, nil
}

// GetByUserID returns the preferences for a user.
func (s *SettingsStore) GetByUserID(ctx context.Context, userID int64) (monitor.Settings, error) {
	var set monitor.Settings
	query := `SELECT ` + settingsColumns + ` FROM notification_settings WHERE user_id = $1`
	if err := s.db.GetContext(ctx, &set, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.Settings{}, monitor.ErrNotFound
		}
		return monitor.Settings{}, fmt.Errorf("get settings by user: %w", err)
	}
	return set, nil
}

// Update rewrites the preferences for a user and bumps modified_at.
func (s *SettingsStore) Update(ctx context.Context, set monitor.Settings) (monitor.Settings, error) {
	query := `
		UPDATE notification_settings
		SET magnitude_threshold = $1,
			location_type = $2,
			alt_province = $3,
			alt_city = $4,
			safety_tips = $5,
			range_km = $6,
			modified_at = NOW()
		WHERE user_id = $7
		RETURNING id, created_at, modified_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		set.MagnitudeThreshold,
		set.LocationType,
		set.AltProvince,
		set.AltCity,
		set.SafetyTips,
		set.RangeKm,
		set.UserID,
	).Scan(&set.ID, &set.CreatedAt, &set.ModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.Settings{}, monitor.ErrNotFound
		}
		return monitor.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return set, nil
}
