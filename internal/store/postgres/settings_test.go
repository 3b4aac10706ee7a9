package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/store/postgres"
)

func TestSettingsStore_Create(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewSettingsStore(sqlxDB)

	set := monitor.DefaultSettings(3)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO notification_settings`).
		WithArgs(set.UserID, set.MagnitudeThreshold, set.LocationType, set.AltProvince, set.AltCity, set.SafetyTips, set.RangeKm).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "modified_at"}).AddRow(int64(5), now, now))

	saved, err := s.Create(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, int64(5), saved.ID)
	assert.Equal(t, now, saved.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet(), "sqlmock expectations not met")
}

func TestSettingsStore_GetByUserID(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewSettingsStore(sqlxDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "magnitude_threshold", "location_type", "alt_province", "alt_city", "safety_tips", "range_km", "created_at", "modified_at",
	}).AddRow(int64(5), int64(3), 4.5, monitor.LocationCustom, "Cebu", "Cebu City", false, 50.0, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM notification_settings WHERE user_id`).
		WithArgs(int64(3)).
		WillReturnRows(rows)

	set, err := s.GetByUserID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4.5, set.MagnitudeThreshold)
	assert.Equal(t, monitor.LocationCustom, set.LocationType)
	assert.Equal(t, 50.0, set.RangeKm)
	assert.False(t, set.SafetyTips)
}

func TestSettingsStore_GetByUserID_NotFound(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewSettingsStore(sqlxDB)

	mock.ExpectQuery(`SELECT (.+) FROM notification_settings WHERE user_id`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetByUserID(context.Background(), 99)
	assert.ErrorIs(t, err, monitor.ErrNotFound)
}

func TestSettingsStore_Update(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewSettingsStore(sqlxDB)

	set := monitor.Settings{
		UserID:             3,
		MagnitudeThreshold: 5.0,
		LocationType:       monitor.LocationCustom,
		AltProvince:        "Rizal",
		AltCity:            "Antipolo",
		SafetyTips:         true,
		RangeKm:            75,
	}

	created := time.Now().Add(-time.Hour)
	modified := time.Now()
	mock.ExpectQuery(`UPDATE notification_settings`).
		WithArgs(set.MagnitudeThreshold, set.LocationType, set.AltProvince, set.AltCity, set.SafetyTips, set.RangeKm, set.UserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "modified_at"}).AddRow(int64(5), created, modified))

	saved, err := s.Update(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, int64(5), saved.ID)
	assert.Equal(t, modified, saved.ModifiedAt)

	assert.NoError(t, mock.ExpectationsWereMet(), "sqlmock expectations not met")
}

func TestSettingsStore_Update_NotFound(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewSettingsStore(sqlxDB)

	mock.ExpectQuery(`UPDATE notification_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Update(context.Background(), monitor.Settings{UserID: 99})
	assert.ErrorIs(t, err, monitor.ErrNotFound)
}
