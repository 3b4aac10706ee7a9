package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/store/postgres"
)

func TestUserStore_Create(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewUserStore(sqlxDB)

	u := monitor.User{
		FullName:     "Juan Dela Cruz",
		Email:        "juan@example.com",
		PasswordHash: "$2a$10$abcdefg",
		Province:     "Cebu",
		City:         "Cebu City",
		Active:       true,
	}

	registered := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.FullName, u.Email, u.PasswordHash, u.Province, u.City, u.Active).
		WillReturnRows(sqlmock.NewRows([]string{"id", "registered_at"}).AddRow(int64(3), registered))

	saved, err := s.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(3), saved.ID)
	assert.Equal(t, registered, saved.RegisteredAt)

	assert.NoError(t, mock.ExpectationsWereMet(), "sqlmock expectations not met")
}

func TestUserStore_Create_DuplicateEmail(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewUserStore(sqlxDB)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := s.Create(context.Background(), monitor.User{Email: "juan@example.com"})
	assert.ErrorIs(t, err, monitor.ErrDuplicateEmail)
}

func TestUserStore_GetByEmail(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewUserStore(sqlxDB)

	registered := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "full_name", "email", "password_hash", "province", "city", "registered_at", "is_active",
	}).AddRow(int64(3), "Juan Dela Cruz", "juan@example.com", "hash", "Cebu", "Cebu City", registered, true)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("juan@example.com").
		WillReturnRows(rows)

	u, err := s.GetByEmail(context.Background(), "juan@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	assert.Equal(t, "Cebu City", u.City)
	assert.True(t, u.Active)
}

func TestUserStore_GetByID_NotFound(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewUserStore(sqlxDB)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, monitor.ErrNotFound)
}

func TestUserStore_ListActive(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	s := postgres.NewUserStore(sqlxDB)

	registered := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "full_name", "email", "password_hash", "province", "city", "registered_at", "is_active",
	}).
		AddRow(int64(1), "Juan Dela Cruz", "juan@example.com", "hash", "Cebu", "Cebu City", registered, true).
		AddRow(int64(2), "Maria Santos", "maria@example.com", "hash", "Rizal", "Antipolo", registered, true)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE is_active`).
		WillReturnRows(rows)

	users, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "maria@example.com", users[1].Email)
}
