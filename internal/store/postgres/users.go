package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jdsantos/quakewatch/internal/monitor"
)

// UserStore persists registered accounts. It assumes a table schema like:
// CREATE TABLE users (
//
//	id BIGSERIAL PRIMARY KEY,
//	full_name TEXT NOT NULL,
//	email TEXT NOT NULL UNIQUE,
//	password_hash TEXT NOT NULL,
//	province TEXT NOT NULL,
//	city TEXT NOT NULL,
//	registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	is_active BOOLEAN NOT NULL DEFAULT TRUE
//
// );
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore builds a UserStore.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, full_name, email, password_hash, province, city, registered_at, is_active`

// Create inserts a new account.
func (s *UserStore) Create(ctx context.Context, u monitor.User) (monitor.User, error) {
	query := `
		INSERT INTO users (full_name, email, password_hash, province, city, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, registered_at
	`
	err := s.db.QueryRowxContext(ctx, query,
		u.FullName,
		u.Email,
		u.PasswordHash,
		u.Province,
		u.City,
		u.Active,
	).Scan(&u.ID, &u.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return monitor.User{}, monitor.ErrDuplicateEmail
		}
		return monitor.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetByID returns the account with the given id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (monitor.User, error) {
	var u monitor.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.User{}, monitor.ErrNotFound
		}
		return monitor.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByEmail returns the account with the given email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (monitor.User, error) {
	var u monitor.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return monitor.User{}, monitor.ErrNotFound
		}
		return monitor.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListActive returns all accounts eligible for notifications.
func (s *UserStore) ListActive(ctx context.Context) ([]monitor.User, error) {
	var users []monitor.User
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = TRUE ORDER BY id`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}
