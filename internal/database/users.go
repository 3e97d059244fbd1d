package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusbook/internal/models"
)

// CreateOrUpdateUser upserts a requester keyed by email and fills in the
// generated ID.
func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	query := `INSERT INTO users (name, email, phone, last_activity, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(email) DO UPDATE SET
                  name = excluded.name,
                  phone = excluded.phone,
                  last_activity = excluded.last_activity,
                  updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, user.Name, user.Email, user.Phone, now, now, now); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, user.Email).Scan(&id); err != nil {
		return fmt.Errorf("failed to read back user id: %w", err)
	}
	user.ID = id
	user.LastActivity = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := `SELECT id, name, email, phone, last_activity, created_at, updated_at FROM users WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.LastActivity, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT id, name, email, phone, last_activity, created_at, updated_at FROM users WHERE email = ?`
	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.LastActivity, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (db *DB) UpdateUserActivity(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_activity = ?, updated_at = ? WHERE id = ?`, time.Now(), time.Now(), id)
	return err
}
