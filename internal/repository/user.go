package repository

import (
	"context"
	"database/sql"
	"fmt"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByTag(ctx context.Context, tag string) (*domain.User, error)
	AddStrikes(ctx context.Context, id int64, delta int) (int, error)
}

type SQLiteUserRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserRepository(db *sql.DB, logger zerolog.Logger) UserRepository {
	return &SQLiteUserRepository{db: db, logger: logger}
}

func (r *SQLiteUserRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	reminder := user.ReminderTime
	if reminder == "" {
		reminder = domain.ReminderAll
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (tag, name, external_id, reminder_time) VALUES (?, ?, ?, ?)
		ON CONFLICT (tag) DO UPDATE SET
			name = excluded.name,
			external_id = COALESCE(excluded.external_id, users.external_id),
			updated_at = CURRENT_TIMESTAMP`,
		user.Tag, user.Name, user.ExternalID, string(reminder))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", user.Tag, err)
	}
	return r.GetByTag(ctx, user.Tag)
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *SQLiteUserRepository) GetByTag(ctx context.Context, tag string) (*domain.User, error) {
	return r.get(ctx, "tag = ?", tag)
}

func (r *SQLiteUserRepository) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	user := &domain.User{}
	var reminder string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, tag, name, external_id, strikes, reminder_time, created_at, updated_at FROM users WHERE "+where,
		arg).
		Scan(&user.ID, &user.Tag, &user.Name, &user.ExternalID, &user.Strikes, &reminder,
			&user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.ReminderTime = domain.ReminderTime(reminder)
	return user, nil
}

// AddStrikes adjusts a user's strike counter and returns the new total.
// The counter never drops below zero.
func (r *SQLiteUserRepository) AddStrikes(ctx context.Context, id int64, delta int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET strikes = MAX(strikes + ?, 0), updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		delta, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update strikes for user %d: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrUserNotFound); err != nil {
		return 0, err
	}

	var strikes int
	if err := r.db.QueryRowContext(ctx, "SELECT strikes FROM users WHERE id = ?", id).Scan(&strikes); err != nil {
		return 0, fmt.Errorf("failed to read strikes for user %d: %w", id, err)
	}

	r.logger.Info().Int64("user_id", id).Int("delta", delta).Int("strikes", strikes).Msg("strike counter updated")
	return strikes, nil
}
