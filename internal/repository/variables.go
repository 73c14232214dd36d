package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// VariablesRepository holds process-wide setup state. The initialized flag
// has a one-time false-to-true lifecycle and gates all automated routines.
type VariablesRepository interface {
	IsInitialized(ctx context.Context) (bool, error)
	SetInitialized(ctx context.Context) error
	LastCheck(ctx context.Context) (*time.Time, error)
	SetLastCheck(ctx context.Context, ts time.Time) error
}

type SQLiteVariablesRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewVariablesRepository(db *sql.DB, logger zerolog.Logger) VariablesRepository {
	return &SQLiteVariablesRepository{db: db, logger: logger}
}

func (r *SQLiteVariablesRepository) IsInitialized(ctx context.Context) (bool, error) {
	var initialized bool
	err := r.db.QueryRowContext(ctx, "SELECT initialized FROM variables WHERE id = 1").Scan(&initialized)
	if err != nil {
		return false, fmt.Errorf("failed to read initialized flag: %w", err)
	}
	return initialized, nil
}

func (r *SQLiteVariablesRepository) SetInitialized(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "UPDATE variables SET initialized = TRUE WHERE id = 1")
	if err != nil {
		return fmt.Errorf("failed to set initialized flag: %w", err)
	}
	r.logger.Info().Msg("setup marked complete")
	return nil
}

func (r *SQLiteVariablesRepository) LastCheck(ctx context.Context) (*time.Time, error) {
	var lastCheck sql.NullTime
	err := r.db.QueryRowContext(ctx, "SELECT last_check FROM variables WHERE id = 1").Scan(&lastCheck)
	if err != nil {
		return nil, fmt.Errorf("failed to read last check: %w", err)
	}
	if !lastCheck.Valid {
		return nil, nil
	}
	return &lastCheck.Time, nil
}

func (r *SQLiteVariablesRepository) SetLastCheck(ctx context.Context, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE variables SET last_check = ? WHERE id = 1", ts)
	if err != nil {
		return fmt.Errorf("failed to set last check: %w", err)
	}
	return nil
}
