package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type SeasonRepository interface {
	Create(ctx context.Context, startTime time.Time) (*domain.Season, error)
	Latest(ctx context.Context) (*domain.Season, error)
	GetByID(ctx context.Context, id int64) (*domain.Season, error)
}

type SQLiteSeasonRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeasonRepository(db *sql.DB, logger zerolog.Logger) SeasonRepository {
	return &SQLiteSeasonRepository{db: db, logger: logger}
}

func (r *SQLiteSeasonRepository) Create(ctx context.Context, startTime time.Time) (*domain.Season, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO seasons (start_time) VALUES (?)", startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to insert season: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get season id: %w", err)
	}

	r.logger.Info().Int64("season_id", id).Time("start_time", startTime).Msg("new season created")
	return &domain.Season{ID: id, StartTime: startTime}, nil
}

func (r *SQLiteSeasonRepository) Latest(ctx context.Context) (*domain.Season, error) {
	season := &domain.Season{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, start_time, created_at FROM seasons ORDER BY id DESC LIMIT 1").
		Scan(&season.ID, &season.StartTime, &season.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSeasonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest season: %w", err)
	}
	return season, nil
}

func (r *SQLiteSeasonRepository) GetByID(ctx context.Context, id int64) (*domain.Season, error) {
	season := &domain.Season{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, start_time, created_at FROM seasons WHERE id = ?", id).
		Scan(&season.ID, &season.StartTime, &season.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSeasonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get season %d: %w", id, err)
	}
	return season, nil
}
