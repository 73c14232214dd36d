package repository

import (
	"context"
	"database/sql"
	"fmt"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type PrimaryClanRepository interface {
	Get(ctx context.Context, clanID int64) (*domain.PrimaryClanConfig, error)
	List(ctx context.Context) ([]*domain.PrimaryClanConfig, error)
	Upsert(ctx context.Context, cfg *domain.PrimaryClanConfig) error
}

type SQLitePrimaryClanRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPrimaryClanRepository(db *sql.DB, logger zerolog.Logger) PrimaryClanRepository {
	return &SQLitePrimaryClanRepository{db: db, logger: logger}
}

func (r *SQLitePrimaryClanRepository) Get(ctx context.Context, clanID int64) (*domain.PrimaryClanConfig, error) {
	cfg := &domain.PrimaryClanConfig{}
	var strikeType string
	err := r.db.QueryRowContext(ctx, `
		SELECT clan_id, track_stats, send_reminders, assign_strikes, strike_type, strike_threshold
		FROM primary_clans WHERE clan_id = ?`, clanID).
		Scan(&cfg.ClanID, &cfg.TrackStats, &cfg.SendReminders, &cfg.AssignStrikes,
			&strikeType, &cfg.StrikeThreshold)
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary clan config %d: %w", clanID, err)
	}
	cfg.StrikeType = domain.StrikeType(strikeType)
	return cfg, nil
}

func (r *SQLitePrimaryClanRepository) List(ctx context.Context) ([]*domain.PrimaryClanConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT clan_id, track_stats, send_reminders, assign_strikes, strike_type, strike_threshold
		FROM primary_clans ORDER BY clan_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list primary clans: %w", err)
	}
	defer rows.Close()

	var configs []*domain.PrimaryClanConfig
	for rows.Next() {
		cfg := &domain.PrimaryClanConfig{}
		var strikeType string
		err := rows.Scan(&cfg.ClanID, &cfg.TrackStats, &cfg.SendReminders, &cfg.AssignStrikes,
			&strikeType, &cfg.StrikeThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to scan primary clan config: %w", err)
		}
		cfg.StrikeType = domain.StrikeType(strikeType)
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (r *SQLitePrimaryClanRepository) Upsert(ctx context.Context, cfg *domain.PrimaryClanConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO primary_clans
			(clan_id, track_stats, send_reminders, assign_strikes, strike_type, strike_threshold)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (clan_id) DO UPDATE SET
			track_stats = excluded.track_stats,
			send_reminders = excluded.send_reminders,
			assign_strikes = excluded.assign_strikes,
			strike_type = excluded.strike_type,
			strike_threshold = excluded.strike_threshold`,
		cfg.ClanID, cfg.TrackStats, cfg.SendReminders, cfg.AssignStrikes,
		string(cfg.StrikeType), cfg.StrikeThreshold)
	if err != nil {
		return fmt.Errorf("failed to upsert primary clan config %d: %w", cfg.ClanID, err)
	}

	r.logger.Info().
		Int64("clan_id", cfg.ClanID).
		Bool("track_stats", cfg.TrackStats).
		Bool("assign_strikes", cfg.AssignStrikes).
		Str("strike_type", string(cfg.StrikeType)).
		Int("strike_threshold", cfg.StrikeThreshold).
		Msg("primary clan config saved")
	return nil
}
