package repository

import (
	"context"
	"database/sql"
	"fmt"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type RaceClanRepository interface {
	UpsertBatch(ctx context.Context, snapshots []domain.RiverRaceClan) error
	ListByRace(ctx context.Context, raceID int64) ([]domain.RiverRaceClan, error)
	// History returns a clan's snapshots from completed races prior to the
	// given race, most recent first, capped at window entries.
	History(ctx context.Context, tag string, beforeRaceID int64, window int) ([]domain.RiverRaceClan, error)
}

type SQLiteRaceClanRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRaceClanRepository(db *sql.DB, logger zerolog.Logger) RaceClanRepository {
	return &SQLiteRaceClanRepository{db: db, logger: logger}
}

func (r *SQLiteRaceClanRepository) UpsertBatch(ctx context.Context, snapshots []domain.RiverRaceClan) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(snapshots); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(snapshots) {
			end = len(snapshots)
		}

		for _, snap := range snapshots[i:end] {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO river_race_clans
					(river_race_id, tag, name, medals, total_season_medals, total_decks_used,
					 decks_used_today, battle_days, completed)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (river_race_id, tag) DO UPDATE SET
					name = excluded.name,
					medals = excluded.medals,
					total_season_medals = excluded.total_season_medals,
					total_decks_used = excluded.total_decks_used,
					decks_used_today = excluded.decks_used_today,
					battle_days = excluded.battle_days,
					completed = excluded.completed`,
				snap.RiverRaceID, snap.Tag, snap.Name, snap.Medals, snap.TotalSeasonMedals,
				snap.TotalDecksUsed, snap.DecksUsedToday, snap.BattleDays, snap.Completed)
			if err != nil {
				return fmt.Errorf("failed to upsert race clan %s: %w", snap.Tag, err)
			}
		}
	}

	return tx.Commit()
}

const raceClanColumns = `id, river_race_id, tag, name, medals, total_season_medals,
	total_decks_used, decks_used_today, battle_days, completed`

func (r *SQLiteRaceClanRepository) ListByRace(ctx context.Context, raceID int64) ([]domain.RiverRaceClan, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+raceClanColumns+" FROM river_race_clans WHERE river_race_id = ? ORDER BY tag", raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list race clans for race %d: %w", raceID, err)
	}
	defer rows.Close()
	return scanRaceClans(rows)
}

func (r *SQLiteRaceClanRepository) History(ctx context.Context, tag string, beforeRaceID int64, window int) ([]domain.RiverRaceClan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+raceClanColumns+` FROM river_race_clans
		WHERE tag = ? AND river_race_id < ? AND battle_days > 0
		ORDER BY river_race_id DESC LIMIT ?`, tag, beforeRaceID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for clan %s: %w", tag, err)
	}
	defer rows.Close()
	return scanRaceClans(rows)
}

func scanRaceClans(rows *sql.Rows) ([]domain.RiverRaceClan, error) {
	var snapshots []domain.RiverRaceClan
	for rows.Next() {
		var snap domain.RiverRaceClan
		err := rows.Scan(&snap.ID, &snap.RiverRaceID, &snap.Tag, &snap.Name, &snap.Medals,
			&snap.TotalSeasonMedals, &snap.TotalDecksUsed, &snap.DecksUsedToday,
			&snap.BattleDays, &snap.Completed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race clan: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
