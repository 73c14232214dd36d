package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type RiverRaceRepository interface {
	GetOrCreate(ctx context.Context, clanID, seasonID int64, week int, startTime time.Time, colosseumWeek bool) (*domain.RiverRace, error)
	GetByID(ctx context.Context, id int64) (*domain.RiverRace, error)
	// CommitDayBoundary writes a day boundary together with the lifecycle
	// flags in one statement so readers never observe a torn transition.
	CommitDayBoundary(ctx context.Context, raceID int64, day int, boundary time.Time, battleTime, completedSaturday bool) error
	SetLastCheck(ctx context.Context, raceID int64, ts time.Time) error
	ListBySeason(ctx context.Context, seasonID int64) ([]*domain.RiverRace, error)
}

type SQLiteRiverRaceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRiverRaceRepository(db *sql.DB, logger zerolog.Logger) RiverRaceRepository {
	return &SQLiteRiverRaceRepository{db: db, logger: logger}
}

const riverRaceColumns = `id, clan_id, season_id, week, start_time, last_check, battle_time,
	colosseum_week, completed_saturday, day_1, day_2, day_3, day_4, day_5, day_6, day_7`

func (r *SQLiteRiverRaceRepository) GetOrCreate(ctx context.Context, clanID, seasonID int64, week int, startTime time.Time, colosseumWeek bool) (*domain.RiverRace, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO river_races (clan_id, season_id, week, start_time, colosseum_week)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (clan_id, season_id, week) DO NOTHING`,
		clanID, seasonID, week, startTime, colosseumWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to insert river race clan=%d season=%d week=%d: %w", clanID, seasonID, week, err)
	}

	race, err := r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+riverRaceColumns+" FROM river_races WHERE clan_id = ? AND season_id = ? AND week = ?",
		clanID, seasonID, week))
	if err != nil {
		return nil, fmt.Errorf("failed to get river race clan=%d season=%d week=%d: %w", clanID, seasonID, week, err)
	}
	return race, nil
}

func (r *SQLiteRiverRaceRepository) GetByID(ctx context.Context, id int64) (*domain.RiverRace, error) {
	race, err := r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+riverRaceColumns+" FROM river_races WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get river race %d: %w", id, err)
	}
	return race, nil
}

func (r *SQLiteRiverRaceRepository) CommitDayBoundary(ctx context.Context, raceID int64, day int, boundary time.Time, battleTime, completedSaturday bool) error {
	query := fmt.Sprintf(`
		UPDATE river_races
		SET day_%d = ?, battle_time = ?, completed_saturday = completed_saturday OR ?
		WHERE id = ?`, day)

	result, err := r.db.ExecContext(ctx, query, boundary, battleTime, completedSaturday, raceID)
	if err != nil {
		return fmt.Errorf("failed to commit day %d boundary for race %d: %w", day, raceID, err)
	}
	if err := checkAffectedRows(result, ErrRaceNotFound); err != nil {
		return err
	}

	r.logger.Info().
		Int64("race_id", raceID).
		Int("day", day).
		Time("boundary", boundary).
		Bool("battle_time", battleTime).
		Bool("completed_saturday", completedSaturday).
		Msg("day boundary committed")
	return nil
}

func (r *SQLiteRiverRaceRepository) SetLastCheck(ctx context.Context, raceID int64, ts time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE river_races SET last_check = ? WHERE id = ?", ts, raceID)
	if err != nil {
		return fmt.Errorf("failed to set last check for race %d: %w", raceID, err)
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}

func (r *SQLiteRiverRaceRepository) ListBySeason(ctx context.Context, seasonID int64) ([]*domain.RiverRace, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+riverRaceColumns+" FROM river_races WHERE season_id = ? ORDER BY week, clan_id", seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list river races for season %d: %w", seasonID, err)
	}
	defer rows.Close()

	var races []*domain.RiverRace
	for rows.Next() {
		race, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRiverRaceRepository) scanOne(row *sql.Row) (*domain.RiverRace, error) {
	return scanRace(row)
}

func (r *SQLiteRiverRaceRepository) scanRow(rows *sql.Rows) (*domain.RiverRace, error) {
	return scanRace(rows)
}

func scanRace(s rowScanner) (*domain.RiverRace, error) {
	race := &domain.RiverRace{}
	var lastCheck sql.NullTime
	days := make([]sql.NullTime, 7)

	err := s.Scan(&race.ID, &race.ClanID, &race.SeasonID, &race.Week, &race.StartTime, &lastCheck,
		&race.BattleTime, &race.ColosseumWeek, &race.CompletedSaturday,
		&days[0], &days[1], &days[2], &days[3], &days[4], &days[5], &days[6])
	if err != nil {
		return nil, err
	}

	if lastCheck.Valid {
		race.LastCheck = lastCheck.Time
	}
	for i, d := range days {
		if d.Valid {
			t := d.Time
			race.DayBoundaries[i] = &t
		}
	}
	return race, nil
}
