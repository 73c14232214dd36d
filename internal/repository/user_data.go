package repository

import (
	"context"
	"database/sql"
	"fmt"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type UserDataRepository interface {
	// EnsureRow creates an all-zero row for (affiliation, race) if none
	// exists, so downstream readers never have to distinguish "row absent"
	// from "row present but inactive".
	EnsureRow(ctx context.Context, affiliationID, raceID int64) error
	Get(ctx context.Context, affiliationID, raceID int64) (*domain.RiverRaceUserData, error)
	ListByRace(ctx context.Context, raceID int64) ([]*domain.RiverRaceUserData, error)
	// Save overwrites every recomputed aggregate column of the row from
	// the given value. Recomputation writes whole slices; it never
	// increments. Observed columns (medals, strike_issued) have their own
	// writers and are never touched here, so a snapshot landing mid-
	// recompute is not reverted.
	Save(ctx context.Context, data *domain.RiverRaceUserData) error
	// SetMedals records the observed medal count for (affiliation, race).
	SetMedals(ctx context.Context, affiliationID, raceID int64, medals int) error
	// TryMarkStrikeIssued atomically flips strike_issued from false to
	// true. It reports false when the strike was already issued.
	TryMarkStrikeIssued(ctx context.Context, id int64) (bool, error)
}

type SQLiteUserDataRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserDataRepository(db *sql.DB, logger zerolog.Logger) UserDataRepository {
	return &SQLiteUserDataRepository{db: db, logger: logger}
}

func (r *SQLiteUserDataRepository) EnsureRow(ctx context.Context, affiliationID, raceID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO river_race_user_data (clan_affiliation_id, river_race_id)
		VALUES (?, ?)
		ON CONFLICT (clan_affiliation_id, river_race_id) DO NOTHING`,
		affiliationID, raceID)
	if err != nil {
		return fmt.Errorf("failed to ensure user data row aff=%d race=%d: %w", affiliationID, raceID, err)
	}
	return nil
}

const userDataColumns = `id, clan_affiliation_id, river_race_id, medals,
	regular_wins, regular_losses, special_wins, special_losses,
	duel_wins, duel_losses, series_wins, series_losses, boat_wins, boat_losses,
	day_1, day_2, day_3, day_4, day_5, day_6, day_7,
	day_1_active, day_2_active, day_3_active, day_4_active, day_5_active, day_6_active, day_7_active,
	day_1_locked, day_2_locked, day_3_locked, day_4_locked, day_5_locked, day_6_locked, day_7_locked,
	day_1_outside_battles, day_2_outside_battles, day_3_outside_battles, day_4_outside_battles,
	day_5_outside_battles, day_6_outside_battles, day_7_outside_battles,
	day_1_boat_decks, day_2_boat_decks, day_3_boat_decks, day_4_boat_decks,
	day_5_boat_decks, day_6_boat_decks, day_7_boat_decks,
	strike_issued, last_check`

func (r *SQLiteUserDataRepository) Get(ctx context.Context, affiliationID, raceID int64) (*domain.RiverRaceUserData, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userDataColumns+" FROM river_race_user_data WHERE clan_affiliation_id = ? AND river_race_id = ?",
		affiliationID, raceID)

	data, err := scanUserData(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user data aff=%d race=%d: %w", affiliationID, raceID, err)
	}
	return data, nil
}

func (r *SQLiteUserDataRepository) ListByRace(ctx context.Context, raceID int64) ([]*domain.RiverRaceUserData, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userDataColumns+" FROM river_race_user_data WHERE river_race_id = ? ORDER BY clan_affiliation_id",
		raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user data for race %d: %w", raceID, err)
	}
	defer rows.Close()

	var results []*domain.RiverRaceUserData
	for rows.Next() {
		data, err := scanUserData(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user data: %w", err)
		}
		results = append(results, data)
	}
	return results, rows.Err()
}

func (r *SQLiteUserDataRepository) Save(ctx context.Context, data *domain.RiverRaceUserData) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE river_race_user_data SET
			regular_wins = ?, regular_losses = ?,
			special_wins = ?, special_losses = ?,
			duel_wins = ?, duel_losses = ?,
			series_wins = ?, series_losses = ?,
			boat_wins = ?, boat_losses = ?,
			day_1 = ?, day_2 = ?, day_3 = ?, day_4 = ?, day_5 = ?, day_6 = ?, day_7 = ?,
			day_1_active = ?, day_2_active = ?, day_3_active = ?, day_4_active = ?,
			day_5_active = ?, day_6_active = ?, day_7_active = ?,
			day_1_locked = ?, day_2_locked = ?, day_3_locked = ?, day_4_locked = ?,
			day_5_locked = ?, day_6_locked = ?, day_7_locked = ?,
			day_1_outside_battles = ?, day_2_outside_battles = ?, day_3_outside_battles = ?,
			day_4_outside_battles = ?, day_5_outside_battles = ?, day_6_outside_battles = ?,
			day_7_outside_battles = ?,
			day_1_boat_decks = ?, day_2_boat_decks = ?, day_3_boat_decks = ?,
			day_4_boat_decks = ?, day_5_boat_decks = ?, day_6_boat_decks = ?,
			day_7_boat_decks = ?,
			last_check = ?
		WHERE clan_affiliation_id = ? AND river_race_id = ?`,
		data.RegularWins, data.RegularLosses,
		data.SpecialWins, data.SpecialLosses,
		data.DuelWins, data.DuelLosses,
		data.SeriesWins, data.SeriesLosses,
		data.BoatWins, data.BoatLosses,
		data.Days[0].DecksUsed, data.Days[1].DecksUsed, data.Days[2].DecksUsed,
		data.Days[3].DecksUsed, data.Days[4].DecksUsed, data.Days[5].DecksUsed,
		data.Days[6].DecksUsed,
		data.Days[0].Active, data.Days[1].Active, data.Days[2].Active, data.Days[3].Active,
		data.Days[4].Active, data.Days[5].Active, data.Days[6].Active,
		data.Days[0].Locked, data.Days[1].Locked, data.Days[2].Locked, data.Days[3].Locked,
		data.Days[4].Locked, data.Days[5].Locked, data.Days[6].Locked,
		data.Days[0].OutsideBattles, data.Days[1].OutsideBattles, data.Days[2].OutsideBattles,
		data.Days[3].OutsideBattles, data.Days[4].OutsideBattles, data.Days[5].OutsideBattles,
		data.Days[6].OutsideBattles,
		data.Days[0].BoatDecksUsed, data.Days[1].BoatDecksUsed, data.Days[2].BoatDecksUsed,
		data.Days[3].BoatDecksUsed, data.Days[4].BoatDecksUsed, data.Days[5].BoatDecksUsed,
		data.Days[6].BoatDecksUsed,
		data.LastCheck,
		data.ClanAffiliationID, data.RiverRaceID)
	if err != nil {
		return fmt.Errorf("failed to save user data aff=%d race=%d: %w", data.ClanAffiliationID, data.RiverRaceID, err)
	}
	return checkAffectedRows(result, ErrUserDataNotFound)
}

func (r *SQLiteUserDataRepository) SetMedals(ctx context.Context, affiliationID, raceID int64, medals int) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE river_race_user_data SET medals = ? WHERE clan_affiliation_id = ? AND river_race_id = ?",
		medals, affiliationID, raceID)
	if err != nil {
		return fmt.Errorf("failed to set medals aff=%d race=%d: %w", affiliationID, raceID, err)
	}
	return checkAffectedRows(result, ErrUserDataNotFound)
}

func (r *SQLiteUserDataRepository) TryMarkStrikeIssued(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE river_race_user_data SET strike_issued = TRUE WHERE id = ? AND strike_issued = FALSE", id)
	if err != nil {
		return false, fmt.Errorf("failed to mark strike issued for row %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func scanUserData(s rowScanner) (*domain.RiverRaceUserData, error) {
	data := &domain.RiverRaceUserData{}
	var lastCheck sql.NullTime

	err := s.Scan(
		&data.ID, &data.ClanAffiliationID, &data.RiverRaceID, &data.Medals,
		&data.RegularWins, &data.RegularLosses,
		&data.SpecialWins, &data.SpecialLosses,
		&data.DuelWins, &data.DuelLosses,
		&data.SeriesWins, &data.SeriesLosses,
		&data.BoatWins, &data.BoatLosses,
		&data.Days[0].DecksUsed, &data.Days[1].DecksUsed, &data.Days[2].DecksUsed,
		&data.Days[3].DecksUsed, &data.Days[4].DecksUsed, &data.Days[5].DecksUsed,
		&data.Days[6].DecksUsed,
		&data.Days[0].Active, &data.Days[1].Active, &data.Days[2].Active, &data.Days[3].Active,
		&data.Days[4].Active, &data.Days[5].Active, &data.Days[6].Active,
		&data.Days[0].Locked, &data.Days[1].Locked, &data.Days[2].Locked, &data.Days[3].Locked,
		&data.Days[4].Locked, &data.Days[5].Locked, &data.Days[6].Locked,
		&data.Days[0].OutsideBattles, &data.Days[1].OutsideBattles, &data.Days[2].OutsideBattles,
		&data.Days[3].OutsideBattles, &data.Days[4].OutsideBattles, &data.Days[5].OutsideBattles,
		&data.Days[6].OutsideBattles,
		&data.Days[0].BoatDecksUsed, &data.Days[1].BoatDecksUsed, &data.Days[2].BoatDecksUsed,
		&data.Days[3].BoatDecksUsed, &data.Days[4].BoatDecksUsed, &data.Days[5].BoatDecksUsed,
		&data.Days[6].BoatDecksUsed,
		&data.StrikeIssued, &lastCheck)
	if err != nil {
		return nil, err
	}

	if lastCheck.Valid {
		data.LastCheck = lastCheck.Time
	}
	return data, nil
}
