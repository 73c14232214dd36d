package repository

import (
	"context"
	"database/sql"
	"fmt"

	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// BattleRepository is the append-only battle log. Battles are immutable
// once inserted; aggregates are always recomputed from this log. Inserting
// the same battle twice (same affiliation, race, timestamp, and category)
// is a no-op so re-fetched logs never duplicate facts.
type BattleRepository interface {
	AppendBattleSet(ctx context.Context, set domain.BattleSet) error
	GetBattleSet(ctx context.Context, affiliationID, raceID int64) (domain.BattleSet, error)
}

type SQLiteBattleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBattleRepository(db *sql.DB, logger zerolog.Logger) BattleRepository {
	return &SQLiteBattleRepository{db: db, logger: logger}
}

func (r *SQLiteBattleRepository) AppendBattleSet(ctx context.Context, set domain.BattleSet) error {
	if set.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, card := range set.Cards {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO cards (id, name, max_level) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name",
			card.ID, card.Name, card.MaxLevel)
		if err != nil {
			return fmt.Errorf("failed to upsert card %d: %w", card.ID, err)
		}
	}

	for _, battle := range set.PvpBattles {
		if err := r.insertPvpBattle(ctx, tx, &battle, nil); err != nil {
			return err
		}
	}

	for _, duel := range set.Duels {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO duels
				(clan_affiliation_id, river_race_id, battle_time, won, own_clan_tag, round_wins, round_losses)
			SELECT ?, ?, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM duels WHERE clan_affiliation_id = ? AND river_race_id = ? AND battle_time = ?
			)`,
			duel.ClanAffiliationID, duel.RiverRaceID, duel.Time, duel.Won, duel.OwnClanTag,
			duel.RoundWins, duel.RoundLosses,
			duel.ClanAffiliationID, duel.RiverRaceID, duel.Time)
		if err != nil {
			return fmt.Errorf("failed to insert duel: %w", err)
		}

		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check duel insert: %w", err)
		}
		if inserted == 0 {
			continue
		}

		duelID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get duel id: %w", err)
		}

		for _, round := range duel.Rounds {
			if err := r.insertPvpBattle(ctx, tx, &round, &duelID); err != nil {
				return err
			}
		}
	}

	for _, battle := range set.BoatBattles {
		deckID, err := r.findOrCreateDeck(ctx, tx, battle.Deck)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO boat_battles
				(clan_affiliation_id, river_race_id, battle_time, won, own_clan_tag,
				 new_towers_destroyed, prev_towers_destroyed, remaining_towers, deck_id)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM boat_battles WHERE clan_affiliation_id = ? AND river_race_id = ? AND battle_time = ?
			)`,
			battle.ClanAffiliationID, battle.RiverRaceID, battle.Time, battle.Won, battle.OwnClanTag,
			battle.NewTowersDestroyed, battle.PrevTowersDestroyed, battle.RemainingTowers, deckID,
			battle.ClanAffiliationID, battle.RiverRaceID, battle.Time)
		if err != nil {
			return fmt.Errorf("failed to insert boat battle: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteBattleRepository) insertPvpBattle(ctx context.Context, tx *sql.Tx, battle *domain.PvpBattle, duelID *int64) error {
	deckID, err := r.findOrCreateDeck(ctx, tx, battle.Deck)
	if err != nil {
		return err
	}

	// Duel rounds share their duel's timestamp, so they carry no dedupe
	// key of their own. The duel row's insert already decided this duel
	// is new; its rounds go in unconditionally.
	if duelID != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pvp_battles
				(clan_affiliation_id, river_race_id, battle_time, won, game_mode, own_clan_tag,
				 opponent_clan_tag, crowns, opponent_crowns, deck_id, duel_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			battle.ClanAffiliationID, battle.RiverRaceID, battle.Time, battle.Won, battle.GameMode,
			battle.OwnClanTag, battle.OpponentClanTag, battle.Crowns, battle.OpponentCrowns, deckID, duelID)
		if err != nil {
			return fmt.Errorf("failed to insert duel round: %w", err)
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pvp_battles
			(clan_affiliation_id, river_race_id, battle_time, won, game_mode, own_clan_tag,
			 opponent_clan_tag, crowns, opponent_crowns, deck_id, duel_id)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL
		WHERE NOT EXISTS (
			SELECT 1 FROM pvp_battles
			WHERE clan_affiliation_id = ? AND river_race_id = ? AND battle_time = ?
			  AND duel_id IS NULL
		)`,
		battle.ClanAffiliationID, battle.RiverRaceID, battle.Time, battle.Won, battle.GameMode,
		battle.OwnClanTag, battle.OpponentClanTag, battle.Crowns, battle.OpponentCrowns, deckID,
		battle.ClanAffiliationID, battle.RiverRaceID, battle.Time)
	if err != nil {
		return fmt.Errorf("failed to insert pvp battle: %w", err)
	}
	return nil
}

// findOrCreateDeck deduplicates decks by card-set equality. Identical
// decks played by any user share one row.
func (r *SQLiteBattleRepository) findOrCreateDeck(ctx context.Context, tx *sql.Tx, deck domain.Deck) (*int64, error) {
	if len(deck.Cards) == 0 {
		return nil, nil
	}

	key := deck.Key()

	var deckID int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM decks WHERE card_set_key = ?", key).Scan(&deckID)
	if err == nil {
		return &deckID, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up deck: %w", err)
	}

	result, err := tx.ExecContext(ctx, "INSERT INTO decks (card_set_key) VALUES (?)", key)
	if err != nil {
		return nil, fmt.Errorf("failed to insert deck: %w", err)
	}

	deckID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get deck id: %w", err)
	}

	for _, card := range deck.Cards {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO deck_cards (deck_id, card_id, level) VALUES (?, ?, ?)",
			deckID, card.CardID, card.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to insert deck card %d: %w", card.CardID, err)
		}
	}

	return &deckID, nil
}

func (r *SQLiteBattleRepository) GetBattleSet(ctx context.Context, affiliationID, raceID int64) (domain.BattleSet, error) {
	var set domain.BattleSet

	pvpRows, err := r.db.QueryContext(ctx, `
		SELECT id, clan_affiliation_id, river_race_id, battle_time, won, game_mode,
		       own_clan_tag, opponent_clan_tag, crowns, opponent_crowns
		FROM pvp_battles
		WHERE clan_affiliation_id = ? AND river_race_id = ? AND duel_id IS NULL
		ORDER BY battle_time`, affiliationID, raceID)
	if err != nil {
		return set, fmt.Errorf("failed to query pvp battles: %w", err)
	}
	defer pvpRows.Close()

	for pvpRows.Next() {
		battle, err := scanPvpBattle(pvpRows)
		if err != nil {
			return set, err
		}
		set.PvpBattles = append(set.PvpBattles, battle)
	}
	if err := pvpRows.Err(); err != nil {
		return set, err
	}

	duelRows, err := r.db.QueryContext(ctx, `
		SELECT id, clan_affiliation_id, river_race_id, battle_time, won, own_clan_tag,
		       round_wins, round_losses
		FROM duels
		WHERE clan_affiliation_id = ? AND river_race_id = ?
		ORDER BY battle_time`, affiliationID, raceID)
	if err != nil {
		return set, fmt.Errorf("failed to query duels: %w", err)
	}
	defer duelRows.Close()

	for duelRows.Next() {
		var duel domain.Duel
		err := duelRows.Scan(&duel.ID, &duel.ClanAffiliationID, &duel.RiverRaceID, &duel.Time,
			&duel.Won, &duel.OwnClanTag, &duel.RoundWins, &duel.RoundLosses)
		if err != nil {
			return set, fmt.Errorf("failed to scan duel: %w", err)
		}
		set.Duels = append(set.Duels, duel)
	}
	if err := duelRows.Err(); err != nil {
		return set, err
	}

	for i := range set.Duels {
		roundRows, err := r.db.QueryContext(ctx, `
			SELECT id, clan_affiliation_id, river_race_id, battle_time, won, game_mode,
			       own_clan_tag, opponent_clan_tag, crowns, opponent_crowns
			FROM pvp_battles WHERE duel_id = ? ORDER BY id`, set.Duels[i].ID)
		if err != nil {
			return set, fmt.Errorf("failed to query duel rounds: %w", err)
		}

		for roundRows.Next() {
			round, err := scanPvpBattle(roundRows)
			if err != nil {
				roundRows.Close()
				return set, err
			}
			set.Duels[i].Rounds = append(set.Duels[i].Rounds, round)
		}
		if err := roundRows.Err(); err != nil {
			roundRows.Close()
			return set, err
		}
		roundRows.Close()
	}

	boatRows, err := r.db.QueryContext(ctx, `
		SELECT id, clan_affiliation_id, river_race_id, battle_time, won, own_clan_tag,
		       new_towers_destroyed, prev_towers_destroyed, remaining_towers
		FROM boat_battles
		WHERE clan_affiliation_id = ? AND river_race_id = ?
		ORDER BY battle_time`, affiliationID, raceID)
	if err != nil {
		return set, fmt.Errorf("failed to query boat battles: %w", err)
	}
	defer boatRows.Close()

	for boatRows.Next() {
		var battle domain.BoatBattle
		err := boatRows.Scan(&battle.ID, &battle.ClanAffiliationID, &battle.RiverRaceID,
			&battle.Time, &battle.Won, &battle.OwnClanTag,
			&battle.NewTowersDestroyed, &battle.PrevTowersDestroyed, &battle.RemainingTowers)
		if err != nil {
			return set, fmt.Errorf("failed to scan boat battle: %w", err)
		}
		set.BoatBattles = append(set.BoatBattles, battle)
	}

	return set, boatRows.Err()
}

func scanPvpBattle(rows *sql.Rows) (domain.PvpBattle, error) {
	var battle domain.PvpBattle
	var opponentTag sql.NullString
	err := rows.Scan(&battle.ID, &battle.ClanAffiliationID, &battle.RiverRaceID, &battle.Time,
		&battle.Won, &battle.GameMode, &battle.OwnClanTag, &opponentTag,
		&battle.Crowns, &battle.OpponentCrowns)
	if err != nil {
		return battle, fmt.Errorf("failed to scan pvp battle: %w", err)
	}
	battle.OpponentClanTag = opponentTag.String
	return battle, nil
}
