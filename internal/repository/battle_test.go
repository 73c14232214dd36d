package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"riverrace-tracker/internal/config"
	"riverrace-tracker/internal/database"
	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

var battleTime = time.Date(2024, 9, 6, 18, 30, 0, 0, time.UTC)

type repoFixture struct {
	db          *sql.DB
	affiliation *domain.ClanAffiliation
	race        *domain.RiverRace
	clan        *domain.Clan
}

// setupRepos opens a fresh migrated database and seeds one clan, one
// tracked member, and one race, so battle and aggregate rows have every
// foreign key they need.
func setupRepos(t *testing.T) *repoFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	clan, err := NewClanRepository(db, zerolog.Nop()).Upsert(ctx, "#C0G280", "Test Clan")
	if err != nil {
		t.Fatal(err)
	}
	user, err := NewUserRepository(db, zerolog.Nop()).Upsert(ctx, &domain.User{Tag: "#PLAYER1", Name: "Player"})
	if err != nil {
		t.Fatal(err)
	}
	aff, err := NewAffiliationRepository(db, zerolog.Nop()).
		GetOrCreate(ctx, user.ID, clan.ID, domain.RoleMember, battleTime.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	raceStart := battleTime.Add(-5 * 24 * time.Hour)
	season, err := NewSeasonRepository(db, zerolog.Nop()).Create(ctx, raceStart)
	if err != nil {
		t.Fatal(err)
	}
	race, err := NewRiverRaceRepository(db, zerolog.Nop()).
		GetOrCreate(ctx, clan.ID, season.ID, 1, raceStart, false)
	if err != nil {
		t.Fatal(err)
	}

	return &repoFixture{db: db, affiliation: aff, race: race, clan: clan}
}

func (f *repoFixture) duel(roundWins, roundLosses int) domain.Duel {
	duel := domain.Duel{
		ClanAffiliationID: f.affiliation.ID,
		RiverRaceID:       f.race.ID,
		Time:              battleTime,
		Won:               roundWins > roundLosses,
		OwnClanTag:        f.clan.Tag,
		RoundWins:         roundWins,
		RoundLosses:       roundLosses,
	}
	for i := 0; i < roundWins+roundLosses; i++ {
		duel.Rounds = append(duel.Rounds, domain.PvpBattle{
			ClanAffiliationID: f.affiliation.ID,
			RiverRaceID:       f.race.ID,
			Time:              battleTime,
			Won:               i < roundWins,
			GameMode:          "CW_Duel_1v1",
			OwnClanTag:        f.clan.Tag,
			Crowns:            2,
			OpponentCrowns:    1,
			Deck:              domain.Deck{Cards: []domain.DeckCard{{CardID: int64(100 + i), Level: 11}}},
		})
	}
	return duel
}

func (f *repoFixture) pvp(ts time.Time) domain.PvpBattle {
	return domain.PvpBattle{
		ClanAffiliationID: f.affiliation.ID,
		RiverRaceID:       f.race.ID,
		Time:              ts,
		Won:               true,
		GameMode:          "CW_Battle_1v1",
		OwnClanTag:        f.clan.Tag,
		Crowns:            1,
	}
}

func (f *repoFixture) countRounds(t *testing.T) int {
	t.Helper()
	var count int
	err := f.db.QueryRow("SELECT COUNT(*) FROM pvp_battles WHERE duel_id IS NOT NULL").Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	return count
}

// Rounds of one duel all carry the duel's timestamp. Every round must
// survive the append, not just the first.
func TestAppendBattleSet_PersistsEveryDuelRound(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	set := domain.BattleSet{
		Cards: []domain.Card{{ID: 100, Name: "Knight", MaxLevel: 14}, {ID: 101, Name: "Archers", MaxLevel: 14}, {ID: 102, Name: "Giant", MaxLevel: 14}},
		Duels: []domain.Duel{f.duel(2, 1)},
	}
	if err := NewBattleRepository(f.db, zerolog.Nop()).AppendBattleSet(ctx, set); err != nil {
		t.Fatal(err)
	}

	if got := f.countRounds(t); got != 3 {
		t.Fatalf("stored %d duel rounds, want 3", got)
	}

	stored, err := NewBattleRepository(f.db, zerolog.Nop()).GetBattleSet(ctx, f.affiliation.ID, f.race.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Duels) != 1 {
		t.Fatalf("got %d duels, want 1", len(stored.Duels))
	}
	if len(stored.Duels[0].Rounds) != 3 {
		t.Errorf("got %d rounds, want 3", len(stored.Duels[0].Rounds))
	}
	wins := 0
	for _, round := range stored.Duels[0].Rounds {
		if round.Won {
			wins++
		}
	}
	if wins != 2 {
		t.Errorf("got %d round wins, want 2", wins)
	}
}

func TestAppendBattleSet_ReplayIsNoOp(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	repo := NewBattleRepository(f.db, zerolog.Nop())

	set := domain.BattleSet{
		Cards:      []domain.Card{{ID: 100, Name: "Knight", MaxLevel: 14}, {ID: 101, Name: "Archers", MaxLevel: 14}, {ID: 102, Name: "Giant", MaxLevel: 14}},
		PvpBattles: []domain.PvpBattle{f.pvp(battleTime.Add(time.Hour))},
		Duels:      []domain.Duel{f.duel(2, 1)},
		BoatBattles: []domain.BoatBattle{{
			ClanAffiliationID: f.affiliation.ID,
			RiverRaceID:       f.race.ID,
			Time:              battleTime.Add(2 * time.Hour),
			Won:               true,
			OwnClanTag:        f.clan.Tag,
		}},
	}

	for i := 0; i < 2; i++ {
		if err := repo.AppendBattleSet(ctx, set); err != nil {
			t.Fatal(err)
		}
	}

	stored, err := repo.GetBattleSet(ctx, f.affiliation.ID, f.race.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.PvpBattles) != 1 || len(stored.Duels) != 1 || len(stored.BoatBattles) != 1 {
		t.Errorf("replay duplicated battles: %d pvp, %d duels, %d boats",
			len(stored.PvpBattles), len(stored.Duels), len(stored.BoatBattles))
	}
	if got := f.countRounds(t); got != 3 {
		t.Errorf("replay left %d duel rounds, want 3", got)
	}
}

func TestAppendBattleSet_DedupesStandalonePvp(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	repo := NewBattleRepository(f.db, zerolog.Nop())

	first := domain.BattleSet{PvpBattles: []domain.PvpBattle{f.pvp(battleTime)}}
	second := domain.BattleSet{PvpBattles: []domain.PvpBattle{f.pvp(battleTime), f.pvp(battleTime.Add(time.Minute))}}

	if err := repo.AppendBattleSet(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := repo.AppendBattleSet(ctx, second); err != nil {
		t.Fatal(err)
	}

	stored, err := repo.GetBattleSet(ctx, f.affiliation.ID, f.race.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.PvpBattles) != 2 {
		t.Errorf("got %d pvp battles, want 2", len(stored.PvpBattles))
	}
}
