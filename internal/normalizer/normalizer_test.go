package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func validCards() []RawCard {
	cards := make([]RawCard, 8)
	for i := range cards {
		cards[i] = RawCard{ID: int64(26000000 + i), Name: "Card", Level: 11, MaxLevel: 14}
	}
	return cards
}

func validPvp() RawBattle {
	b := RawBattle{
		Type:       "riverRacePvP",
		BattleTime: "20260108T153000.000Z",
	}
	b.GameMode.Name = "CW_Battle_1v1"
	b.Team = []RawSide{{Crowns: 2, Cards: validCards()}}
	b.Team[0].Clan.Tag = "#C90LJ"
	b.Opponent = []RawSide{{Crowns: 1, Cards: validCards()}}
	b.Opponent[0].Clan.Tag = "#2QU8V"
	return b
}

func TestNormalize_RegularBattle(t *testing.T) {
	n := New(zerolog.Nop())

	set, errs := n.Normalize(1, 1, []RawBattle{validPvp()})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(set.PvpBattles) != 1 {
		t.Fatalf("got %d pvp battles, want 1", len(set.PvpBattles))
	}

	battle := set.PvpBattles[0]
	if !battle.Won {
		t.Error("2-1 crowns should be a win")
	}
	want := time.Date(2026, time.January, 8, 15, 30, 0, 0, time.UTC)
	if !battle.Time.Equal(want) {
		t.Errorf("battle time = %v, want %v", battle.Time, want)
	}
	if battle.OwnClanTag != "#C90LJ" || battle.OpponentClanTag != "#2QU8V" {
		t.Errorf("tags = %q vs %q", battle.OwnClanTag, battle.OpponentClanTag)
	}
	if len(set.Cards) != 8 {
		t.Errorf("card catalog has %d entries, want 8", len(set.Cards))
	}
}

func TestNormalize_TagTypoCorrected(t *testing.T) {
	n := New(zerolog.Nop())

	b := validPvp()
	// The letter O is not in the tag alphabet; it means 0.
	b.Team[0].Clan.Tag = "#C9OLJ"

	set, errs := n.Normalize(1, 1, []RawBattle{b})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if set.PvpBattles[0].OwnClanTag != "#C90LJ" {
		t.Errorf("tag = %q, want #C90LJ", set.PvpBattles[0].OwnClanTag)
	}
}

func TestNormalize_MalformedDropped(t *testing.T) {
	n := New(zerolog.Nop())

	badTime := validPvp()
	badTime.BattleTime = "not-a-time"

	badDeck := validPvp()
	badDeck.Team[0].Cards = badDeck.Team[0].Cards[:5]

	badLevel := validPvp()
	badLevel.Team[0].Cards[0].Level = 15

	badTag := validPvp()
	badTag.Team[0].Clan.Tag = "#ABCDEF"

	set, errs := n.Normalize(1, 1, []RawBattle{badTime, validPvp(), badDeck, badLevel, badTag})
	if len(set.PvpBattles) != 1 {
		t.Errorf("got %d battles, want the 1 valid record", len(set.PvpBattles))
	}
	if len(errs) != 4 {
		t.Fatalf("got %d errors, want 4", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrMalformedBattleRecord) {
			t.Errorf("error %v is not ErrMalformedBattleRecord", err)
		}
	}
}

func TestNormalize_NonWarBattlesSkipped(t *testing.T) {
	n := New(zerolog.Nop())

	ladder := validPvp()
	ladder.Type = "PvP"

	set, errs := n.Normalize(1, 1, []RawBattle{ladder})
	if len(errs) != 0 || !set.Empty() {
		t.Errorf("ladder battle was not silently skipped: %d battles, %v", len(set.PvpBattles), errs)
	}
}

func TestNormalize_Duel(t *testing.T) {
	n := New(zerolog.Nop())

	b := RawBattle{Type: "riverRaceDuelColosseum", BattleTime: "20260110T120000.000Z"}
	b.GameMode.Name = "CW_Duel_1v1"
	b.Team = []RawSide{{Rounds: []RawRound{
		{Crowns: 3, Cards: validCards()},
		{Crowns: 0, Cards: validCards()},
		{Crowns: 2, Cards: validCards()},
	}}}
	b.Team[0].Clan.Tag = "#C90LJ"
	b.Opponent = []RawSide{{Rounds: []RawRound{
		{Crowns: 1, Cards: validCards()},
		{Crowns: 3, Cards: validCards()},
		{Crowns: 1, Cards: validCards()},
	}}}
	b.Opponent[0].Clan.Tag = "#2QU8V"

	set, errs := n.Normalize(1, 1, []RawBattle{b})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(set.Duels) != 1 {
		t.Fatalf("got %d duels, want 1", len(set.Duels))
	}

	duel := set.Duels[0]
	if duel.RoundWins != 2 || duel.RoundLosses != 1 {
		t.Errorf("rounds = %d/%d, want 2/1", duel.RoundWins, duel.RoundLosses)
	}
	if !duel.Won {
		t.Error("2-1 round majority should win the series")
	}
	if len(duel.Rounds) != 3 {
		t.Errorf("got %d round battles, want 3", len(duel.Rounds))
	}
}

func TestNormalize_DuelTooManyRounds(t *testing.T) {
	n := New(zerolog.Nop())

	b := RawBattle{Type: "riverRaceDuel", BattleTime: "20260110T120000.000Z"}
	b.Team = []RawSide{{}}
	b.Team[0].Clan.Tag = "#C90LJ"
	b.Opponent = []RawSide{{}}
	for i := 0; i < 4; i++ {
		b.Team[0].Rounds = append(b.Team[0].Rounds, RawRound{Crowns: 1, Cards: validCards()})
		b.Opponent[0].Rounds = append(b.Opponent[0].Rounds, RawRound{Crowns: 0, Cards: validCards()})
	}

	set, errs := n.Normalize(1, 1, []RawBattle{b})
	if len(set.Duels) != 0 || len(errs) != 1 {
		t.Errorf("four-round duel accepted: %d duels, %v", len(set.Duels), errs)
	}
}

func TestNormalize_BoatDefenderSkipped(t *testing.T) {
	n := New(zerolog.Nop())

	attacker := RawBattle{Type: "boatBattle", BattleTime: "20260109T090000.000Z", BoatBattleSide: "attacker", NewTowersDestroyed: 1, RemainingTowers: 2}
	attacker.Team = []RawSide{{Cards: validCards()}}
	attacker.Team[0].Clan.Tag = "#C90LJ"

	defender := attacker
	defender.BoatBattleSide = "defender"

	set, errs := n.Normalize(1, 1, []RawBattle{attacker, defender})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(set.BoatBattles) != 1 {
		t.Errorf("got %d boat battles, want only the attacker side", len(set.BoatBattles))
	}
}
