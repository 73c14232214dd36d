package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type Card struct {
	ID       int64
	Name     string
	MaxLevel int
}

// DeckCard pairs a card with the level it was played at.
type DeckCard struct {
	CardID int64
	Level  int
}

// Deck is an owned set of eight (card, level) pairs. Identity is set
// equality, so identical decks played by different users deduplicate.
type Deck struct {
	ID    int64
	Cards []DeckCard
}

// Key returns a canonical representation of the deck's card set, used to
// deduplicate identical decks on insert.
func (d Deck) Key() string {
	cards := make([]DeckCard, len(d.Cards))
	copy(cards, d.Cards)
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CardID != cards[j].CardID {
			return cards[i].CardID < cards[j].CardID
		}
		return cards[i].Level < cards[j].Level
	})

	var b strings.Builder
	for i, c := range cards {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(c.CardID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(c.Level))
	}
	return b.String()
}

// PvpBattle is a normalized 1v1 war battle. OwnClanTag records which clan
// the user battled for; aggregation compares it against the race's clan to
// detect outside battles.
type PvpBattle struct {
	ID                int64
	ClanAffiliationID int64
	RiverRaceID       int64
	Time              time.Time
	Won               bool
	GameMode          string
	OwnClanTag        string
	OpponentClanTag   string
	Crowns            int
	OpponentCrowns    int
	Deck              Deck
}

// Duel is a best-of-three series of PvP rounds. Won reflects the series
// outcome; RoundWins/RoundLosses count the individual rounds.
type Duel struct {
	ID                int64
	ClanAffiliationID int64
	RiverRaceID       int64
	Time              time.Time
	Won               bool
	OwnClanTag        string
	RoundWins         int
	RoundLosses       int
	Rounds            []PvpBattle
}

type BoatBattle struct {
	ID                  int64
	ClanAffiliationID   int64
	RiverRaceID         int64
	Time                time.Time
	Won                 bool
	OwnClanTag          string
	NewTowersDestroyed  int
	PrevTowersDestroyed int
	RemainingTowers     int
	Deck                Deck
}

// BattleSet groups the normalized battles of one ingestion batch for a
// single (affiliation, race) pair. Cards is the catalog of every card seen
// in the batch, persisted so deck rows can reference them.
type BattleSet struct {
	PvpBattles  []PvpBattle
	Duels       []Duel
	BoatBattles []BoatBattle
	Cards       []Card
}

func (b BattleSet) Empty() bool {
	return len(b.PvpBattles) == 0 && len(b.Duels) == 0 && len(b.BoatBattles) == 0
}
