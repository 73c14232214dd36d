package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ErrMalformedBattleRecord marks a raw record that failed shape or range
// checks. Malformed records are dropped and reported; they never abort the
// batch they arrived in.
var ErrMalformedBattleRecord = errors.New("malformed battle record")

// Battle log timestamps arrive as "yyyymmddThhmmss.000Z".
const battleTimeLayout = "20060102T150405.000Z"

var tagPattern = regexp.MustCompile(`^[CGJLPQRUVY0289]+$`)

// RawBattle mirrors the JSON shape of one battle-log record as delivered
// by the ingestion layer.
type RawBattle struct {
	Type       string `json:"type"`
	BattleTime string `json:"battleTime"`
	GameMode   struct {
		Name string `json:"name"`
	} `json:"gameMode"`
	BoatBattleSide      string    `json:"boatBattleSide,omitempty"`
	BoatBattleWon       bool      `json:"boatBattleWon,omitempty"`
	NewTowersDestroyed  int       `json:"newTowersDestroyed,omitempty"`
	PrevTowersDestroyed int       `json:"prevTowersDestroyed,omitempty"`
	RemainingTowers     int       `json:"remainingTowers,omitempty"`
	Team                []RawSide `json:"team"`
	Opponent            []RawSide `json:"opponent"`
}

type RawSide struct {
	Clan struct {
		Tag string `json:"tag"`
	} `json:"clan"`
	Crowns int        `json:"crowns"`
	Cards  []RawCard  `json:"cards"`
	Rounds []RawRound `json:"rounds,omitempty"`
}

type RawRound struct {
	Crowns int       `json:"crowns"`
	Cards  []RawCard `json:"cards"`
}

type RawCard struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	MaxLevel int    `json:"maxLevel"`
}

type Normalizer struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize converts a batch of raw battle-log records into normalized
// battle entities for one (affiliation, race) pair. Records that are not
// river race battles are silently skipped; malformed ones are dropped and
// returned as errors alongside the successfully normalized set.
func (n *Normalizer) Normalize(affiliationID, raceID int64, raw []RawBattle) (domain.BattleSet, []error) {
	var set domain.BattleSet
	var errs []error
	cards := make(map[int64]domain.Card)

	for i, record := range raw {
		switch {
		case record.Type == "riverRacePvP":
			battle, err := n.normalizePvp(affiliationID, raceID, record, cards)
			if err != nil {
				errs = append(errs, fmt.Errorf("record %d: %w", i, err))
				continue
			}
			set.PvpBattles = append(set.PvpBattles, battle)

		case strings.HasPrefix(record.Type, "riverRaceDuel"):
			duel, err := n.normalizeDuel(affiliationID, raceID, record, cards)
			if err != nil {
				errs = append(errs, fmt.Errorf("record %d: %w", i, err))
				continue
			}
			set.Duels = append(set.Duels, duel)

		case record.Type == "boatBattle":
			// Defender-side boat battles do not consume a deck.
			if record.BoatBattleSide != "attacker" {
				continue
			}
			battle, err := n.normalizeBoat(affiliationID, raceID, record, cards)
			if err != nil {
				errs = append(errs, fmt.Errorf("record %d: %w", i, err))
				continue
			}
			set.BoatBattles = append(set.BoatBattles, battle)

		default:
			// Not a war battle. Ladder games and friendlies share the log.
			continue
		}
	}

	for _, card := range cards {
		set.Cards = append(set.Cards, card)
	}

	if len(errs) > 0 {
		n.logger.Warn().
			Int64("affiliation_id", affiliationID).
			Int64("race_id", raceID).
			Int("dropped", len(errs)).
			Int("normalized", len(set.PvpBattles)+len(set.Duels)+len(set.BoatBattles)).
			Msg("dropped malformed battle records")
	}

	return set, errs
}

func (n *Normalizer) normalizePvp(affiliationID, raceID int64, record RawBattle, cards map[int64]domain.Card) (domain.PvpBattle, error) {
	var battle domain.PvpBattle

	ts, err := parseBattleTime(record.BattleTime)
	if err != nil {
		return battle, err
	}
	if len(record.Team) == 0 || len(record.Opponent) == 0 {
		return battle, fmt.Errorf("%w: missing team or opponent side", ErrMalformedBattleRecord)
	}

	ownTag, err := normalizeTag(record.Team[0].Clan.Tag)
	if err != nil {
		return battle, err
	}

	deck, err := normalizeDeck(record.Team[0].Cards, cards)
	if err != nil {
		return battle, err
	}

	opponentTag := ""
	if tag, err := normalizeTag(record.Opponent[0].Clan.Tag); err == nil {
		opponentTag = tag
	}

	battle = domain.PvpBattle{
		ClanAffiliationID: affiliationID,
		RiverRaceID:       raceID,
		Time:              ts,
		GameMode:          record.GameMode.Name,
		OwnClanTag:        ownTag,
		OpponentClanTag:   opponentTag,
		Crowns:            record.Team[0].Crowns,
		OpponentCrowns:    record.Opponent[0].Crowns,
		Won:               record.Team[0].Crowns > record.Opponent[0].Crowns,
		Deck:              deck,
	}
	return battle, nil
}

func (n *Normalizer) normalizeDuel(affiliationID, raceID int64, record RawBattle, cards map[int64]domain.Card) (domain.Duel, error) {
	var duel domain.Duel

	ts, err := parseBattleTime(record.BattleTime)
	if err != nil {
		return duel, err
	}
	if len(record.Team) == 0 || len(record.Opponent) == 0 {
		return duel, fmt.Errorf("%w: missing team or opponent side", ErrMalformedBattleRecord)
	}

	ownTag, err := normalizeTag(record.Team[0].Clan.Tag)
	if err != nil {
		return duel, err
	}

	teamRounds := record.Team[0].Rounds
	opponentRounds := record.Opponent[0].Rounds
	if len(teamRounds) == 0 || len(teamRounds) > constants.MaxDuelRounds {
		return duel, fmt.Errorf("%w: duel has %d rounds", ErrMalformedBattleRecord, len(teamRounds))
	}
	if len(opponentRounds) != len(teamRounds) {
		return duel, fmt.Errorf("%w: mismatched duel round counts", ErrMalformedBattleRecord)
	}

	duel = domain.Duel{
		ClanAffiliationID: affiliationID,
		RiverRaceID:       raceID,
		Time:              ts,
		OwnClanTag:        ownTag,
	}

	for i, round := range teamRounds {
		deck, err := normalizeDeck(round.Cards, cards)
		if err != nil {
			return duel, err
		}

		won := round.Crowns > opponentRounds[i].Crowns
		if won {
			duel.RoundWins++
		} else {
			duel.RoundLosses++
		}

		duel.Rounds = append(duel.Rounds, domain.PvpBattle{
			ClanAffiliationID: affiliationID,
			RiverRaceID:       raceID,
			Time:              ts,
			GameMode:          record.GameMode.Name,
			OwnClanTag:        ownTag,
			Crowns:            round.Crowns,
			OpponentCrowns:    opponentRounds[i].Crowns,
			Won:               won,
			Deck:              deck,
		})
	}

	duel.Won = duel.RoundWins > duel.RoundLosses
	return duel, nil
}

func (n *Normalizer) normalizeBoat(affiliationID, raceID int64, record RawBattle, cards map[int64]domain.Card) (domain.BoatBattle, error) {
	var battle domain.BoatBattle

	ts, err := parseBattleTime(record.BattleTime)
	if err != nil {
		return battle, err
	}
	if len(record.Team) == 0 {
		return battle, fmt.Errorf("%w: missing team side", ErrMalformedBattleRecord)
	}

	ownTag, err := normalizeTag(record.Team[0].Clan.Tag)
	if err != nil {
		return battle, err
	}

	deck, err := normalizeDeck(record.Team[0].Cards, cards)
	if err != nil {
		return battle, err
	}

	if record.NewTowersDestroyed < 0 || record.RemainingTowers < 0 {
		return battle, fmt.Errorf("%w: negative tower count", ErrMalformedBattleRecord)
	}

	battle = domain.BoatBattle{
		ClanAffiliationID:   affiliationID,
		RiverRaceID:         raceID,
		Time:                ts,
		Won:                 record.BoatBattleWon || record.RemainingTowers == 0,
		OwnClanTag:          ownTag,
		NewTowersDestroyed:  record.NewTowersDestroyed,
		PrevTowersDestroyed: record.PrevTowersDestroyed,
		RemainingTowers:     record.RemainingTowers,
		Deck:                deck,
	}
	return battle, nil
}

func parseBattleTime(value string) (time.Time, error) {
	ts, err := time.Parse(battleTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad battle time %q", ErrMalformedBattleRecord, value)
	}
	return ts.UTC(), nil
}

// normalizeTag validates and canonicalizes a Supercell tag. Valid tags
// contain only the letters CGJLPQRUVY and the digits 0289; a common typo
// replaces 0 with the letter O.
func normalizeTag(input string) (string, error) {
	tag := strings.ToUpper(strings.TrimSpace(input))
	tag = strings.ReplaceAll(tag, "O", "0")
	tag = strings.TrimPrefix(tag, "#")

	if tag == "" || len(tag) >= 12 || !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: invalid tag %q", ErrMalformedBattleRecord, input)
	}
	return "#" + tag, nil
}

func normalizeDeck(raw []RawCard, cards map[int64]domain.Card) (domain.Deck, error) {
	if len(raw) != constants.DeckCardCount {
		return domain.Deck{}, fmt.Errorf("%w: deck has %d cards", ErrMalformedBattleRecord, len(raw))
	}

	deck := domain.Deck{Cards: make([]domain.DeckCard, 0, constants.DeckCardCount)}
	seen := make(map[int64]bool, constants.DeckCardCount)

	for _, card := range raw {
		if card.Level < constants.MinCardLevel || card.Level > constants.MaxCardLevel {
			return domain.Deck{}, fmt.Errorf("%w: card %d level %d out of range", ErrMalformedBattleRecord, card.ID, card.Level)
		}
		if seen[card.ID] {
			return domain.Deck{}, fmt.Errorf("%w: duplicate card %d in deck", ErrMalformedBattleRecord, card.ID)
		}
		seen[card.ID] = true

		deck.Cards = append(deck.Cards, domain.DeckCard{CardID: card.ID, Level: card.Level})
		if _, ok := cards[card.ID]; !ok {
			cards[card.ID] = domain.Card{ID: card.ID, Name: card.Name, MaxLevel: card.MaxLevel}
		}
	}

	return deck, nil
}
