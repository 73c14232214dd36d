package constants

import "time"

const (
	// A River Race spans seven daily periods: three training days followed
	// by up to four battle days.
	RaceDays       = 7
	TrainingDays   = 3
	FirstBattleDay = 4
	DayDuration    = 24 * time.Hour
)

const (
	DeckCardCount = 8
	MinCardLevel  = 1
	MaxCardLevel  = 14
	MaxDuelRounds = 3

	// Hard per-day deck cap imposed by the game, not the strike threshold.
	DecksPerDay = 4

	// 50 members x 4 decks, the most a clan can field on one battle day.
	DecksPerClanDay = 200

	SaturdayFameGoal = 10000
)

// Game mode name of a standard 1v1 war battle. Anything else tagged as a
// river race PvP battle counts as a special mode.
const RegularBattleMode = "CW_Battle_1v1"

const (
	DatabaseTimeout  = 5 * time.Second
	AggregateTimeout = 30 * time.Second
	EvaluateTimeout  = 30 * time.Second
	RequestTimeout   = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	AggregationInterval = 1 * time.Hour
	ShutdownTimeout     = 5 * time.Second
)

const DefaultPredictionWindow = 10
