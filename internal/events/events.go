package events

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// StrikeAssigned is emitted once per (affiliation, race) when a user fails
// their clan's participation rule.
type StrikeAssigned struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	ClanID      int64     `json:"clan_id"`
	RiverRaceID int64     `json:"river_race_id"`
	Reason      string    `json:"reason"`
	IssuedAt    time.Time `json:"issued_at"`
}

// ClanProjection is one clan's projected final standing in a race.
type ClanProjection struct {
	Rank            int     `json:"rank"`
	Tag             string  `json:"tag"`
	Name            string  `json:"name"`
	CurrentMedals   int     `json:"current_medals"`
	ProjectedMedals float64 `json:"projected_medals"`
	AvgDailyMedals  float64 `json:"avg_daily_medals"`
	DeckUsageRate   float64 `json:"deck_usage_rate"`
	FromHistory     bool    `json:"from_history"`
}

type PredictionReady struct {
	ID          string           `json:"id"`
	RiverRaceID int64            `json:"river_race_id"`
	Projections []ClanProjection `json:"projections"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ReminderFact is a per-user, per-day fact the notification layer can turn
// into a reminder. Locked users hit the deck cap and need no nudge.
type ReminderFact struct {
	UserID         int64  `json:"user_id"`
	UserTag        string `json:"user_tag"`
	ReminderTime   string `json:"reminder_time"`
	DecksRemaining int    `json:"decks_remaining"`
	Locked         bool   `json:"locked"`
}

// Emitter hands outcomes to the excluded notification and reporting
// layer. The core never blocks on delivery.
type Emitter interface {
	EmitStrike(ctx context.Context, event StrikeAssigned)
	EmitPrediction(ctx context.Context, event PredictionReady)
}

// LogEmitter writes events to the structured log, which the notification
// layer tails. Event ids make redelivery detectable downstream.
type LogEmitter struct {
	logger zerolog.Logger
}

func NewLogEmitter(logger zerolog.Logger) Emitter {
	return &LogEmitter{logger: logger}
}

func NewEventID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate event id: %w", err)
	}
	return id, nil
}

func (e *LogEmitter) EmitStrike(ctx context.Context, event StrikeAssigned) {
	e.logger.Info().
		Str("event_id", event.ID).
		Int64("user_id", event.UserID).
		Int64("clan_id", event.ClanID).
		Int64("river_race_id", event.RiverRaceID).
		Str("reason", event.Reason).
		Time("issued_at", event.IssuedAt).
		Msg("strike assigned")
}

func (e *LogEmitter) EmitPrediction(ctx context.Context, event PredictionReady) {
	e.logger.Info().
		Str("event_id", event.ID).
		Int64("river_race_id", event.RiverRaceID).
		Int("clans", len(event.Projections)).
		Msg("prediction ready")
}
