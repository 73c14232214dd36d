package service

import (
	"context"
	"sort"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/events"
	"riverrace-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// PredictorService projects a race's final standings. Each clan's daily
// medal pace comes from its own trailing history of completed races; clans
// with no history fall back to the cross-clan average inside this race.
type PredictorService struct {
	races     repository.RiverRaceRepository
	raceClans repository.RaceClanRepository
	lifecycle *LifecycleService
	emitter   events.Emitter
	window    int
	logger    zerolog.Logger
}

func NewPredictorService(
	races repository.RiverRaceRepository,
	raceClans repository.RaceClanRepository,
	lifecycle *LifecycleService,
	emitter events.Emitter,
	window int,
	logger zerolog.Logger,
) *PredictorService {
	if window <= 0 {
		window = constants.DefaultPredictionWindow
	}
	return &PredictorService{
		races:     races,
		raceClans: raceClans,
		lifecycle: lifecycle,
		emitter:   emitter,
		window:    window,
		logger:    logger,
	}
}

// Predict computes projected final medals for every clan in the race and
// returns them ranked. The ordering is a total order: projected medals
// descending, then current medals descending, then tag ascending, so equal
// inputs always produce the same ranking. A non-positive window uses the
// configured default.
func (s *PredictorService) Predict(ctx context.Context, raceID int64, window int, now time.Time) (events.PredictionReady, error) {
	var prediction events.PredictionReady
	if window <= 0 {
		window = s.window
	}

	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return prediction, err
	}
	snapshots, err := s.raceClans.ListByRace(ctx, raceID)
	if err != nil {
		return prediction, err
	}

	remaining := s.remainingBattleDays(race, now)

	projections := make([]events.ClanProjection, 0, len(snapshots))
	var sumAvg, sumRate float64
	var withHistory int

	for _, snap := range snapshots {
		proj := events.ClanProjection{
			Tag:           snap.Tag,
			Name:          snap.Name,
			CurrentMedals: snap.Medals,
		}

		history, err := s.raceClans.History(ctx, snap.Tag, raceID, window)
		if err != nil {
			return prediction, err
		}

		var medals, decks, battleDays int
		for _, past := range history {
			medals += past.Medals
			decks += past.TotalDecksUsed
			battleDays += past.BattleDays
		}
		if battleDays > 0 {
			proj.AvgDailyMedals = float64(medals) / float64(battleDays)
			proj.DeckUsageRate = float64(decks) / float64(battleDays*constants.DecksPerClanDay)
			proj.FromHistory = true
			sumAvg += proj.AvgDailyMedals
			sumRate += proj.DeckUsageRate
			withHistory++
		}
		projections = append(projections, proj)
	}

	for i := range projections {
		if !projections[i].FromHistory && withHistory > 0 {
			projections[i].AvgDailyMedals = sumAvg / float64(withHistory)
			projections[i].DeckUsageRate = sumRate / float64(withHistory)
		}
		projections[i].ProjectedMedals = float64(projections[i].CurrentMedals) +
			float64(remaining)*projections[i].AvgDailyMedals
	}

	sort.Slice(projections, func(i, j int) bool {
		a, b := projections[i], projections[j]
		if a.ProjectedMedals != b.ProjectedMedals {
			return a.ProjectedMedals > b.ProjectedMedals
		}
		if a.CurrentMedals != b.CurrentMedals {
			return a.CurrentMedals > b.CurrentMedals
		}
		return a.Tag < b.Tag
	})
	for i := range projections {
		projections[i].Rank = i + 1
	}

	id, err := events.NewEventID()
	if err != nil {
		return prediction, err
	}
	prediction = events.PredictionReady{
		ID:          id,
		RiverRaceID: raceID,
		Projections: projections,
		CreatedAt:   now,
	}
	s.emitter.EmitPrediction(ctx, prediction)
	return prediction, nil
}

// remainingBattleDays counts the battle days not yet closed. A completed
// race projects nothing beyond its current medals.
func (s *PredictorService) remainingBattleDays(race *domain.RiverRace, now time.Time) int {
	if s.lifecycle.State(race, now) == domain.RaceCompleted {
		return 0
	}

	closed := 0
	for _, boundary := range race.DayBoundaries {
		if boundary != nil {
			closed++
		}
	}
	elapsed := closed - constants.TrainingDays
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := (constants.RaceDays - constants.TrainingDays) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
