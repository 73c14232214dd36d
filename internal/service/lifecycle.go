package service

import (
	"context"
	"fmt"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// LifecycleService tracks each race through its week: three training days
// followed by four battle days. Day boundaries default to fixed 24h offsets
// from the race start; once a day is explicitly closed, the recorded
// boundary takes precedence over the calendar estimate.
type LifecycleService struct {
	races   repository.RiverRaceRepository
	seasons repository.SeasonRepository
	logger  zerolog.Logger
}

func NewLifecycleService(races repository.RiverRaceRepository, seasons repository.SeasonRepository, logger zerolog.Logger) *LifecycleService {
	return &LifecycleService{races: races, seasons: seasons, logger: logger}
}

// GetOrCreateRace resolves the race a clan is in at the given instant,
// creating the row on first sight. The week number is derived from the
// latest season's start; a season is created on first use.
func (s *LifecycleService) GetOrCreateRace(ctx context.Context, clanID int64, now time.Time) (*domain.RiverRace, error) {
	season, err := s.seasons.Latest(ctx)
	if err == repository.ErrSeasonNotFound {
		season, err = s.seasons.Create(ctx, weekStartOf(now))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve season: %w", err)
	}

	elapsed := now.Sub(season.StartTime)
	if elapsed < 0 {
		return nil, fmt.Errorf("%w: race requested before season start", ErrInvariantViolation)
	}

	week := int(elapsed/(time.Duration(constants.RaceDays)*constants.DayDuration)) + 1
	weekStart := season.StartTime.Add(time.Duration(week-1) * time.Duration(constants.RaceDays) * constants.DayDuration)

	race, err := s.races.GetOrCreate(ctx, clanID, season.ID, week, weekStart, IsColosseumWeek(weekStart))
	if err != nil {
		return nil, err
	}
	return race, nil
}

// IsColosseumWeek reports whether the race starting at weekStart is the
// season-ending colosseum week: the last full war week of a month, detected
// by the following week's start falling in a different month.
func IsColosseumWeek(weekStart time.Time) bool {
	next := weekStart.AddDate(0, 0, constants.RaceDays)
	return weekStart.Month() != next.Month()
}

// weekStartOf truncates to the most recent Monday at 10:00 UTC, when war
// weeks roll over.
func weekStartOf(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC)
	for start.Weekday() != time.Monday || start.After(now) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// dayEnd returns the effective end of day n (1-based). A recorded boundary
// wins; otherwise the end is start_time + n days. dayEnd(0) is the race
// start.
func dayEnd(race *domain.RiverRace, n int) time.Time {
	if n == 0 {
		return race.StartTime
	}
	if b := race.DayBoundaries[n-1]; b != nil {
		return *b
	}
	return race.StartTime.Add(time.Duration(n) * constants.DayDuration)
}

// DayIndex maps a timestamp to the 1-based race day containing it. Day n
// spans [dayEnd(n-1), dayEnd(n)). Timestamps before the race start or past
// its last day return ErrUnknownLifecycleDay.
func (s *LifecycleService) DayIndex(race *domain.RiverRace, ts time.Time) (int, error) {
	if ts.Before(race.StartTime) {
		return 0, fmt.Errorf("%w: %s precedes race start", ErrUnknownLifecycleDay, ts.Format(time.RFC3339))
	}
	for day := 1; day <= constants.RaceDays; day++ {
		if ts.Before(dayEnd(race, day)) {
			return day, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is past the race end", ErrUnknownLifecycleDay, ts.Format(time.RFC3339))
}

// CloseDay records the observed end of a day. Days close in order, exactly
// once, with non-decreasing boundaries; closing an already-closed day with
// the same boundary is a no-op. The battle_time flag is committed in the
// same write so readers never see a half-applied transition.
func (s *LifecycleService) CloseDay(ctx context.Context, raceID int64, day int, boundary time.Time) error {
	if day < 1 || day > constants.RaceDays {
		return fmt.Errorf("%w: day %d out of range", ErrInvariantViolation, day)
	}

	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return err
	}
	if race.CompletedSaturday {
		return fmt.Errorf("%w: race %d already completed", ErrInvariantViolation, raceID)
	}

	if existing := race.DayBoundaries[day-1]; existing != nil {
		if existing.Equal(boundary) {
			return nil
		}
		return fmt.Errorf("%w: day %d of race %d already closed", ErrInvariantViolation, day, raceID)
	}

	for prior := 1; prior < day; prior++ {
		if race.DayBoundaries[prior-1] == nil {
			return fmt.Errorf("%w: day %d closed before day %d", ErrInvariantViolation, day, prior)
		}
	}
	if boundary.Before(dayEnd(race, day-1)) {
		return fmt.Errorf("%w: day %d boundary precedes day %d", ErrInvariantViolation, day, day-1)
	}

	battleTime := day+1 >= constants.FirstBattleDay && day < constants.RaceDays
	return s.races.CommitDayBoundary(ctx, raceID, day, boundary, battleTime, false)
}

// CompleteSaturday marks a race finished early, on reaching the medal goal
// before its final day. The flag is set at most once; repeated calls are
// no-ops.
func (s *LifecycleService) CompleteSaturday(ctx context.Context, raceID int64, ts time.Time) error {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return err
	}
	if race.CompletedSaturday {
		return nil
	}
	if race.DayBoundaries[constants.RaceDays-1] != nil {
		return fmt.Errorf("%w: race %d already ran its full week", ErrInvariantViolation, raceID)
	}

	s.logger.Info().
		Int64("race_id", raceID).
		Time("completed_at", ts).
		Msg("race completed early")
	return s.races.CommitDayBoundary(ctx, raceID, constants.RaceDays, ts, false, true)
}

// State derives the lifecycle state of a race at the given instant.
// Completion is sticky: once the final day closes or the race completes
// early, the state never moves backward.
func (s *LifecycleService) State(race *domain.RiverRace, now time.Time) domain.RaceState {
	if race.CompletedSaturday || race.DayBoundaries[constants.RaceDays-1] != nil {
		return domain.RaceCompleted
	}
	if now.Before(race.StartTime) {
		return domain.RaceCreated
	}

	day, err := s.DayIndex(race, now)
	if err != nil {
		return domain.RaceCompleted
	}
	if day <= constants.TrainingDays {
		return domain.RaceTraining
	}
	return domain.RaceBattleDay
}
