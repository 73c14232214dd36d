package scheduler

import (
	"context"
	"errors"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/repository"
	"riverrace-tracker/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scheduler drives the periodic work: per-clan aggregation each tick,
// day-boundary closing when the calendar rolls over, and strike evaluation
// once a race completes. It refuses to run until the one-time setup flag
// is set, so a half-configured deployment never aggregates garbage.
type Scheduler struct {
	variables    repository.VariablesRepository
	primaryClans repository.PrimaryClanRepository
	races        repository.RiverRaceRepository
	clans        repository.ClanRepository
	raceClans    repository.RaceClanRepository
	lifecycle    *service.LifecycleService
	aggregator   *service.AggregatorService
	strikes      *service.StrikeService

	interval time.Duration
	logger   zerolog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(
	variables repository.VariablesRepository,
	primaryClans repository.PrimaryClanRepository,
	races repository.RiverRaceRepository,
	clans repository.ClanRepository,
	raceClans repository.RaceClanRepository,
	lifecycle *service.LifecycleService,
	aggregator *service.AggregatorService,
	strikes *service.StrikeService,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		variables:    variables,
		primaryClans: primaryClans,
		races:        races,
		clans:        clans,
		raceClans:    raceClans,
		lifecycle:    lifecycle,
		aggregator:   aggregator,
		strikes:      strikes,
		interval:     constants.AggregationInterval,
		logger:       logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	initialized, err := s.variables.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		s.logger.Warn().Msg("setup not complete, scheduler idle until initialization")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	initialized, err := s.variables.IsInitialized(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read setup flag")
		return
	}
	if !initialized {
		return
	}

	configs, err := s.primaryClans.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list primary clans")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range configs {
		if !cfg.TrackStats {
			continue
		}
		cfg := cfg
		g.Go(func() error {
			return s.tickClan(gctx, cfg, now)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("scheduler tick failed")
	}

	if err := s.variables.SetLastCheck(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to record last check")
	}
}

func (s *Scheduler) tickClan(ctx context.Context, cfg *domain.PrimaryClanConfig, now time.Time) error {
	race, err := s.lifecycle.GetOrCreateRace(ctx, cfg.ClanID, now)
	if err != nil {
		return err
	}

	s.closeElapsedDays(ctx, race, now)

	// Re-read: closing days changes the boundaries the aggregator maps
	// battles against.
	race, err = s.races.GetByID(ctx, race.ID)
	if err != nil {
		return err
	}

	if err := s.aggregator.SynthesizeMissing(ctx, race.ID); err != nil {
		return err
	}
	if err := s.aggregator.AggregateRace(ctx, race.ID, now); err != nil {
		return err
	}

	switch s.lifecycle.State(race, now) {
	case domain.RaceBattleDay:
		if err := s.checkEarlyCompletion(ctx, race, now); err != nil {
			return err
		}
	case domain.RaceCompleted:
		if cfg.AssignStrikes {
			if _, err := s.strikes.Evaluate(ctx, race.ID, now); err != nil &&
				!errors.Is(err, service.ErrRaceNotCompleted) {
				return err
			}
		}
	}
	return nil
}

// checkEarlyCompletion ends the race ahead of the calendar once the clan's
// observed standing reaches the medal goal.
func (s *Scheduler) checkEarlyCompletion(ctx context.Context, race *domain.RiverRace, now time.Time) error {
	clan, err := s.clans.GetByID(ctx, race.ClanID)
	if err != nil {
		return err
	}
	snapshots, err := s.raceClans.ListByRace(ctx, race.ID)
	if err != nil {
		return err
	}
	for _, snap := range snapshots {
		if snap.Tag != clan.Tag {
			continue
		}
		if snap.Completed || snap.Medals >= constants.SaturdayFameGoal {
			return s.lifecycle.CompleteSaturday(ctx, race.ID, now)
		}
		return nil
	}
	return nil
}

// closeElapsedDays closes every day whose calendar end has passed and is
// not yet recorded. Boundaries land at the calendar estimate; an explicit
// close observed earlier always wins.
func (s *Scheduler) closeElapsedDays(ctx context.Context, race *domain.RiverRace, now time.Time) {
	if race.CompletedSaturday {
		return
	}
	for day := 1; day <= constants.RaceDays; day++ {
		if race.DayBoundaries[day-1] != nil {
			continue
		}
		estimate := race.StartTime.Add(time.Duration(day) * constants.DayDuration)
		if now.Before(estimate) {
			return
		}
		if err := s.lifecycle.CloseDay(ctx, race.ID, day, estimate); err != nil {
			s.logger.Error().Err(err).
				Int64("race_id", race.ID).
				Int("day", day).
				Msg("failed to close elapsed day")
			return
		}
		boundary := estimate
		race.DayBoundaries[day-1] = &boundary
	}
}
