package service

import (
	"context"
	"fmt"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/events"
	"riverrace-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// StrikeService evaluates a completed race against the clan's
// participation rule and issues at most one strike per (user, race).
// Issuance is recorded on the aggregate row, so a crash between marking
// and notification never produces a second strike on retry.
type StrikeService struct {
	races        repository.RiverRaceRepository
	userData     repository.UserDataRepository
	affiliations repository.AffiliationRepository
	users        repository.UserRepository
	primaryClans repository.PrimaryClanRepository
	lifecycle    *LifecycleService
	emitter      events.Emitter
	logger       zerolog.Logger
}

func NewStrikeService(
	races repository.RiverRaceRepository,
	userData repository.UserDataRepository,
	affiliations repository.AffiliationRepository,
	users repository.UserRepository,
	primaryClans repository.PrimaryClanRepository,
	lifecycle *LifecycleService,
	emitter events.Emitter,
	logger zerolog.Logger,
) *StrikeService {
	return &StrikeService{
		races:        races,
		userData:     userData,
		affiliations: affiliations,
		users:        users,
		primaryClans: primaryClans,
		lifecycle:    lifecycle,
		emitter:      emitter,
		logger:       logger,
	}
}

// Evaluate checks every member aggregate of a completed race against the
// clan's rule and returns the strikes issued by this call. Races that are
// still running return ErrRaceNotCompleted; clans without a strike policy
// evaluate to nothing.
func (s *StrikeService) Evaluate(ctx context.Context, raceID int64, now time.Time) ([]events.StrikeAssigned, error) {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if s.lifecycle.State(race, now) != domain.RaceCompleted {
		return nil, fmt.Errorf("%w: race %d", ErrRaceNotCompleted, raceID)
	}

	cfg, err := s.primaryClans.Get(ctx, race.ClanID)
	if err == repository.ErrConfigNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !cfg.AssignStrikes {
		return nil, nil
	}

	rows, err := s.userData.ListByRace(ctx, raceID)
	if err != nil {
		return nil, err
	}

	var issued []events.StrikeAssigned
	for _, row := range rows {
		if row.StrikeIssued {
			continue
		}

		aff, err := s.affiliations.GetByID(ctx, row.ClanAffiliationID)
		if err != nil {
			return issued, err
		}
		if aff.ClanID != race.ClanID {
			continue
		}

		pass, reason := s.check(cfg, race, aff, row)
		if pass {
			continue
		}

		// The flip is atomic; losing the race to a concurrent evaluation
		// means the strike already exists.
		marked, err := s.userData.TryMarkStrikeIssued(ctx, row.ID)
		if err != nil {
			return issued, err
		}
		if !marked {
			continue
		}

		total, err := s.users.AddStrikes(ctx, aff.UserID, 1)
		if err != nil {
			return issued, err
		}

		id, err := events.NewEventID()
		if err != nil {
			return issued, err
		}
		event := events.StrikeAssigned{
			ID:          id,
			UserID:      aff.UserID,
			ClanID:      race.ClanID,
			RiverRaceID: raceID,
			Reason:      reason,
			IssuedAt:    now,
		}
		s.emitter.EmitStrike(ctx, event)
		issued = append(issued, event)

		s.logger.Info().
			Int64("user_id", aff.UserID).
			Int64("race_id", raceID).
			Int("total_strikes", total).
			Str("reason", reason).
			Msg("strike issued")
	}

	return issued, nil
}

// check applies the clan's rule to one member. Meeting the threshold
// exactly satisfies it. For deck rules the threshold is prorated to the
// battle days where the user had any opportunity to play: training days and
// days before tracked_since never count against them.
func (s *StrikeService) check(cfg *domain.PrimaryClanConfig, race *domain.RiverRace, aff *domain.ClanAffiliation, row *domain.RiverRaceUserData) (bool, string) {
	if cfg.StrikeType == domain.StrikeTypeMedals {
		if row.Medals >= cfg.StrikeThreshold {
			return true, ""
		}
		return false, fmt.Sprintf("%d medals, needed %d", row.Medals, cfg.StrikeThreshold)
	}

	totalBattleDays := constants.RaceDays - constants.TrainingDays
	eligible := 0
	decks := 0
	for day := constants.FirstBattleDay; day <= constants.RaceDays; day++ {
		if !aff.TrackedSince.Before(dayEnd(race, day)) {
			continue
		}
		eligible++
		decks += row.DecksUsedOwn(day)
	}
	if eligible == 0 {
		return true, ""
	}

	required := cfg.StrikeThreshold * eligible / totalBattleDays
	if decks >= required {
		return true, ""
	}
	return false, fmt.Sprintf("%d decks over %d battle days, needed %d", decks, eligible, required)
}
