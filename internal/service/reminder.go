package service

import (
	"context"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/events"
	"riverrace-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// ReminderService computes per-user deck usage facts for the current
// battle day. It produces facts only; sending reminders is the
// notification layer's job.
type ReminderService struct {
	races        repository.RiverRaceRepository
	userData     repository.UserDataRepository
	affiliations repository.AffiliationRepository
	users        repository.UserRepository
	primaryClans repository.PrimaryClanRepository
	lifecycle    *LifecycleService
	logger       zerolog.Logger
}

func NewReminderService(
	races repository.RiverRaceRepository,
	userData repository.UserDataRepository,
	affiliations repository.AffiliationRepository,
	users repository.UserRepository,
	primaryClans repository.PrimaryClanRepository,
	lifecycle *LifecycleService,
	logger zerolog.Logger,
) *ReminderService {
	return &ReminderService{
		races:        races,
		userData:     userData,
		affiliations: affiliations,
		users:        users,
		primaryClans: primaryClans,
		lifecycle:    lifecycle,
		logger:       logger,
	}
}

// DeckUsage returns one fact per active member of the race's clan for the
// day containing now. Outside battle days, or for clans with reminders
// disabled, it returns nothing.
func (s *ReminderService) DeckUsage(ctx context.Context, raceID int64, now time.Time) ([]events.ReminderFact, error) {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.primaryClans.Get(ctx, race.ClanID)
	if err == repository.ErrConfigNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !cfg.SendReminders {
		return nil, nil
	}

	day, err := s.lifecycle.DayIndex(race, now)
	if err != nil || day < constants.FirstBattleDay {
		return nil, nil
	}

	rows, err := s.userData.ListByRace(ctx, raceID)
	if err != nil {
		return nil, err
	}

	var facts []events.ReminderFact
	for _, row := range rows {
		aff, err := s.affiliations.GetByID(ctx, row.ClanAffiliationID)
		if err != nil {
			return nil, err
		}
		if aff.ClanID != race.ClanID || aff.Role == nil {
			continue
		}
		user, err := s.users.GetByID(ctx, aff.UserID)
		if err != nil {
			return nil, err
		}

		slice := row.Days[day-1]
		remaining := constants.DecksPerDay - slice.DecksUsed
		if remaining < 0 {
			remaining = 0
		}
		facts = append(facts, events.ReminderFact{
			UserID:         user.ID,
			UserTag:        user.Tag,
			ReminderTime:   string(user.ReminderTime),
			DecksRemaining: remaining,
			Locked:         slice.Locked,
		})
	}

	s.logger.Debug().
		Int64("race_id", raceID).
		Int("day", day).
		Int("facts", len(facts)).
		Msg("deck usage facts computed")
	return facts, nil
}
