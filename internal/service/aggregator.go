package service

import (
	"context"
	"errors"
	"time"

	"riverrace-tracker/internal/constants"
	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// AggregatorService turns the append-only battle log into per-user,
// per-day participation slices. Aggregation is a full recompute from the
// log, so re-running it after a crash or a re-fetched battle log always
// converges on the same result.
type AggregatorService struct {
	races        repository.RiverRaceRepository
	clans        repository.ClanRepository
	affiliations repository.AffiliationRepository
	userData     repository.UserDataRepository
	battles      repository.BattleRepository
	lifecycle    *LifecycleService
	logger       zerolog.Logger
}

func NewAggregatorService(
	races repository.RiverRaceRepository,
	clans repository.ClanRepository,
	affiliations repository.AffiliationRepository,
	userData repository.UserDataRepository,
	battles repository.BattleRepository,
	lifecycle *LifecycleService,
	logger zerolog.Logger,
) *AggregatorService {
	return &AggregatorService{
		races:        races,
		clans:        clans,
		affiliations: affiliations,
		userData:     userData,
		battles:      battles,
		lifecycle:    lifecycle,
		logger:       logger,
	}
}

// AggregateAffiliation recomputes one user's aggregate for one race from
// their full battle log. Medals and the strike flag are preserved; every
// derived counter and day slice is overwritten.
func (s *AggregatorService) AggregateAffiliation(ctx context.Context, affiliationID, raceID int64, now time.Time) error {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return err
	}
	clan, err := s.clans.GetByID(ctx, race.ClanID)
	if err != nil {
		return err
	}

	if err := s.userData.EnsureRow(ctx, affiliationID, raceID); err != nil {
		return err
	}
	data, err := s.userData.Get(ctx, affiliationID, raceID)
	if err != nil {
		return err
	}

	set, err := s.battles.GetBattleSet(ctx, affiliationID, raceID)
	if err != nil {
		return err
	}

	s.recompute(data, set, race, clan.Tag)
	data.LastCheck = now
	return s.userData.Save(ctx, data)
}

// AggregateRace recomputes every active member of the race's clan.
func (s *AggregatorService) AggregateRace(ctx context.Context, raceID int64, now time.Time) error {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return err
	}

	affiliations, err := s.affiliations.ListActiveByClan(ctx, race.ClanID)
	if err != nil {
		return err
	}
	for _, aff := range affiliations {
		if err := s.AggregateAffiliation(ctx, aff.ID, raceID, now); err != nil {
			return err
		}
	}

	s.logger.Debug().
		Int64("race_id", raceID).
		Int("members", len(affiliations)).
		Msg("race aggregated")
	return s.races.SetLastCheck(ctx, raceID, now)
}

// SynthesizeMissing creates all-zero aggregate rows for active members who
// never appeared in any battle log for the race, so fully inactive users
// still show up with zero participation.
func (s *AggregatorService) SynthesizeMissing(ctx context.Context, raceID int64) error {
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		return err
	}

	affiliations, err := s.affiliations.ListActiveByClan(ctx, race.ClanID)
	if err != nil {
		return err
	}
	for _, aff := range affiliations {
		if err := s.userData.EnsureRow(ctx, aff.ID, raceID); err != nil {
			return err
		}
	}
	return nil
}

// RecordMedals stores the medal count reported by the snapshot layer.
// Medals are observed, not derived from battles, so they have their own
// column write and never pass through the recompute's Save.
func (s *AggregatorService) RecordMedals(ctx context.Context, affiliationID, raceID int64, medals int) error {
	if err := s.userData.EnsureRow(ctx, affiliationID, raceID); err != nil {
		return err
	}
	return s.userData.SetMedals(ctx, affiliationID, raceID, medals)
}

func (s *AggregatorService) recompute(data *domain.RiverRaceUserData, set domain.BattleSet, race *domain.RiverRace, clanTag string) {
	data.RegularWins, data.RegularLosses = 0, 0
	data.SpecialWins, data.SpecialLosses = 0, 0
	data.DuelWins, data.DuelLosses = 0, 0
	data.SeriesWins, data.SeriesLosses = 0, 0
	data.BoatWins, data.BoatLosses = 0, 0
	data.Days = [constants.RaceDays]domain.DaySlice{}

	for _, battle := range set.PvpBattles {
		slice, ok := s.daySlice(data, race, battle.Time)
		if !ok {
			continue
		}
		slice.Active = true
		if battle.OwnClanTag != clanTag {
			slice.OutsideBattles++
			continue
		}
		slice.DecksUsed++
		if battle.GameMode == constants.RegularBattleMode {
			if battle.Won {
				data.RegularWins++
			} else {
				data.RegularLosses++
			}
		} else {
			if battle.Won {
				data.SpecialWins++
			} else {
				data.SpecialLosses++
			}
		}
	}

	for _, duel := range set.Duels {
		slice, ok := s.daySlice(data, race, duel.Time)
		if !ok {
			continue
		}
		slice.Active = true
		rounds := duel.RoundWins + duel.RoundLosses
		if duel.OwnClanTag != clanTag {
			slice.OutsideBattles += rounds
			continue
		}
		slice.DecksUsed += rounds
		data.DuelWins += duel.RoundWins
		data.DuelLosses += duel.RoundLosses
		if duel.Won {
			data.SeriesWins++
		} else {
			data.SeriesLosses++
		}
	}

	// No boats in a colosseum week.
	if !race.ColosseumWeek {
		for _, battle := range set.BoatBattles {
			slice, ok := s.daySlice(data, race, battle.Time)
			if !ok {
				continue
			}
			slice.Active = true
			if battle.OwnClanTag != clanTag {
				slice.OutsideBattles++
				continue
			}
			slice.BoatDecksUsed++
			if battle.Won {
				data.BoatWins++
			} else {
				data.BoatLosses++
			}
		}
	}

	for i := range data.Days {
		data.Days[i].Locked = data.Days[i].DecksUsed >= constants.DecksPerDay
	}
}

// daySlice resolves the day slice a battle belongs to. A battle whose
// timestamp maps to no known day stays in the log untouched; a later
// recompute picks it up once boundaries catch up.
func (s *AggregatorService) daySlice(data *domain.RiverRaceUserData, race *domain.RiverRace, ts time.Time) (*domain.DaySlice, bool) {
	day, err := s.lifecycle.DayIndex(race, ts)
	if err != nil {
		if errors.Is(err, ErrUnknownLifecycleDay) {
			s.logger.Warn().
				Int64("race_id", race.ID).
				Int64("affiliation_id", data.ClanAffiliationID).
				Time("battle_time", ts).
				Msg("battle outside race days, deferred")
		}
		return nil, false
	}
	return &data.Days[day-1], true
}
