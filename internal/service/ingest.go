package service

import (
	"context"
	"time"

	"riverrace-tracker/internal/normalizer"
	"riverrace-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	PvpBattles  int `json:"pvp_battles"`
	Duels       int `json:"duels"`
	BoatBattles int `json:"boat_battles"`
	Dropped     int `json:"dropped"`
}

// IngestService runs one batch through the pipeline: normalize, append to
// the battle log, recompute the member's aggregate. The log is append-only
// and deduplicating, so replaying a batch changes nothing.
type IngestService struct {
	normalizer   *normalizer.Normalizer
	races        repository.RiverRaceRepository
	affiliations repository.AffiliationRepository
	battles      repository.BattleRepository
	aggregator   *AggregatorService
	logger       zerolog.Logger
}

func NewIngestService(
	n *normalizer.Normalizer,
	races repository.RiverRaceRepository,
	affiliations repository.AffiliationRepository,
	battles repository.BattleRepository,
	aggregator *AggregatorService,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		normalizer:   n,
		races:        races,
		affiliations: affiliations,
		battles:      battles,
		aggregator:   aggregator,
		logger:       logger,
	}
}

// Ingest normalizes and stores a raw battle-log batch for one member in
// one race, then recomputes their aggregate. Malformed records are dropped
// and counted, never fatal.
func (s *IngestService) Ingest(ctx context.Context, affiliationID, raceID int64, raw []normalizer.RawBattle, now time.Time) (IngestResult, error) {
	var result IngestResult

	if _, err := s.races.GetByID(ctx, raceID); err != nil {
		return result, err
	}
	if _, err := s.affiliations.GetByID(ctx, affiliationID); err != nil {
		return result, err
	}

	set, dropped := s.normalizer.Normalize(affiliationID, raceID, raw)
	result.PvpBattles = len(set.PvpBattles)
	result.Duels = len(set.Duels)
	result.BoatBattles = len(set.BoatBattles)
	result.Dropped = len(dropped)

	if err := s.battles.AppendBattleSet(ctx, set); err != nil {
		return result, err
	}
	if err := s.aggregator.AggregateAffiliation(ctx, affiliationID, raceID, now); err != nil {
		return result, err
	}

	s.logger.Info().
		Int64("affiliation_id", affiliationID).
		Int64("race_id", raceID).
		Int("pvp", result.PvpBattles).
		Int("duels", result.Duels).
		Int("boats", result.BoatBattles).
		Int("dropped", result.Dropped).
		Msg("battle batch ingested")
	return result, nil
}
