package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"riverrace-tracker/internal/domain"
	"riverrace-tracker/internal/normalizer"
	"riverrace-tracker/internal/repository"
	"riverrace-tracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TrackerServer exposes the race lifecycle, ingestion, strike, prediction,
// and reminder operations over HTTP.
type TrackerServer struct {
	races        repository.RiverRaceRepository
	clans        repository.ClanRepository
	primaryClans repository.PrimaryClanRepository
	variables    repository.VariablesRepository
	raceClans    repository.RaceClanRepository
	lifecycle    *service.LifecycleService
	ingest       *service.IngestService
	aggregator   *service.AggregatorService
	strikes      *service.StrikeService
	predictor    *service.PredictorService
	reminders    *service.ReminderService
	logger       zerolog.Logger
}

func NewTrackerServer(
	races repository.RiverRaceRepository,
	clans repository.ClanRepository,
	primaryClans repository.PrimaryClanRepository,
	variables repository.VariablesRepository,
	raceClans repository.RaceClanRepository,
	lifecycle *service.LifecycleService,
	ingest *service.IngestService,
	aggregator *service.AggregatorService,
	strikes *service.StrikeService,
	predictor *service.PredictorService,
	reminders *service.ReminderService,
	logger zerolog.Logger,
) *TrackerServer {
	return &TrackerServer{
		races:        races,
		clans:        clans,
		primaryClans: primaryClans,
		variables:    variables,
		raceClans:    raceClans,
		lifecycle:    lifecycle,
		ingest:       ingest,
		aggregator:   aggregator,
		strikes:      strikes,
		predictor:    predictor,
		reminders:    reminders,
		logger:       logger,
	}
}

func (s *TrackerServer) Routes(r chi.Router) {
	r.Post("/api/setup", s.handleSetup)
	r.Route("/api/races/{raceID}", func(r chi.Router) {
		r.Get("/", s.handleGetRace)
		r.Post("/ingest", s.handleIngest)
		r.Post("/clans", s.handleUpsertClans)
		r.Post("/medals", s.handleRecordMedals)
		r.Post("/days/{day}/close", s.handleCloseDay)
		r.Post("/complete", s.handleCompleteSaturday)
		r.Post("/strikes/evaluate", s.handleEvaluateStrikes)
		r.Get("/prediction", s.handlePrediction)
		r.Get("/reminders", s.handleReminders)
	})
}

type setupRequest struct {
	ClanTag         string `json:"clan_tag"`
	ClanName        string `json:"clan_name"`
	TrackStats      bool   `json:"track_stats"`
	SendReminders   bool   `json:"send_reminders"`
	AssignStrikes   bool   `json:"assign_strikes"`
	StrikeType      string `json:"strike_type"`
	StrikeThreshold int    `json:"strike_threshold"`
}

// handleSetup registers the primary clan and its policy, then marks setup
// complete. The scheduler stays idle until this has happened.
func (s *TrackerServer) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClanTag == "" {
		s.respondError(w, http.StatusBadRequest, "clan_tag is required")
		return
	}
	strikeType := domain.StrikeType(req.StrikeType)
	if strikeType != domain.StrikeTypeDecks && strikeType != domain.StrikeTypeMedals {
		s.respondError(w, http.StatusBadRequest, "strike_type must be decks or medals")
		return
	}

	clan, err := s.clans.Upsert(r.Context(), req.ClanTag, req.ClanName)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	err = s.primaryClans.Upsert(r.Context(), &domain.PrimaryClanConfig{
		ClanID:          clan.ID,
		TrackStats:      req.TrackStats,
		SendReminders:   req.SendReminders,
		AssignStrikes:   req.AssignStrikes,
		StrikeType:      strikeType,
		StrikeThreshold: req.StrikeThreshold,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if err := s.variables.SetInitialized(r.Context()); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"clan_id": clan.ID, "initialized": true})
}

type raceResponse struct {
	ID                int64        `json:"id"`
	ClanID            int64        `json:"clan_id"`
	SeasonID          int64        `json:"season_id"`
	Week              int          `json:"week"`
	StartTime         time.Time    `json:"start_time"`
	State             string       `json:"state"`
	BattleTime        bool         `json:"battle_time"`
	ColosseumWeek     bool         `json:"colosseum_week"`
	CompletedSaturday bool         `json:"completed_saturday"`
	DayBoundaries     []*time.Time `json:"day_boundaries"`
}

func (s *TrackerServer) handleGetRace(w http.ResponseWriter, r *http.Request) {
	race, ok := s.loadRace(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, raceResponse{
		ID:                race.ID,
		ClanID:            race.ClanID,
		SeasonID:          race.SeasonID,
		Week:              race.Week,
		StartTime:         race.StartTime,
		State:             s.lifecycle.State(race, time.Now().UTC()).String(),
		BattleTime:        race.BattleTime,
		ColosseumWeek:     race.ColosseumWeek,
		CompletedSaturday: race.CompletedSaturday,
		DayBoundaries:     race.DayBoundaries[:],
	})
}

type ingestRequest struct {
	AffiliationID int64                  `json:"affiliation_id"`
	Battles       []normalizer.RawBattle `json:"battles"`
}

func (s *TrackerServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AffiliationID == 0 {
		s.respondError(w, http.StatusBadRequest, "affiliation_id is required")
		return
	}

	result, err := s.ingest.Ingest(r.Context(), req.AffiliationID, raceID, req.Battles, time.Now().UTC())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type clanSnapshot struct {
	Tag               string `json:"tag"`
	Name              string `json:"name"`
	Medals            int    `json:"medals"`
	TotalSeasonMedals int    `json:"total_season_medals"`
	TotalDecksUsed    int    `json:"total_decks_used"`
	DecksUsedToday    int    `json:"decks_used_today"`
	BattleDays        int    `json:"battle_days"`
	Completed         bool   `json:"completed"`
}

// handleUpsertClans stores the per-race clan standings the ingestion layer
// observed. The predictor's history is built from these snapshots.
func (s *TrackerServer) handleUpsertClans(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}
	if _, err := s.races.GetByID(r.Context(), raceID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	var req struct {
		Clans []clanSnapshot `json:"clans"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshots := make([]domain.RiverRaceClan, 0, len(req.Clans))
	for _, snap := range req.Clans {
		if snap.Tag == "" {
			s.respondError(w, http.StatusBadRequest, "clan tag is required")
			return
		}
		snapshots = append(snapshots, domain.RiverRaceClan{
			RiverRaceID:       raceID,
			Tag:               snap.Tag,
			Name:              snap.Name,
			Medals:            snap.Medals,
			TotalSeasonMedals: snap.TotalSeasonMedals,
			TotalDecksUsed:    snap.TotalDecksUsed,
			DecksUsedToday:    snap.DecksUsedToday,
			BattleDays:        snap.BattleDays,
			Completed:         snap.Completed,
		})
	}

	if err := s.raceClans.UpsertBatch(r.Context(), snapshots); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "clans": len(snapshots)})
}

type medalsRequest struct {
	Medals []struct {
		AffiliationID int64 `json:"affiliation_id"`
		Medals        int   `json:"medals"`
	} `json:"medals"`
}

// handleRecordMedals stores observed per-member medal counts. Medals come
// from the participant snapshot, not from battles, so they bypass the
// battle-log recompute.
func (s *TrackerServer) handleRecordMedals(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}

	if _, err := s.races.GetByID(r.Context(), raceID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	var req medalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, entry := range req.Medals {
		if err := s.aggregator.RecordMedals(r.Context(), entry.AffiliationID, raceID, entry.Medals); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "updated": len(req.Medals)})
}

type closeDayRequest struct {
	Boundary time.Time `json:"boundary"`
}

func (s *TrackerServer) handleCloseDay(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid day")
		return
	}

	var req closeDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Boundary.IsZero() {
		req.Boundary = time.Now().UTC()
	}

	if err := s.lifecycle.CloseDay(r.Context(), raceID, day, req.Boundary); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "day": day, "closed": true})
}

func (s *TrackerServer) handleCompleteSaturday(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}

	if err := s.lifecycle.CompleteSaturday(r.Context(), raceID, time.Now().UTC()); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "completed": true})
}

func (s *TrackerServer) handleEvaluateStrikes(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}

	issued, err := s.strikes.Evaluate(r.Context(), raceID, time.Now().UTC())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "issued": issued})
}

func (s *TrackerServer) handlePrediction(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}

	window, _ := strconv.Atoi(r.URL.Query().Get("window"))

	prediction, err := s.predictor.Predict(r.Context(), raceID, window, time.Now().UTC())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, prediction)
}

func (s *TrackerServer) handleReminders(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return
	}

	facts, err := s.reminders.DeckUsage(r.Context(), raceID, time.Now().UTC())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "facts": facts})
}

func (s *TrackerServer) loadRace(w http.ResponseWriter, r *http.Request) (*domain.RiverRace, bool) {
	raceID, ok := s.pathID(w, r, "raceID")
	if !ok {
		return nil, false
	}
	race, err := s.races.GetByID(r.Context(), raceID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return nil, false
	}
	return race, true
}

func (s *TrackerServer) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *TrackerServer) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrRaceNotFound),
		errors.Is(err, repository.ErrAffiliationNotFound),
		errors.Is(err, repository.ErrUserDataNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvariantViolation),
		errors.Is(err, service.ErrRaceNotCompleted):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownLifecycleDay):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *TrackerServer) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *TrackerServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
