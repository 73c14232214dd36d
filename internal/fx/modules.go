package fx

import (
	"riverrace-tracker/internal/config"
	"riverrace-tracker/internal/database"
	"riverrace-tracker/internal/events"
	"riverrace-tracker/internal/logger"
	"riverrace-tracker/internal/normalizer"
	"riverrace-tracker/internal/repository"
	"riverrace-tracker/internal/scheduler"
	"riverrace-tracker/internal/server"
	"riverrace-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvidePredictor(
	races repository.RiverRaceRepository,
	raceClans repository.RaceClanRepository,
	lifecycle *service.LifecycleService,
	emitter events.Emitter,
	cfg *config.Config,
	log zerolog.Logger,
) *service.PredictorService {
	return service.NewPredictorService(races, raceClans, lifecycle, emitter, cfg.PredictionWindow, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewVariablesRepository),
	fx.Provide(repository.NewSeasonRepository),
	fx.Provide(repository.NewClanRepository),
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewAffiliationRepository),
	fx.Provide(repository.NewPrimaryClanRepository),
	fx.Provide(repository.NewRiverRaceRepository),
	fx.Provide(repository.NewRaceClanRepository),
	fx.Provide(repository.NewUserDataRepository),
	fx.Provide(repository.NewBattleRepository),
	// events
	fx.Provide(events.NewLogEmitter),
	// svc
	fx.Provide(normalizer.New),
	fx.Provide(service.NewLifecycleService),
	fx.Provide(service.NewAggregatorService),
	fx.Provide(service.NewStrikeService),
	fx.Provide(ProvidePredictor),
	fx.Provide(service.NewReminderService),
	fx.Provide(service.NewIngestService),
	// scheduler + server
	fx.Provide(scheduler.New),
	fx.Provide(server.NewTrackerServer),
)
