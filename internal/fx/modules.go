package fx

import (
	"faceit-companion/internal/config"
	"faceit-companion/internal/database"
	"faceit-companion/internal/discord"
	"faceit-companion/internal/faceit"
	"faceit-companion/internal/logger"
	"faceit-companion/internal/repository"
	"faceit-companion/internal/server"
	"faceit-companion/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideFaceitClient(cfg *config.Config, users *repository.TrackedUserRepository, log zerolog.Logger) *faceit.Client {
	return faceit.NewClient(cfg, users, log)
}

func ProvideLifecycle(
	store *repository.MatchRepository,
	users *repository.TrackedUserRepository,
	history *repository.EloHistoryRepository,
	client *faceit.Client,
	disc *discord.Service,
	log zerolog.Logger,
) *service.LifecycleService {
	return service.NewLifecycleService(store, client, disc, disc, users, history, log)
}

func ProvidePoller(lc fx.Lifecycle, cfg *config.Config, store *repository.MatchRepository, lifecycle *service.LifecycleService, log zerolog.Logger) *service.Poller {
	poller := service.NewPoller(store, lifecycle, cfg.PollInterval, log)
	lc.Append(fx.StartStopHook(poller.Start, poller.Stop))
	return poller
}

func ProvideWebhookServer(lifecycle *service.LifecycleService, log zerolog.Logger) *server.WebhookServer {
	return server.NewWebhookServer(lifecycle, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewTrackedUserRepository),
	fx.Provide(repository.NewEloHistoryRepository),
	// external collaborators
	fx.Provide(ProvideFaceitClient),
	fx.Provide(discord.NewSession),
	fx.Provide(discord.NewService),
	// core
	fx.Provide(ProvideLifecycle),
	fx.Provide(ProvidePoller),
	// server
	fx.Provide(ProvideWebhookServer),
)
