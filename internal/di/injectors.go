//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"rsd/internal"
	"rsd/internal/channel"
	"rsd/internal/controllers"
	"rsd/internal/engagement"
	"rsd/internal/feed"
	"rsd/internal/jobs"
	"rsd/internal/notify"
	"rsd/internal/persist"
	"rsd/internal/presence"
	"rsd/internal/providers"
	"rsd/internal/services"
	"rsd/internal/structures"
	"rsd/internal/syncer"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		persist.NewZstdCompressor,
		channel.NewBroker,
		presence.NewTracker,
		engagement.NewAggregator,
		feed.NewFanout,
		provideNotifyStore,
		provideNotifyArchive,
		providePushTransport,
		notify.NewDispatcher,
		provideVersionedStore,
		syncer.NewManager,
		persist.NewFileManager,
		jobs.NewScheduler,
		services.NewIngestService,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
