package di

import (
	"rsd/internal/notify"
	"rsd/internal/persist/interfaces"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"rsd/internal/syncer"
)

func provideNotifyStore(conf *structures.Config) *notify.Store {
	return notify.NewStore(conf.Notify.MaxPerUser)
}

func provideNotifyArchive(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) *notify.Archive {
	return notify.NewArchive(conf.Notify.ArchiveDir, conf.Notify.ArchiveTTL, compressor, logger)
}

func providePushTransport(logger providers.Logger) notify.PushTransport {
	return &notify.LogPushTransport{Logger: logger}
}

func provideVersionedStore() syncer.VersionedStore {
	return syncer.NewMemStore()
}
