package jobs

import (
	"rsd/internal/jobs/interfaces"
	"rsd/internal/notify"
	"rsd/internal/persist"
	"rsd/internal/presence"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"rsd/internal/syncer"
	"sync"
	"time"

	"github.com/roylee0704/gron"
)

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	tracker     *presence.Tracker
	syncer      *syncer.Manager
	archive     *notify.Archive
	fileManager *persist.FileManager
	metrics     providers.MetricsProviderInterface
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		err := s.save()
		if err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
			return
		}
		if err = s.archive.Flush(); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while flushing notification archive: %s", err)
			return
		}
		s.logger.Infof(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.FilePath)
	})

	s.cron.AddFunc(gron.Every(s.config.Presence.SweepInterval), func() {
		s.tracker.Sweep()
	})

	s.cron.AddFunc(gron.Every(s.config.Sync.SyncInterval), func() {
		s.syncer.SyncNow()
	})

	s.cron.Start()
}

// save writes the snapshot and reports how long the write took.
func (s *Scheduler) save() error {
	start := time.Now()
	if err := s.fileManager.SaveToFile(s.config.Persistence.FilePath); err != nil {
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	if err := s.fileManager.LoadFromFile(s.config.Persistence.FilePath); err != nil {
		return err
	}
	return s.archive.RestoreIndex()
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting state to file...")
	if err := s.save(); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	if err := s.archive.Flush(); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while flushing notification archive: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, tracker *presence.Tracker, sm *syncer.Manager, archive *notify.Archive, fileManager *persist.FileManager, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		tracker:     tracker,
		syncer:      sm,
		archive:     archive,
		fileManager: fileManager,
		metrics:     metrics,
	}
}
