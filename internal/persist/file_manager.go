package persist

import (
	"os"
	"rsd/internal/feed"
	"rsd/internal/models"
	"rsd/internal/notify"
	"rsd/internal/persist/interfaces"
	"rsd/internal/providers"
	"rsd/internal/syncer"

	json "github.com/goccy/go-json"
)

// FileManager persists the durable slice of core state (notifications, feed
// cursors, pending mutations) as one compressed snapshot file. Writes go
// through a tmp file and rename, so a crash mid-write leaves the previous
// snapshot intact.
type FileManager struct {
	dispatcher *notify.Dispatcher
	fanout     *feed.Fanout
	syncer     *syncer.Manager
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, dispatcher *notify.Dispatcher, fanout *feed.Fanout, sm *syncer.Manager, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		dispatcher: dispatcher,
		fanout:     fanout,
		syncer:     sm,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	storage := models.Storage{
		Version:       models.StorageVersion,
		Notifications: f.dispatcher.Snapshot(),
		FeedCursors:   f.fanout.Cursors(),
		Pending:       f.syncer.Pending(),
	}

	jsonData, err := json.Marshal(storage)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var storage models.Storage
	if err := json.Unmarshal(decompressedData, &storage); err != nil {
		f.logger.Warnf(providers.TypeApp, "Inconsistent snapshot found, starting empty: %s", err)
		return nil
	}
	if storage.Version != models.StorageVersion {
		f.logger.Warnf(providers.TypeApp, "Unknown snapshot version %d, starting empty", storage.Version)
		return nil
	}

	for userID, list := range storage.Notifications {
		f.dispatcher.Put(userID, list)
	}
	f.fanout.RestoreCursors(storage.FeedCursors)
	f.syncer.RestorePending(storage.Pending)

	return nil
}

func (f *FileManager) Close() {
	f.compressor.Close()
}
