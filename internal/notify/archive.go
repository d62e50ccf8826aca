package notify

import (
	"os"
	"path/filepath"
	"rsd/internal/models"
	"rsd/internal/persist/interfaces"
	"rsd/internal/providers"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// ArchivedEntry is a single notification evicted from the in-memory store.
type ArchivedEntry struct {
	Record     models.NotificationRecord `json:"record"`
	ArchivedAt time.Time                 `json:"archived_at"`
}

// ArchiveFile is the on-disk format for one user's archive.
type ArchiveFile struct {
	Entries map[string]*ArchivedEntry `json:"entries"`
}

// Archive persists evicted notifications to per-user compressed files.
// Evict and Restore touch memory only; Flush is the single method doing
// disk writes, riding the persistence tick.
type Archive struct {
	mu         sync.RWMutex
	dir        string
	ttl        time.Duration
	index      map[string]map[string]struct{}       // user → archived ids
	pending    map[string]map[string]*ArchivedEntry // user → not yet flushed
	restored   map[string]map[string]struct{}       // user → ids to lazy-delete
	loaded     map[string]*ArchiveFile              // user → cached file
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewArchive(dir string, ttl time.Duration, compressor interfaces.CompressorInterface, logger providers.Logger) *Archive {
	return &Archive{
		dir:        dir,
		ttl:        ttl,
		index:      make(map[string]map[string]struct{}),
		pending:    make(map[string]map[string]*ArchivedEntry),
		restored:   make(map[string]map[string]struct{}),
		loaded:     make(map[string]*ArchiveFile),
		compressor: compressor,
		logger:     logger,
	}
}

// Has checks whether a notification id sits in the user's archive.
func (ar *Archive) Has(userID, id string) bool {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	if ids, ok := ar.index[userID]; ok {
		_, exists := ids[id]
		return exists
	}
	return false
}

// Evict buffers the record for the next Flush. No disk I/O here.
func (ar *Archive) Evict(rec models.NotificationRecord) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	entry := &ArchivedEntry{Record: rec, ArchivedAt: time.Now()}

	if ar.pending[rec.UserID] == nil {
		ar.pending[rec.UserID] = make(map[string]*ArchivedEntry)
	}
	ar.pending[rec.UserID][rec.ID] = entry

	if ar.index[rec.UserID] == nil {
		ar.index[rec.UserID] = make(map[string]struct{})
	}
	ar.index[rec.UserID][rec.ID] = struct{}{}
}

// Restore pulls a notification back out of the archive (pending buffer or
// disk). The on-disk copy is removed lazily on the next Flush.
func (ar *Archive) Restore(userID, id string) (*models.NotificationRecord, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if entries, ok := ar.pending[userID]; ok {
		if entry, ok := entries[id]; ok {
			rec := entry.Record
			delete(entries, id)
			if len(entries) == 0 {
				delete(ar.pending, userID)
			}
			delete(ar.index[userID], id)
			return &rec, nil
		}
	}

	file := ar.getOrLoadFile(userID)
	if file == nil {
		delete(ar.index[userID], id)
		return nil, models.ErrNotFound
	}

	entry, ok := file.Entries[id]
	if !ok {
		delete(ar.index[userID], id)
		return nil, models.ErrNotFound
	}

	if ar.restored[userID] == nil {
		ar.restored[userID] = make(map[string]struct{})
	}
	ar.restored[userID][id] = struct{}{}
	delete(ar.index[userID], id)

	rec := entry.Record
	return &rec, nil
}

// Drop removes an archived entry without restoring it (owner delete).
func (ar *Archive) Drop(userID, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if entries, ok := ar.pending[userID]; ok {
		if _, ok := entries[id]; ok {
			delete(entries, id)
			delete(ar.index[userID], id)
			return nil
		}
	}
	if ids, ok := ar.index[userID]; ok {
		if _, exists := ids[id]; exists {
			if ar.restored[userID] == nil {
				ar.restored[userID] = make(map[string]struct{})
			}
			ar.restored[userID][id] = struct{}{}
			delete(ids, id)
			return nil
		}
	}
	return models.ErrNotFound
}

// Flush writes pending entries, applies lazy deletes, and drops entries
// older than the archive TTL.
func (ar *Archive) Flush() error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	users := make(map[string]struct{})
	for u := range ar.pending {
		users[u] = struct{}{}
	}
	for u := range ar.restored {
		users[u] = struct{}{}
	}

	for userID := range users {
		file := ar.getOrLoadFile(userID)
		if file == nil {
			file = &ArchiveFile{Entries: make(map[string]*ArchivedEntry)}
		}

		if removed, ok := ar.restored[userID]; ok {
			for id := range removed {
				delete(file.Entries, id)
			}
		}

		if entries, ok := ar.pending[userID]; ok {
			for id, entry := range entries {
				file.Entries[id] = entry
			}
		}

		if ar.ttl > 0 {
			now := time.Now()
			for id, entry := range file.Entries {
				if now.Sub(entry.ArchivedAt) > ar.ttl {
					delete(file.Entries, id)
					if idx, ok := ar.index[userID]; ok {
						delete(idx, id)
					}
				}
			}
		}

		if len(file.Entries) > 0 {
			if err := ar.writeFile(userID, file); err != nil {
				return err
			}
			ar.loaded[userID] = file
		} else {
			_ = os.Remove(ar.path(userID))
			delete(ar.loaded, userID)
		}
	}

	ar.pending = make(map[string]map[string]*ArchivedEntry)
	ar.restored = make(map[string]map[string]struct{})
	return nil
}

// RestoreIndex scans the archive directory on boot so Has answers without
// loading files.
func (ar *Archive) RestoreIndex() error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	entries, err := os.ReadDir(ar.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".zst") {
			continue
		}
		userID := strings.TrimSuffix(name, ".zst")
		file := ar.loadFile(userID)
		if file == nil {
			continue
		}
		ids := make(map[string]struct{}, len(file.Entries))
		for id := range file.Entries {
			ids[id] = struct{}{}
		}
		ar.index[userID] = ids
		ar.loaded[userID] = file
	}
	return nil
}

func (ar *Archive) path(userID string) string {
	// Base confines a crafted id to the archive dir.
	return filepath.Join(ar.dir, filepath.Base(userID)+".zst")
}

func (ar *Archive) getOrLoadFile(userID string) *ArchiveFile {
	if file, ok := ar.loaded[userID]; ok {
		return file
	}
	file := ar.loadFile(userID)
	if file != nil {
		ar.loaded[userID] = file
	}
	return file
}

func (ar *Archive) loadFile(userID string) *ArchiveFile {
	data, err := os.ReadFile(ar.path(userID))
	if err != nil {
		return nil
	}
	raw, err := ar.compressor.Decompress(data)
	if err != nil {
		ar.logger.Warnf(providers.TypeCore, "Corrupt archive for %s: %s", userID, err)
		return nil
	}
	var file ArchiveFile
	if err := json.Unmarshal(raw, &file); err != nil {
		ar.logger.Warnf(providers.TypeCore, "Corrupt archive for %s: %s", userID, err)
		return nil
	}
	if file.Entries == nil {
		file.Entries = make(map[string]*ArchivedEntry)
	}
	return &file
}

func (ar *Archive) writeFile(userID string, file *ArchiveFile) error {
	if err := os.MkdirAll(ar.dir, 0755); err != nil {
		return err
	}

	raw, err := json.Marshal(file)
	if err != nil {
		return err
	}
	data, err := ar.compressor.Compress(raw)
	if err != nil {
		return err
	}

	tmp := ar.path(userID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, ar.path(userID))
}
