package notify

import (
	"fmt"
	"rsd/internal/models"
	"sync"
)

// Store holds each user's notification records newest-first, bounded per
// user. Overflow is handed to the caller for archiving rather than lost.
type Store struct {
	mu         sync.RWMutex
	records    map[string][]models.NotificationRecord
	maxPerUser int
}

func NewStore(maxPerUser int) *Store {
	return &Store{
		records:    make(map[string][]models.NotificationRecord),
		maxPerUser: maxPerUser,
	}
}

// Add prepends the record and returns any entries evicted by the per-user
// cap. Read records are evicted before unread ones, oldest first.
func (s *Store) Add(rec models.NotificationRecord) []models.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]models.NotificationRecord{rec}, s.records[rec.UserID]...)
	var evicted []models.NotificationRecord
	for s.maxPerUser > 0 && len(list) > s.maxPerUser {
		idx := len(list) - 1
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].IsRead {
				idx = i
				break
			}
		}
		evicted = append(evicted, list[idx])
		list = append(list[:idx], list[idx+1:]...)
	}
	s.records[rec.UserID] = list
	return evicted
}

// List returns the user's records newest-first.
func (s *Store) List(userID string) []models.NotificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.NotificationRecord, len(s.records[userID]))
	copy(list, s.records[userID])
	return list
}

// UnreadCount recomputes the unread total by scanning, so it can never
// drift from the records themselves.
func (s *Store) UnreadCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.records[userID] {
		if !rec.IsRead {
			count++
		}
	}
	return count
}

// MarkRead flips the record to read. Re-marking is a no-op, not an error.
func (s *Store) MarkRead(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.records[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
}

// MarkAllRead flips every unread record for the user.
func (s *Store) MarkAllRead(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.records[userID]
	for i := range list {
		list[i].IsRead = true
	}
}

// Delete removes the record, reporting NotFound for unknown ids.
func (s *Store) Delete(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.records[userID]
	for i := range list {
		if list[i].ID == id {
			s.records[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
}

// Snapshot copies every user's records for persistence.
func (s *Store) Snapshot() map[string][]models.NotificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.NotificationRecord, len(s.records))
	for userID, list := range s.records {
		cp := make([]models.NotificationRecord, len(list))
		copy(cp, list)
		out[userID] = cp
	}
	return out
}

// Put replaces a user's records wholesale, used on snapshot restore.
func (s *Store) Put(userID string, list []models.NotificationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = list
}
