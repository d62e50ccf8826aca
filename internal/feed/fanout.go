package feed

import (
	"fmt"
	"rsd/internal/channel"
	"rsd/internal/models"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"sync"
	"time"

	"github.com/google/uuid"
)

// seenPruneThreshold bounds the dedup bookkeeping per feed; entries older
// than the window are dropped once the map grows past this.
const seenPruneThreshold = 1024

type entry struct {
	update models.FeedUpdate
	ins    uint64
}

type seenUpdate struct {
	at     time.Time
	update models.FeedUpdate
}

type userFeed struct {
	mu       sync.Mutex
	entries  []entry
	nextIns  uint64
	cursorID string
	seen     map[string]seenUpdate
}

// Fanout delivers raw update events into each user's personal feed stream:
// priority-then-timestamp ordering, trailing-window dedup against
// at-least-once producers, a bounded ring evicting lowest-priority-oldest
// first, and a monotonic per-user read cursor.
type Fanout struct {
	mu    sync.RWMutex
	feeds map[string]*userFeed

	broker *channel.Broker
	conf   structures.FeedConfig
	logger providers.Logger

	now func() time.Time
}

func NewFanout(conf *structures.Config, broker *channel.Broker, logger providers.Logger) *Fanout {
	return &Fanout{
		feeds:  make(map[string]*userFeed),
		broker: broker,
		conf:   conf.Feed,
		logger: logger,
		now:    time.Now,
	}
}

func (f *Fanout) feed(userID string) *userFeed {
	f.mu.RLock()
	uf, ok := f.feeds[userID]
	f.mu.RUnlock()
	if ok {
		return uf
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if uf, ok = f.feeds[userID]; ok {
		return uf
	}
	uf = &userFeed{seen: make(map[string]seenUpdate)}
	f.feeds[userID] = uf
	return uf
}

// before reports whether a sorts ahead of b in delivery order:
// priority desc, timestamp asc, insertion order asc.
func before(a, b entry) bool {
	if a.update.Priority != b.update.Priority {
		return a.update.Priority > b.update.Priority
	}
	if !a.update.Timestamp.Equal(b.update.Timestamp) {
		return a.update.Timestamp.Before(b.update.Timestamp)
	}
	return a.ins < b.ins
}

// Publish inserts the update into the owner's feed in delivery order and
// streams it to observers. An update with an identical dedup identity within
// the trailing window is suppressed: the previously stored update is
// returned and nothing is inserted or streamed. Otherwise returns the stored
// update (an id and timestamp are assigned when missing) or a validation
// error.
func (f *Fanout) Publish(update models.FeedUpdate) (models.FeedUpdate, error) {
	if err := models.CheckID("ownerUserId", update.OwnerUserID); err != nil {
		return models.FeedUpdate{}, err
	}
	if update.Payload == nil {
		return models.FeedUpdate{}, fmt.Errorf("feed update payload is nil: %w", models.ErrInvalidArgument)
	}
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	now := f.now()
	if update.Timestamp.IsZero() {
		update.Timestamp = now
	}

	uf := f.feed(update.OwnerUserID)
	uf.mu.Lock()

	dk := update.Payload.DedupKey()
	if last, ok := uf.seen[dk]; ok && now.Sub(last.at) < f.conf.DedupWindow {
		uf.mu.Unlock()
		return last.update, nil
	}
	uf.seen[dk] = seenUpdate{at: now, update: update}
	uf.pruneSeen(now, f.conf.DedupWindow)

	e := entry{update: update, ins: uf.nextIns}
	uf.nextIns++

	pos := len(uf.entries)
	for i := range uf.entries {
		if before(e, uf.entries[i]) {
			pos = i
			break
		}
	}
	uf.entries = append(uf.entries, entry{})
	copy(uf.entries[pos+1:], uf.entries[pos:])
	uf.entries[pos] = e

	if f.conf.Capacity > 0 && len(uf.entries) > f.conf.Capacity {
		uf.evictLocked()
	}
	uf.mu.Unlock()

	f.broker.Publish("feed:"+update.OwnerUserID, models.FeedBatchDelta{
		Updates: []models.FeedUpdate{update},
	})
	return update, nil
}

// evictLocked removes the lowest-priority, oldest entry. Entries are kept
// in delivery order, so the lowest-priority run is the tail; its oldest
// entry is the run's first element.
func (uf *userFeed) evictLocked() {
	last := len(uf.entries) - 1
	lowest := uf.entries[last].update.Priority
	start := last
	for start > 0 && uf.entries[start-1].update.Priority == lowest {
		start--
	}
	uf.entries = append(uf.entries[:start], uf.entries[start+1:]...)
}

func (uf *userFeed) pruneSeen(now time.Time, window time.Duration) {
	if len(uf.seen) < seenPruneThreshold {
		return
	}
	for k, s := range uf.seen {
		if now.Sub(s.at) >= window {
			delete(uf.seen, k)
		}
	}
}

// List returns the user's buffered updates in delivery order together with
// the read cursor.
func (f *Fanout) List(userID string) ([]models.FeedUpdate, string, error) {
	if err := models.CheckID("userId", userID); err != nil {
		return nil, "", err
	}

	uf := f.feed(userID)
	uf.mu.Lock()
	defer uf.mu.Unlock()

	updates := make([]models.FeedUpdate, len(uf.entries))
	for i, e := range uf.entries {
		updates[i] = e.update
	}
	return updates, uf.cursorID, nil
}

// MarkRead advances the read cursor to the given update. The cursor is
// monotonic: marking an update that sits before the cursor's current
// position leaves the cursor where it is.
func (f *Fanout) MarkRead(userID, updateID string) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}
	if err := models.CheckID("updateId", updateID); err != nil {
		return err
	}

	uf := f.feed(userID)
	uf.mu.Lock()
	defer uf.mu.Unlock()

	pos := uf.positionLocked(updateID)
	if pos < 0 {
		return fmt.Errorf("update %s: %w", updateID, models.ErrNotFound)
	}
	if uf.cursorID != "" {
		if cur := uf.positionLocked(uf.cursorID); cur >= pos {
			return nil
		}
	}
	uf.cursorID = updateID
	return nil
}

func (uf *userFeed) positionLocked(updateID string) int {
	for i, e := range uf.entries {
		if e.update.ID == updateID {
			return i
		}
	}
	return -1
}

// ClearOlderThan evicts buffered updates older than the cutoff regardless
// of read state.
func (f *Fanout) ClearOlderThan(userID string, cutoff time.Time) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}

	uf := f.feed(userID)
	uf.mu.Lock()
	defer uf.mu.Unlock()

	kept := uf.entries[:0]
	for _, e := range uf.entries {
		if !e.update.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	uf.entries = kept
	return nil
}

// Observe streams newly inserted updates for the user in delivery order.
func (f *Fanout) Observe(userID string) *channel.Subscription {
	return f.broker.Subscribe("feed:" + userID)
}

// Cursors snapshots every user's read cursor for persistence.
func (f *Fanout) Cursors() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cursors := make(map[string]string, len(f.feeds))
	for userID, uf := range f.feeds {
		uf.mu.Lock()
		if uf.cursorID != "" {
			cursors[userID] = uf.cursorID
		}
		uf.mu.Unlock()
	}
	return cursors
}

// RestoreCursors reinstates persisted read cursors on boot.
func (f *Fanout) RestoreCursors(cursors map[string]string) {
	for userID, cursorID := range cursors {
		uf := f.feed(userID)
		uf.mu.Lock()
		uf.cursorID = cursorID
		uf.mu.Unlock()
	}
}
