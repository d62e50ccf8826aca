package presence

import (
	"fmt"
	"rsd/internal/channel"
	"rsd/internal/models"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"sort"
	"sync"
	"time"
)

type recordKey struct {
	kind   models.ActivityKind
	target string
}

type userState struct {
	mu      sync.Mutex
	records map[recordKey]models.ActivityRecord
}

// Tracker owns the live activity state of every user: an arena of
// per-user records keyed (kind, target), each carrying its own TTL class.
// Expired records never reach a read path; a background sweep additionally
// notifies observers of TTL departures without anyone polling.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*userState

	viewersMu sync.Mutex
	viewers   map[string]map[string]struct{}

	broker *channel.Broker
	conf   structures.PresenceConfig
	logger providers.Logger

	now func() time.Time
}

func NewTracker(conf *structures.Config, broker *channel.Broker, logger providers.Logger) *Tracker {
	return &Tracker{
		users:   make(map[string]*userState),
		viewers: make(map[string]map[string]struct{}),
		broker:  broker,
		conf:    conf.Presence,
		logger:  logger,
		now:     time.Now,
	}
}

func (t *Tracker) ttl(kind models.ActivityKind) time.Duration {
	switch kind {
	case models.ActivityTyping:
		return t.conf.TypingTTL
	case models.ActivityViewing:
		return t.conf.ViewingTTL
	default:
		return 3 * t.conf.HeartbeatInterval
	}
}

func (t *Tracker) user(userID string) *userState {
	t.mu.RLock()
	us, ok := t.users[userID]
	t.mu.RUnlock()
	if ok {
		return us
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if us, ok = t.users[userID]; ok {
		return us
	}
	us = &userState{records: make(map[recordKey]models.ActivityRecord)}
	t.users[userID] = us
	return us
}

// lookup is the read-path variant of user: unknown ids allocate nothing.
func (t *Tracker) lookup(userID string) *userState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.users[userID]
}

// RecordActivity upserts the (userId, kind, targetId) record, refreshing
// its expiry, and publishes the user's new live set.
func (t *Tracker) RecordActivity(userID string, kind models.ActivityKind, targetID string, metadata map[string]string) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}
	switch kind {
	case models.ActivityTyping, models.ActivityViewing, models.ActivityOnline:
	default:
		return fmt.Errorf("unknown activity kind %q: %w", kind, models.ErrInvalidArgument)
	}
	if kind != models.ActivityOnline {
		if err := models.CheckID("targetId", targetID); err != nil {
			return err
		}
	}

	now := t.now()
	rec := models.ActivityRecord{
		UserID:    userID,
		Kind:      kind,
		TargetID:  targetID,
		Metadata:  metadata,
		Timestamp: now,
		ExpiresAt: now.Add(t.ttl(kind)),
	}

	us := t.user(userID)
	us.mu.Lock()
	us.records[recordKey{kind: kind, target: targetID}] = rec
	live := us.liveLocked(now)
	us.mu.Unlock()

	t.publishUser(userID, live)

	if kind == models.ActivityViewing {
		t.addViewer(targetID, userID)
	}
	return nil
}

// SetOnline is the heartbeat specialization: an online record with no
// target and the heartbeat TTL class.
func (t *Tracker) SetOnline(userID string) error {
	return t.RecordActivity(userID, models.ActivityOnline, "", nil)
}

// SetOffline drops the online record immediately rather than waiting for
// its heartbeat TTL.
func (t *Tracker) SetOffline(userID string) error {
	return t.Clear(userID, models.ActivityOnline)
}

// Clear removes all of the user's records of the given kind at once, used
// on explicit state transitions such as closing the composer.
func (t *Tracker) Clear(userID string, kind models.ActivityKind) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}

	us := t.user(userID)
	now := t.now()

	us.mu.Lock()
	var removedTargets []string
	for key := range us.records {
		if key.kind == kind {
			if kind == models.ActivityViewing {
				removedTargets = append(removedTargets, key.target)
			}
			delete(us.records, key)
		}
	}
	live := us.liveLocked(now)
	us.mu.Unlock()

	t.publishUser(userID, live)
	for _, target := range removedTargets {
		t.removeViewer(target, userID)
	}
	return nil
}

// ActiveFor returns the user's live records. Expired entries are pruned on
// the way out, never returned.
func (t *Tracker) ActiveFor(userID string) []models.ActivityRecord {
	us := t.lookup(userID)
	if us == nil {
		return []models.ActivityRecord{}
	}
	us.mu.Lock()
	defer us.mu.Unlock()
	return us.liveLocked(t.now())
}

// ViewersOf returns the ids of users with a live viewing record on the post.
func (t *Tracker) ViewersOf(postID string) []string {
	t.viewersMu.Lock()
	candidates := make([]string, 0, len(t.viewers[postID]))
	for userID := range t.viewers[postID] {
		candidates = append(candidates, userID)
	}
	t.viewersMu.Unlock()

	now := t.now()
	key := recordKey{kind: models.ActivityViewing, target: postID}
	live := candidates[:0]
	for _, userID := range candidates {
		us := t.lookup(userID)
		if us == nil {
			continue
		}
		us.mu.Lock()
		rec, ok := us.records[key]
		us.mu.Unlock()
		if ok && rec.Live(now) {
			live = append(live, userID)
		}
	}
	sort.Strings(live)
	return live
}

// Observe streams the user's live activity set on every change, including
// removals caused by TTL expiry.
func (t *Tracker) Observe(userID string) *channel.Subscription {
	return t.broker.Subscribe("presence:" + userID)
}

// ObservePostViewers streams the set of users viewing the post.
func (t *Tracker) ObservePostViewers(postID string) *channel.Subscription {
	return t.broker.Subscribe("viewers:" + postID)
}

// Sweep removes expired records and notifies observers of the departures.
// Runs on a scheduler tick; readers never depend on it for correctness,
// only observers depend on it for timely removal events.
func (t *Tracker) Sweep() {
	now := t.now()

	t.mu.RLock()
	userIDs := make([]string, 0, len(t.users))
	for id := range t.users {
		userIDs = append(userIDs, id)
	}
	t.mu.RUnlock()

	for _, userID := range userIDs {
		us := t.lookup(userID)
		if us == nil {
			continue
		}

		us.mu.Lock()
		var expiredViews []string
		expired := 0
		for key, rec := range us.records {
			if !rec.Live(now) {
				if key.kind == models.ActivityViewing {
					expiredViews = append(expiredViews, key.target)
				}
				delete(us.records, key)
				expired++
			}
		}
		var live []models.ActivityRecord
		if expired > 0 {
			live = us.liveLocked(now)
		}
		us.mu.Unlock()

		if expired > 0 {
			t.publishUser(userID, live)
			for _, target := range expiredViews {
				t.removeViewer(target, userID)
			}
		}
	}
}

func (us *userState) liveLocked(now time.Time) []models.ActivityRecord {
	records := make([]models.ActivityRecord, 0, len(us.records))
	for key, rec := range us.records {
		if !rec.Live(now) {
			delete(us.records, key)
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Kind != records[j].Kind {
			return records[i].Kind < records[j].Kind
		}
		return records[i].TargetID < records[j].TargetID
	})
	return records
}

func (t *Tracker) publishUser(userID string, live []models.ActivityRecord) {
	t.broker.Publish("presence:"+userID, models.PresenceDelta{
		UserID:  userID,
		Records: live,
	})
}

func (t *Tracker) addViewer(postID, userID string) {
	t.viewersMu.Lock()
	set, ok := t.viewers[postID]
	if !ok {
		set = make(map[string]struct{})
		t.viewers[postID] = set
	}
	_, present := set[userID]
	set[userID] = struct{}{}
	t.viewersMu.Unlock()

	if !present {
		t.publishViewers(postID)
	}
}

func (t *Tracker) removeViewer(postID, userID string) {
	t.viewersMu.Lock()
	set, ok := t.viewers[postID]
	if ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(t.viewers, postID)
		}
	}
	t.viewersMu.Unlock()

	if ok {
		t.publishViewers(postID)
	}
}

func (t *Tracker) publishViewers(postID string) {
	t.broker.Publish("viewers:"+postID, models.ViewersDelta{
		PostID:  postID,
		UserIDs: t.ViewersOf(postID),
	})
}
