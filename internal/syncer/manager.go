package syncer

import (
	"fmt"
	"rsd/internal/models"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

type resKey struct {
	typ string
	id  string
}

// Manager reconciles locally buffered mutations against the authoritative
// remote value. Per resource the state machine is
// Clean → Pending → Applied | Conflicted → Clean; a resource holds at most
// one pending mutation and at most one unresolved conflict, newer
// detections superseding older ones. Resources are independent: a stuck
// resource never blocks or rolls back another.
type Manager struct {
	mu           sync.Mutex
	pending      map[resKey]*models.PendingMutation
	conflicts    map[resKey]*models.Conflict
	conflictByID map[string]resKey
	lastSync     time.Time

	store   VersionedStore
	conf    structures.SyncConfig
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	online  atomic.Bool

	now func() time.Time
}

func NewManager(conf *structures.Config, store VersionedStore, logger providers.Logger, metrics providers.MetricsProviderInterface) *Manager {
	m := &Manager{
		pending:      make(map[resKey]*models.PendingMutation),
		conflicts:    make(map[resKey]*models.Conflict),
		conflictByID: make(map[string]resKey),
		store:        store,
		conf:         conf.Sync,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
	m.online.Store(true)
	return m
}

// Submit buffers a local write as Pending and, when online, immediately
// attempts confirmation. A newer submission for the same resource
// supersedes the older pending mutation.
func (m *Manager) Submit(resourceType, resourceID string, localValue json.RawMessage, baseVersion int64) error {
	if err := models.CheckID("resourceType", resourceType); err != nil {
		return err
	}
	if err := models.CheckID("resourceId", resourceID); err != nil {
		return err
	}
	if len(localValue) == 0 {
		return fmt.Errorf("localValue is empty: %w", models.ErrInvalidArgument)
	}

	key := resKey{typ: resourceType, id: resourceID}
	now := m.now()

	m.mu.Lock()
	m.pending[key] = &models.PendingMutation{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		LocalValue:   localValue,
		BaseVersion:  baseVersion,
		SubmittedAt:  now,
		NextAttempt:  now,
	}
	m.publishGaugesLocked()
	m.mu.Unlock()

	if m.online.Load() {
		m.flush(key)
	}
	return nil
}

// flush attempts to confirm one pending mutation. The store call runs
// outside the lock; the result is applied only if the mutation was not
// superseded meanwhile.
func (m *Manager) flush(key resKey) {
	m.mu.Lock()
	mut, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	attempt := *mut
	m.mu.Unlock()

	res, err := m.store.WriteIfVersion(attempt.ResourceID, attempt.LocalValue, attempt.BaseVersion)

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.pending[key]
	if !ok || cur.SubmittedAt != attempt.SubmittedAt {
		return
	}

	if err != nil {
		cur.Attempts++
		const max = 5 * time.Minute
		backoff := m.conf.BaseBackoff
		// doubling stops at the cap; an unbounded shift would overflow
		for i := 1; i < cur.Attempts && backoff < max; i++ {
			backoff *= 2
		}
		if backoff > max {
			backoff = max
		}
		cur.NextAttempt = m.now().Add(backoff)
		m.logger.Warnf(providers.TypeCore, "Transient store error for %s/%s (attempt %d): %s",
			key.typ, key.id, cur.Attempts, err)
		m.publishGaugesLocked()
		return
	}

	delete(m.pending, key)
	if res.OK {
		m.lastSync = m.now()
		delete(m.conflictByID, m.conflictIDLocked(key))
		delete(m.conflicts, key)
	} else {
		conflict := &models.Conflict{
			ID:            uuid.NewString(),
			ResourceType:  key.typ,
			ResourceID:    key.id,
			LocalValue:    attempt.LocalValue,
			RemoteValue:   res.CurrentValue,
			BaseVersion:   attempt.BaseVersion,
			RemoteVersion: res.CurrentVersion,
			DetectedAt:    m.now(),
		}
		delete(m.conflictByID, m.conflictIDLocked(key))
		m.conflicts[key] = conflict
		m.conflictByID[conflict.ID] = key
		m.logger.Infof(providers.TypeCore, "Conflict detected for %s/%s: base v%d, remote v%d",
			key.typ, key.id, attempt.BaseVersion, res.CurrentVersion)
	}
	m.publishGaugesLocked()
}

func (m *Manager) conflictIDLocked(key resKey) string {
	if c, ok := m.conflicts[key]; ok {
		return c.ID
	}
	return ""
}

// Resolve applies exactly one resolution to a conflict. Keep-local and
// merged re-enter Pending against the now-current remote version;
// keep-remote discards the local value outright.
func (m *Manager) Resolve(conflictID string, resolution models.Resolution) error {
	if err := models.CheckID("conflictId", conflictID); err != nil {
		return err
	}

	m.mu.Lock()
	key, ok := m.conflictByID[conflictID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("conflict %s: %w", conflictID, models.ErrNotFound)
	}
	conflict := m.conflicts[key]

	var resubmit json.RawMessage
	switch r := resolution.(type) {
	case models.KeepRemote:
		// Discard the local value; remote already holds the truth.
	case models.KeepLocal:
		resubmit = conflict.LocalValue
	case models.Merged:
		if len(r.Value) == 0 {
			m.mu.Unlock()
			return fmt.Errorf("merged resolution carries no value: %w", models.ErrInvalidArgument)
		}
		resubmit = r.Value
	default:
		m.mu.Unlock()
		return fmt.Errorf("unknown resolution shape: %w", models.ErrInvalidArgument)
	}

	delete(m.conflicts, key)
	delete(m.conflictByID, conflictID)
	remoteVersion := conflict.RemoteVersion
	m.publishGaugesLocked()
	m.mu.Unlock()

	if resubmit != nil {
		return m.Submit(key.typ, key.id, resubmit, remoteVersion)
	}
	return nil
}

// Status recomputes sync health by scanning outstanding work. failedCount
// counts unresolved conflicts plus pending mutations past the retry budget.
func (m *Manager) Status() models.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	failed := len(m.conflicts)
	for _, mut := range m.pending {
		if mut.Attempts >= m.conf.RetryBudget {
			failed++
		}
	}
	return models.SyncStatus{
		IsOnline:     m.online.Load(),
		LastSyncTime: m.lastSync,
		PendingCount: len(m.pending),
		FailedCount:  failed,
	}
}

// Conflicts lists every unresolved conflict.
func (m *Manager) Conflicts() []models.Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Conflict, 0, len(m.conflicts))
	for _, c := range m.conflicts {
		out = append(out, *c)
	}
	return out
}

// SyncNow re-attempts every pending mutation whose backoff has elapsed.
// The manual sync trigger and the scheduler tick both land here.
func (m *Manager) SyncNow() {
	now := m.now()

	m.mu.Lock()
	keys := make([]resKey, 0, len(m.pending))
	for key, mut := range m.pending {
		if !mut.NextAttempt.After(now) {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.flush(key)
	}
}

// SetOnline flips connectivity; coming back online kicks a sync pass.
func (m *Manager) SetOnline(online bool) {
	was := m.online.Swap(online)
	if online && !was {
		m.SyncNow()
	}
}

// Pending snapshots outstanding mutations for persistence.
func (m *Manager) Pending() []models.PendingMutation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.PendingMutation, 0, len(m.pending))
	for _, mut := range m.pending {
		out = append(out, *mut)
	}
	return out
}

// RestorePending reinstates persisted mutations on boot; they rejoin the
// normal retry cycle.
func (m *Manager) RestorePending(muts []models.PendingMutation) {
	m.mu.Lock()
	for i := range muts {
		mut := muts[i]
		m.pending[resKey{typ: mut.ResourceType, id: mut.ResourceID}] = &mut
	}
	m.publishGaugesLocked()
	m.mu.Unlock()
}

func (m *Manager) publishGaugesLocked() {
	m.metrics.SetPendingMutations(len(m.pending))
	m.metrics.SetConflicts(len(m.conflicts))
}
