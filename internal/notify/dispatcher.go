package notify

import (
	"errors"
	"fmt"
	"rsd/internal/channel"
	"rsd/internal/models"
	"rsd/internal/providers"
	"time"

	"github.com/google/uuid"
)

// PushTransport is the out-of-band delivery collaborator. A failure there
// never rolls back the persisted record.
type PushTransport interface {
	Push(rec models.NotificationRecord) error
}

// LogPushTransport stands in when no real push backend is wired; it only
// logs what would have been delivered.
type LogPushTransport struct {
	Logger providers.Logger
}

func (t *LogPushTransport) Push(rec models.NotificationRecord) error {
	t.Logger.Debugf(providers.TypeCore, "Push %s to %s: %s", rec.Kind, rec.UserID, rec.Title)
	return nil
}

// Dispatcher turns qualifying events into persisted per-user notification
// records, streams them to live observers, and hands them to the push
// transport.
type Dispatcher struct {
	store   *Store
	archive *Archive
	broker  *channel.Broker
	push    PushTransport
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	now func() time.Time
}

func NewDispatcher(store *Store, archive *Archive, broker *channel.Broker, push PushTransport, logger providers.Logger, metrics providers.MetricsProviderInterface) *Dispatcher {
	return &Dispatcher{
		store:   store,
		archive: archive,
		broker:  broker,
		push:    push,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Send persists the record, publishes it to the recipient's live stream,
// and forwards it out of band. Returns the stored record with its id.
func (d *Dispatcher) Send(rec models.NotificationRecord) (models.NotificationRecord, error) {
	if err := models.CheckID("userId", rec.UserID); err != nil {
		return models.NotificationRecord{}, err
	}
	if rec.Kind == "" {
		return models.NotificationRecord{}, fmt.Errorf("notification kind is empty: %w", models.ErrInvalidArgument)
	}

	rec.ID = uuid.NewString()
	rec.IsRead = false
	rec.CreatedAt = d.now()

	for _, evicted := range d.store.Add(rec) {
		d.archive.Evict(evicted)
	}

	d.broker.Publish("notify:"+rec.UserID, models.NotificationDelta{Record: rec})
	d.metrics.IncNotificationsSent()

	if err := d.push.Push(rec); err != nil {
		d.logger.Errorf(providers.TypeCore, "Push transport failed for %s: %s", rec.ID, err)
	}
	return rec, nil
}

// List returns the user's in-memory records newest-first together with the
// derived unread count.
func (d *Dispatcher) List(userID string) ([]models.NotificationRecord, int, error) {
	if err := models.CheckID("userId", userID); err != nil {
		return nil, 0, err
	}
	return d.store.List(userID), d.store.UnreadCount(userID), nil
}

// MarkRead is idempotent; re-marking a read record is a no-op.
func (d *Dispatcher) MarkRead(userID, id string) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}
	if err := models.CheckID("id", id); err != nil {
		return err
	}
	return d.store.MarkRead(userID, id)
}

func (d *Dispatcher) MarkAllRead(userID string) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}
	d.store.MarkAllRead(userID)
	return nil
}

// Delete removes the record from the store or, failing that, from the
// archive. Unknown ids report NotFound; callers treating delete as
// "ensure absent" ignore it.
func (d *Dispatcher) Delete(userID, id string) error {
	if err := models.CheckID("userId", userID); err != nil {
		return err
	}
	if err := models.CheckID("id", id); err != nil {
		return err
	}

	err := d.store.Delete(userID, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) && d.archive.Has(userID, id) {
		return d.archive.Drop(userID, id)
	}
	return err
}

// Unarchive moves a previously evicted record back into the live store.
func (d *Dispatcher) Unarchive(userID, id string) (models.NotificationRecord, error) {
	if err := models.CheckID("userId", userID); err != nil {
		return models.NotificationRecord{}, err
	}
	rec, err := d.archive.Restore(userID, id)
	if err != nil {
		return models.NotificationRecord{}, fmt.Errorf("notification %s: %w", id, err)
	}
	for _, evicted := range d.store.Add(*rec) {
		d.archive.Evict(evicted)
	}
	return *rec, nil
}

// Observe streams new notifications for the user as they are dispatched.
func (d *Dispatcher) Observe(userID string) *channel.Subscription {
	return d.broker.Subscribe("notify:" + userID)
}

// Snapshot and Put expose the store for snapshot persistence.
func (d *Dispatcher) Snapshot() map[string][]models.NotificationRecord {
	return d.store.Snapshot()
}

func (d *Dispatcher) Put(userID string, list []models.NotificationRecord) {
	d.store.Put(userID, list)
}
