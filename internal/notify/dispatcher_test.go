package notify

import (
	"errors"
	"fmt"
	"rsd/internal/channel"
	"rsd/internal/models"
	"rsd/internal/persist/interfaces"
	"rsd/internal/structures"
	"rsd/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressor(t *testing.T) interfaces.CompressorInterface {
	t.Helper()
	return &testutil.MockCompressor{}
}

func testConfig() *structures.Config {
	return &structures.Config{
		Channel: structures.ChannelConfig{
			RetainPerKey:    64,
			SubscriberDepth: 64,
		},
	}
}

type dispatcherDeps struct {
	dispatcher *Dispatcher
	broker     *channel.Broker
	push       *testutil.MockPushTransport
	metrics    *testutil.MockMetrics
	logger     *testutil.MockLogger
}

func newDispatcher(t *testing.T, maxPerUser int) *dispatcherDeps {
	t.Helper()
	conf := testConfig()
	logger := &testutil.MockLogger{}
	metrics := &testutil.MockMetrics{}
	broker := channel.NewBroker(conf, logger, metrics)
	push := &testutil.MockPushTransport{}
	archive := NewArchive(t.TempDir(), 0, newCompressor(t), logger)
	d := NewDispatcher(NewStore(maxPerUser), archive, broker, push, logger, metrics)
	return &dispatcherDeps{dispatcher: d, broker: broker, push: push, metrics: metrics, logger: logger}
}

func notification(userID string) models.NotificationRecord {
	return models.NotificationRecord{
		UserID: userID,
		Kind:   models.NotifyComment,
		Title:  "New comment",
		Body:   "someone replied",
	}
}

func TestSend_AssignsIDAndDelivers(t *testing.T) {
	deps := newDispatcher(t, 10)
	sub := deps.dispatcher.Observe("u1")
	defer sub.Cancel()

	stored, err := deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.IsRead)

	records, unread, err := deps.dispatcher.List("u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, unread)

	select {
	case d := <-sub.C():
		nd, ok := d.Payload.(models.NotificationDelta)
		require.True(t, ok)
		assert.Equal(t, stored.ID, nd.Record.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a notification delta")
	}

	assert.Equal(t, 1, deps.push.PushedCount())
	assert.Equal(t, 1, deps.metrics.NotificationsSent)
}

func TestSend_PushFailureDoesNotRollBack(t *testing.T) {
	deps := newDispatcher(t, 10)
	deps.push.Err = errors.New("gateway down")

	stored, err := deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)

	records, _, err := deps.dispatcher.List("u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, stored.ID, records[0].ID)
	assert.Equal(t, 1, deps.logger.CountByLevel("error"))
}

func TestSend_Validation(t *testing.T) {
	deps := newDispatcher(t, 10)

	_, err := deps.dispatcher.Send(models.NotificationRecord{Kind: models.NotifyComment})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = deps.dispatcher.Send(models.NotificationRecord{UserID: "u1"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	rec := notification("../../escaped")
	_, err = deps.dispatcher.Send(rec)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestMarkRead_Idempotent(t *testing.T) {
	deps := newDispatcher(t, 10)
	stored, err := deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)

	require.NoError(t, deps.dispatcher.MarkRead("u1", stored.ID))
	require.NoError(t, deps.dispatcher.MarkRead("u1", stored.ID))

	_, unread, err := deps.dispatcher.List("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	assert.ErrorIs(t, deps.dispatcher.MarkRead("u1", "ghost"), models.ErrNotFound)
}

func TestDelete_UnknownIsNotFound(t *testing.T) {
	deps := newDispatcher(t, 10)
	stored, err := deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)

	require.NoError(t, deps.dispatcher.Delete("u1", stored.ID))
	assert.ErrorIs(t, deps.dispatcher.Delete("u1", stored.ID), models.ErrNotFound)
}

func TestSend_OverflowArchivesReadRecords(t *testing.T) {
	deps := newDispatcher(t, 2)

	first, err := deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)
	require.NoError(t, deps.dispatcher.MarkRead("u1", first.ID))

	for i := 0; i < 2; i++ {
		_, err = deps.dispatcher.Send(notification("u1"))
		require.NoError(t, err)
	}

	records, _, err := deps.dispatcher.List("u1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// the read record went to the archive, not into the void
	restored, err := deps.dispatcher.Unarchive("u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, restored.ID)

	records, _, err = deps.dispatcher.List("u1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDelete_FallsThroughToArchive(t *testing.T) {
	deps := newDispatcher(t, 1)

	first, err := deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)
	require.NoError(t, deps.dispatcher.MarkRead("u1", first.ID))
	_, err = deps.dispatcher.Send(notification("u1"))
	require.NoError(t, err)

	// first now lives in the archive only
	require.NoError(t, deps.dispatcher.Delete("u1", first.ID))
	_, err = deps.dispatcher.Unarchive("u1", first.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestList_ManyUsersIsolated(t *testing.T) {
	deps := newDispatcher(t, 10)
	for i := 0; i < 3; i++ {
		_, err := deps.dispatcher.Send(notification(fmt.Sprintf("u%d", i)))
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		records, unread, err := deps.dispatcher.List(fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 1, unread)
	}
}
