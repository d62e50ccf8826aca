package services

import (
	"rsd/internal/channel"
	"rsd/internal/engagement"
	"rsd/internal/feed"
	"rsd/internal/models"
	"rsd/internal/presence"
	"rsd/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestDeps struct {
	broker     *channel.Broker
	aggregator *engagement.Aggregator
	tracker    *presence.Tracker
	fanout     *feed.Fanout
	logger     *testutil.MockLogger
}

func newIngest(t *testing.T) (IngestServiceInterface, *ingestDeps) {
	t.Helper()
	conf := testutil.NewTestConfig()
	logger := &testutil.MockLogger{}
	metrics := &testutil.MockMetrics{}

	broker := channel.NewBroker(conf, logger, metrics)
	tracker := presence.NewTracker(conf, broker, logger)
	aggregator := engagement.NewAggregator(conf, broker, tracker, logger)
	fanout := feed.NewFanout(conf, broker, logger)

	svc := NewIngestService(broker, aggregator, tracker, fanout, logger)
	return svc, &ingestDeps{broker: broker, aggregator: aggregator, tracker: tracker, fanout: fanout, logger: logger}
}

func TestIngestService_ReactionDelta(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()
	defer svc.Stop()

	deps.broker.Publish("post:p1", models.ReactionDelta{UserID: "u1", Kind: models.ReactionLike})

	assert.Eventually(t, func() bool {
		snap, err := deps.aggregator.Snapshot("p1")
		return err == nil && snap.LikeCount == 1
	}, time.Second, 5*time.Millisecond)
}

func TestIngestService_ReactionRemoved(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()
	defer svc.Stop()

	deps.broker.Publish("post:p1", models.ReactionDelta{UserID: "u1", Kind: models.ReactionLove})
	deps.broker.Publish("post:p1", models.ReactionRemovedDelta{UserID: "u1"})

	assert.Eventually(t, func() bool {
		snap, err := deps.aggregator.Snapshot("p1")
		return err == nil && snap.LikeCount == 0
	}, time.Second, 5*time.Millisecond)
}

func TestIngestService_ViewAndCountDeltas(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()
	defer svc.Stop()

	deps.broker.Publish("post:p1", models.ViewDelta{UserID: "u1"})
	deps.broker.Publish("post:p1", models.CommentCountDelta{Delta: 2})
	deps.broker.Publish("post:p1", models.ShareCountDelta{Delta: 1})

	assert.Eventually(t, func() bool {
		snap, err := deps.aggregator.Snapshot("p1")
		return err == nil && snap.ViewCount == 1 && snap.CommentCount == 2 && snap.ShareCount == 1
	}, time.Second, 5*time.Millisecond)
}

func TestIngestService_ActivityDelta(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()
	defer svc.Stop()

	deps.broker.Publish("activity:u1", models.ActivityDelta{
		UserID:   "u1",
		Kind:     models.ActivityTyping,
		TargetID: "conv1",
	})

	assert.Eventually(t, func() bool {
		records := deps.tracker.ActiveFor("u1")
		return len(records) == 1 && records[0].Kind == models.ActivityTyping
	}, time.Second, 5*time.Millisecond)
}

func TestIngestService_FeedPublishDelta(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()
	defer svc.Stop()

	deps.broker.Publish("update:u1", models.FeedPublishDelta{
		Update: models.FeedUpdate{
			OwnerUserID: "u1",
			Payload:     models.NewPostPayload{PostID: "p1", AuthorID: "a1"},
		},
	})

	assert.Eventually(t, func() bool {
		updates, _, err := deps.fanout.List("u1")
		return err == nil && len(updates) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestIngestService_InvalidDeltaLoggedNotFatal(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()
	defer svc.Stop()

	// Empty user fails component validation; the loop keeps consuming.
	deps.broker.Publish("post:p1", models.ReactionDelta{UserID: "", Kind: models.ReactionLike})
	deps.broker.Publish("post:p1", models.ViewDelta{UserID: "u1"})

	assert.Eventually(t, func() bool {
		snap, err := deps.aggregator.Snapshot("p1")
		return err == nil && snap.ViewCount == 1
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, deps.logger.CountByLevel("warn"), 1)
}

func TestIngestService_StopIsIdempotent(t *testing.T) {
	svc, deps := newIngest(t)
	svc.Start()

	deps.broker.Publish("post:p1", models.ViewDelta{UserID: "u1"})
	require.Eventually(t, func() bool {
		snap, err := deps.aggregator.Snapshot("p1")
		return err == nil && snap.ViewCount == 1
	}, time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.Stop()

	// After stop, published deltas are no longer consumed.
	deps.broker.Publish("post:p1", models.ViewDelta{UserID: "u2"})
	time.Sleep(50 * time.Millisecond)
	snap, err := deps.aggregator.Snapshot("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ViewCount)
}
