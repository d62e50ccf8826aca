package services

import (
	"rsd/internal/channel"
	"rsd/internal/engagement"
	"rsd/internal/feed"
	"rsd/internal/models"
	"rsd/internal/presence"
	"rsd/internal/providers"
	"strings"
	"sync"
)

type IngestServiceInterface interface {
	Start()
	Stop()
}

// IngestService routes raw producer deltas from the event channel to the
// consumer components. Each component takes its slice of the channel by
// entity-type prefix: post deltas feed the aggregator, activity pings the
// tracker, update events the fan-out. Errors are per-delta: one bad event
// never stops the loop or touches another entity's state.
type IngestService struct {
	broker     *channel.Broker
	aggregator *engagement.Aggregator
	tracker    *presence.Tracker
	fanout     *feed.Fanout
	logger     providers.Logger

	subs []*channel.Subscription
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func NewIngestService(broker *channel.Broker, aggregator *engagement.Aggregator, tracker *presence.Tracker, fanout *feed.Fanout, logger providers.Logger) IngestServiceInterface {
	return &IngestService{
		broker:     broker,
		aggregator: aggregator,
		tracker:    tracker,
		fanout:     fanout,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

func (s *IngestService) Start() {
	for _, prefix := range []string{"post:", "activity:", "update:"} {
		sub := s.broker.SubscribeTap(prefix)
		s.subs = append(s.subs, sub)
		s.wg.Add(1)
		go s.consume(sub)
	}
}

func (s *IngestService) Stop() {
	s.once.Do(func() {
		close(s.stop)
		for _, sub := range s.subs {
			sub.Cancel()
		}
	})
	s.wg.Wait()
}

func (s *IngestService) consume(sub *channel.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case delta := <-sub.C():
			s.dispatch(delta)
		}
	}
}

func (s *IngestService) dispatch(delta models.Delta) {
	entityID := entityID(delta.EntityKey)

	var err error
	switch d := delta.Payload.(type) {
	case models.ReactionDelta:
		err = s.aggregator.ApplyReaction(entityID, d.UserID, d.Kind)
	case models.ReactionRemovedDelta:
		err = s.aggregator.RemoveReaction(entityID, d.UserID)
	case models.ViewDelta:
		err = s.aggregator.IncrementView(entityID, d.UserID)
	case models.CommentCountDelta:
		err = s.aggregator.ApplyCommentDelta(entityID, d.Delta)
	case models.ShareCountDelta:
		err = s.aggregator.ApplyShareDelta(entityID, d.Delta)
	case models.ActivityDelta:
		err = s.tracker.RecordActivity(d.UserID, d.Kind, d.TargetID, d.Metadata)
	case models.FeedPublishDelta:
		_, err = s.fanout.Publish(d.Update)
	default:
		return
	}
	if err != nil {
		s.logger.Warnf(providers.TypeCore, "Dropped %T for %s: %s", delta.Payload, delta.EntityKey, err)
	}
}

func entityID(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
