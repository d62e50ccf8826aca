package models

import "time"

// DeltaPayload is the closed set of event payloads carried by the channel.
// Consumers dispatch on the concrete type.
type DeltaPayload interface {
	isDelta()
}

type ReactionDelta struct {
	UserID string       `json:"user_id"`
	Kind   ReactionKind `json:"kind"`
}

func (ReactionDelta) isDelta() {}

type ReactionRemovedDelta struct {
	UserID string `json:"user_id"`
}

func (ReactionRemovedDelta) isDelta() {}

type ViewDelta struct {
	UserID string `json:"user_id"`
}

func (ViewDelta) isDelta() {}

type CommentCountDelta struct {
	Delta int `json:"delta"`
}

func (CommentCountDelta) isDelta() {}

type ShareCountDelta struct {
	Delta int `json:"delta"`
}

func (ShareCountDelta) isDelta() {}

type ActivityDelta struct {
	UserID   string            `json:"user_id"`
	Kind     ActivityKind      `json:"kind"`
	TargetID string            `json:"target_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (ActivityDelta) isDelta() {}

// EngagementDelta publishes a fresh read-only snapshot to observers.
type EngagementDelta struct {
	Snapshot EngagementSnapshot
}

func (EngagementDelta) isDelta() {}

// PresenceDelta publishes a user's full live activity set after a change,
// including removals caused by TTL expiry.
type PresenceDelta struct {
	UserID  string
	Records []ActivityRecord
}

func (PresenceDelta) isDelta() {}

// ViewersDelta publishes the set of users currently viewing a post.
type ViewersDelta struct {
	PostID  string
	UserIDs []string
}

func (ViewersDelta) isDelta() {}

// FeedBatchDelta publishes newly inserted feed updates in delivery order.
type FeedBatchDelta struct {
	Updates []FeedUpdate
}

func (FeedBatchDelta) isDelta() {}

type NotificationDelta struct {
	Record NotificationRecord
}

func (NotificationDelta) isDelta() {}

// FeedPublishDelta is the raw producer-side event asking the fan-out to
// insert an update into a user's feed.
type FeedPublishDelta struct {
	Update FeedUpdate
}

func (FeedPublishDelta) isDelta() {}

// Delta is one entry in an entity's ordered log. Seq is unique and
// monotonically increasing per entity key only.
type Delta struct {
	Seq       uint64
	EntityKey string
	At        time.Time
	Payload   DeltaPayload
}
