package models

import "time"

type UpdateKind string

const (
	UpdateNewPost        UpdateKind = "new_post"
	UpdatePostEngagement UpdateKind = "post_engagement"
	UpdatePostRemoved    UpdateKind = "post_removed"
)

// FeedPayload is the closed set of feed update variants. Dispatch by Kind;
// DedupKey identifies payloads that count as duplicates of each other
// within the fan-out's trailing dedup window.
type FeedPayload interface {
	Kind() UpdateKind
	DedupKey() string
	isFeedPayload()
}

type NewPostPayload struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title,omitempty"`
}

func (NewPostPayload) Kind() UpdateKind   { return UpdateNewPost }
func (p NewPostPayload) DedupKey() string { return string(UpdateNewPost) + ":" + p.PostID }
func (NewPostPayload) isFeedPayload()     {}

type PostEngagementPayload struct {
	PostID    string `json:"post_id"`
	LikeCount int    `json:"like_count"`
	ViewCount int    `json:"view_count"`
}

func (PostEngagementPayload) Kind() UpdateKind { return UpdatePostEngagement }
func (p PostEngagementPayload) DedupKey() string {
	return string(UpdatePostEngagement) + ":" + p.PostID
}
func (PostEngagementPayload) isFeedPayload() {}

type PostRemovedPayload struct {
	PostID string `json:"post_id"`
}

func (PostRemovedPayload) Kind() UpdateKind   { return UpdatePostRemoved }
func (p PostRemovedPayload) DedupKey() string { return string(UpdatePostRemoved) + ":" + p.PostID }
func (PostRemovedPayload) isFeedPayload()     {}

// FeedUpdate is immutable once published. Delivery order within one user's
// stream is (priority desc, timestamp asc), insertion order breaking ties.
type FeedUpdate struct {
	ID          string      `json:"id"`
	OwnerUserID string      `json:"owner_user_id"`
	Payload     FeedPayload `json:"-"`
	Timestamp   time.Time   `json:"timestamp"`
	Priority    int         `json:"priority"`
}

func (u FeedUpdate) Kind() UpdateKind {
	if u.Payload == nil {
		return ""
	}
	return u.Payload.Kind()
}
