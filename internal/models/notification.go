package models

import "time"

type NotificationKind string

const (
	NotifyReaction  NotificationKind = "reaction"
	NotifyComment   NotificationKind = "comment"
	NotifyFollower  NotificationKind = "follower"
	NotifyMention   NotificationKind = "mention"
	NotifySystemMsg NotificationKind = "system"
)

// NotificationRecord is created by the dispatcher and afterwards mutated
// only by read-state transitions. Deletable by its owner.
type NotificationRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      NotificationKind  `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}
