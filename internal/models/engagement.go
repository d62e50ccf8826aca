package models

import "time"

type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionYum   ReactionKind = "yum"
	ReactionWow   ReactionKind = "wow"
	ReactionLaugh ReactionKind = "laugh"
)

// RecentReaction is immutable once created. At most one live entry exists
// per (userId, postId); a newer reaction from the same user replaces it.
type RecentReaction struct {
	UserID    string       `json:"user_id"`
	Kind      ReactionKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
}

// EngagementSnapshot is the published read-only view of a post's live
// counters. Counters are never negative. RecentReactions is newest-first
// and bounded; eviction from the window never decrements LikeCount.
type EngagementSnapshot struct {
	PostID            string           `json:"post_id"`
	LikeCount         int              `json:"like_count"`
	CommentCount      int              `json:"comment_count"`
	ShareCount        int              `json:"share_count"`
	ViewCount         int              `json:"view_count"`
	ActiveViewerCount int              `json:"active_viewer_count"`
	RecentReactions   []RecentReaction `json:"recent_reactions"`
	LastUpdated       time.Time        `json:"last_updated"`
}
