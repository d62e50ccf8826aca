package models

import "time"

type ActivityKind string

const (
	ActivityTyping  ActivityKind = "typing"
	ActivityViewing ActivityKind = "viewing"
	ActivityOnline  ActivityKind = "online"
)

// ActivityRecord is the live state of one (user, kind, target) activity.
// Refreshed on every ping; invalid once now passes ExpiresAt. No read path
// may hand out an expired record as live.
type ActivityRecord struct {
	UserID    string            `json:"user_id"`
	Kind      ActivityKind      `json:"kind"`
	TargetID  string            `json:"target_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Live reports whether the record is still valid at the given instant.
func (a ActivityRecord) Live(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}
