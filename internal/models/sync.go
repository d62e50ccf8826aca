package models

import (
	"time"

	json "github.com/goccy/go-json"
)

// PendingMutation is an unconfirmed local write. It exists from submission
// until the sync manager resolves it into applied (discarded) or a Conflict.
type PendingMutation struct {
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	LocalValue   json.RawMessage `json:"local_value"`
	BaseVersion  int64           `json:"base_version"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	Attempts     int             `json:"attempts"`
	NextAttempt  time.Time       `json:"next_attempt"`
}

// Conflict records a divergence between a locally submitted value and the
// authoritative remote value. A resource carries at most one unresolved
// Conflict; a newer detection supersedes the older record.
type Conflict struct {
	ID            string          `json:"id"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	LocalValue    json.RawMessage `json:"local_value"`
	RemoteValue   json.RawMessage `json:"remote_value"`
	BaseVersion   int64           `json:"base_version"`
	RemoteVersion int64           `json:"remote_version"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// Resolution is the closed choice applied to a Conflict: exactly one of
// keep-local, keep-remote, or a caller-supplied merged value.
type Resolution interface {
	isResolution()
}

type KeepLocal struct{}

func (KeepLocal) isResolution() {}

type KeepRemote struct{}

func (KeepRemote) isResolution() {}

type Merged struct {
	Value json.RawMessage
}

func (Merged) isResolution() {}

// SyncStatus is recomputed on read over outstanding work; it is never
// separately persisted.
type SyncStatus struct {
	IsOnline     bool      `json:"is_online"`
	LastSyncTime time.Time `json:"last_sync_time"`
	PendingCount int       `json:"pending_count"`
	FailedCount  int       `json:"failed_count"`
}
