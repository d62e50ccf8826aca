package models

// Storage is the persisted snapshot envelope: the durable slice of core
// state that must survive a restart. Live engagement and presence state is
// rebuilt from traffic and is deliberately not part of it.
type Storage struct {
	Version       int                             `json:"version"`
	Notifications map[string][]NotificationRecord `json:"notifications"`
	FeedCursors   map[string]string               `json:"feed_cursors"`
	Pending       []PendingMutation               `json:"pending"`
}

const StorageVersion = 1
