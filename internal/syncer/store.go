package syncer

import (
	"sync"

	json "github.com/goccy/go-json"
)

// WriteResult reports a conditional write. When OK is false the write lost
// the version race and the current authoritative state is returned.
type WriteResult struct {
	OK             bool
	CurrentValue   json.RawMessage
	CurrentVersion int64
}

// VersionedStore is the authoritative durable-store collaborator. The
// Pending→Applied/Conflicted transition is driven entirely by
// WriteIfVersion's result.
type VersionedStore interface {
	Read(resourceID string) (json.RawMessage, int64, error)
	WriteIfVersion(resourceID string, value json.RawMessage, expectedVersion int64) (WriteResult, error)
}

type versioned struct {
	value   json.RawMessage
	version int64
}

// MemStore is an in-memory VersionedStore. It backs single-node
// deployments and the test suite; absent resources read as version 0.
type MemStore struct {
	mu   sync.Mutex
	data map[string]versioned
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]versioned)}
}

func (m *MemStore) Read(resourceID string) (json.RawMessage, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.data[resourceID]
	return v.value, v.version, nil
}

func (m *MemStore) WriteIfVersion(resourceID string, value json.RawMessage, expectedVersion int64) (WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.data[resourceID]
	if cur.version != expectedVersion {
		return WriteResult{OK: false, CurrentValue: cur.value, CurrentVersion: cur.version}, nil
	}
	m.data[resourceID] = versioned{value: value, version: cur.version + 1}
	return WriteResult{OK: true, CurrentValue: value, CurrentVersion: cur.version + 1}, nil
}
