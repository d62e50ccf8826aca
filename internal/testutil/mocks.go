package testutil

import (
	"rsd/internal/models"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// CountByLevel returns how many entries were recorded at the given level.
func (m *MockLogger) CountByLevel(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu                  sync.Mutex
	RequestsTotal       int
	CacheHits           int
	CacheMisses         int
	DeltasPublished     map[string]int
	SubscriberGaps      int
	ActiveSubscriptions int
	PendingMutations    int
	Conflicts           int
	NotificationsSent   int
	PersistenceSamples  int
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestsTotal++
}

func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncDeltasPublished(entityType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeltasPublished == nil {
		m.DeltasPublished = make(map[string]int)
	}
	m.DeltasPublished[entityType]++
}

func (m *MockMetrics) IncSubscriberGaps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscriberGaps++
}

func (m *MockMetrics) AddActiveSubscriptions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveSubscriptions += n
}

func (m *MockMetrics) SetPendingMutations(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingMutations = count
}

func (m *MockMetrics) SetConflicts(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Conflicts = count
}

func (m *MockMetrics) IncNotificationsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotificationsSent++
}

func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistenceSamples++
}

// MockPushTransport records pushed notifications and can be told to fail.
type MockPushTransport struct {
	mu     sync.Mutex
	Pushed []models.NotificationRecord
	Err    error
}

func (m *MockPushTransport) Push(rec models.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Pushed = append(m.Pushed, rec)
	return nil
}

func (m *MockPushTransport) PushedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Pushed)
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// NewTestConfig returns a config with defaults applied, suitable for
// constructing components directly in tests.
func NewTestConfig() *structures.Config {
	conf := &structures.Config{}
	conf.ApplyDefaults()
	return conf
}
