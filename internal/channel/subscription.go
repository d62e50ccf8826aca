package channel

import (
	"rsd/internal/models"
	"sync"

	"go.uber.org/atomic"
)

// Subscription is one subscriber's live cursor. Receive from C; check
// Gapped after draining to learn whether deltas were dropped under
// backpressure, then resynchronize from a snapshot and ResetGap.
type Subscription struct {
	id     uint64
	key    string
	prefix string
	ch     chan models.Delta
	gapped atomic.Bool
	once   sync.Once
	cancel func()
}

func (s *Subscription) C() <-chan models.Delta {
	return s.ch
}

// Gapped reports whether this subscriber lost deltas since the last
// ResetGap. A gapped stream must resync via a fresh snapshot.
func (s *Subscription) Gapped() bool {
	return s.gapped.Load()
}

func (s *Subscription) ResetGap() {
	s.gapped.Store(false)
}

// Cancel stops delivery immediately and releases the subscriber slot.
// Idempotent. Deltas already buffered are not retracted; the channel is
// left open for the consumer to drain.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}
