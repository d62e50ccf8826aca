package engagement

import (
	"rsd/internal/channel"
	"rsd/internal/models"
	"sync"
	"time"
)

const multiEmitDepth = 8

// MultiSub observes a set of posts at once. Bursts of changes inside the
// coalescing window collapse into one emission carrying the latest
// snapshot of every changed post, bounding downstream update volume.
type MultiSub struct {
	out  chan map[string]models.EngagementSnapshot
	subs []*channel.Subscription
	stop chan struct{}
	once sync.Once

	agg    *Aggregator
	window time.Duration

	mu    sync.Mutex
	dirty map[string]struct{}
	timer *time.Timer
}

// ObserveMany emits the current snapshots of all requested posts
// immediately, then one coalesced emission per window of changes.
func (a *Aggregator) ObserveMany(postIDs []string) (*MultiSub, error) {
	for _, id := range postIDs {
		if err := models.CheckID("postId", id); err != nil {
			return nil, err
		}
	}

	ms := &MultiSub{
		out:    make(chan map[string]models.EngagementSnapshot, multiEmitDepth),
		stop:   make(chan struct{}),
		agg:    a,
		window: a.conf.CoalesceWindow,
		dirty:  make(map[string]struct{}),
	}

	initial := make(map[string]models.EngagementSnapshot, len(postIDs))
	for _, id := range postIDs {
		snap, sub, err := a.Observe(id)
		if err != nil {
			ms.Cancel()
			return nil, err
		}
		ms.subs = append(ms.subs, sub)
		initial[id] = snap
		go ms.forward(id, sub)
	}
	ms.out <- initial

	return ms, nil
}

func (ms *MultiSub) C() <-chan map[string]models.EngagementSnapshot {
	return ms.out
}

// Cancel stops all underlying subscriptions. Emissions already buffered
// are not retracted.
func (ms *MultiSub) Cancel() {
	ms.once.Do(func() {
		close(ms.stop)
		for _, sub := range ms.subs {
			sub.Cancel()
		}
		ms.mu.Lock()
		if ms.timer != nil {
			ms.timer.Stop()
			ms.timer = nil
		}
		ms.mu.Unlock()
	})
}

func (ms *MultiSub) forward(postID string, sub *channel.Subscription) {
	for {
		select {
		case <-ms.stop:
			return
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			ms.markDirty(postID)
		}
	}
}

func (ms *MultiSub) markDirty(postID string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.dirty[postID] = struct{}{}
	if ms.timer == nil {
		ms.timer = time.AfterFunc(ms.window, ms.flush)
	}
}

// flush drains the dirty set and emits the current snapshot of every
// changed post. Snapshots are read at flush time, so rapid successive
// changes within the window merge naturally.
func (ms *MultiSub) flush() {
	ms.mu.Lock()
	ids := ms.dirty
	ms.dirty = make(map[string]struct{})
	ms.timer = nil
	ms.mu.Unlock()

	select {
	case <-ms.stop:
		return
	default:
	}

	batch := make(map[string]models.EngagementSnapshot, len(ids))
	for id := range ids {
		snap, err := ms.agg.Snapshot(id)
		if err != nil {
			continue
		}
		batch[id] = snap
	}
	if len(batch) == 0 {
		return
	}

	select {
	case ms.out <- batch:
	default:
		// consumer is not draining; put the ids back and try again on
		// the next window instead of blocking the timer goroutine
		ms.mu.Lock()
		for id := range ids {
			ms.dirty[id] = struct{}{}
		}
		if ms.timer == nil {
			ms.timer = time.AfterFunc(ms.window, ms.flush)
		}
		ms.mu.Unlock()
	}
}
