package channel

import (
	"rsd/internal/models"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"strings"
	"sync"
	"time"
)

// Broker is the per-entity ordered multi-subscriber delta stream. Each
// entity key owns an independent log guarded by its own lock: publishes to
// one key are serialized, different keys proceed in parallel. Delivery to a
// subscriber follows publish order for that key; nothing is guaranteed
// across keys.
type Broker struct {
	mu      sync.RWMutex
	streams map[string]*stream
	taps    []*Subscription
	retain  int
	depth   int
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	nextID  uint64
}

type stream struct {
	mu      sync.Mutex
	key     string
	nextSeq uint64
	base    uint64
	log     []models.Delta
	subs    map[uint64]*Subscription
}

func NewBroker(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) *Broker {
	return &Broker{
		streams: make(map[string]*stream),
		retain:  conf.Channel.RetainPerKey,
		depth:   conf.Channel.SubscriberDepth,
		logger:  logger,
		metrics: metrics,
	}
}

// EntityType extracts the type prefix of an entity key ("post:42" → "post").
func EntityType(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

func (b *Broker) getStream(key string) *stream {
	b.mu.RLock()
	st, ok := b.streams[key]
	b.mu.RUnlock()
	if ok {
		return st
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok = b.streams[key]; ok {
		return st
	}
	st = &stream{
		key:     key,
		nextSeq: 1,
		base:    1,
		subs:    make(map[uint64]*Subscription),
	}
	b.streams[key] = st
	return st
}

// Publish appends the payload to the entity's log and wakes every current
// subscriber of that key plus the matching type-prefix taps. Never blocks
// on subscriber consumption; a slow subscriber loses its oldest buffered
// deltas and is marked gapped.
func (b *Broker) Publish(entityKey string, payload models.DeltaPayload) models.Delta {
	st := b.getStream(entityKey)

	b.mu.RLock()
	var taps []*Subscription
	for _, tap := range b.taps {
		if strings.HasPrefix(entityKey, tap.prefix) {
			taps = append(taps, tap)
		}
	}
	b.mu.RUnlock()

	st.mu.Lock()
	delta := models.Delta{
		Seq:       st.nextSeq,
		EntityKey: entityKey,
		At:        time.Now(),
		Payload:   payload,
	}
	st.nextSeq++

	st.log = append(st.log, delta)
	if b.retain > 0 && len(st.log) > b.retain {
		drop := len(st.log) - b.retain
		st.log = st.log[drop:]
		st.base += uint64(drop)
	}

	for _, sub := range st.subs {
		b.offer(sub, delta)
	}
	// tap offers ride the stream lock so a tap sees each key's deltas
	// in seq order even with concurrent publishers
	for _, tap := range taps {
		b.offer(tap, delta)
	}
	st.mu.Unlock()

	b.metrics.IncDeltasPublished(EntityType(entityKey))
	return delta
}

// offer is the backpressure policy: on a full buffer the oldest queued
// delta is dropped to make room and the stream is marked gapped, so the
// subscriber knows to request a fresh snapshot instead of silently
// desynchronizing.
func (b *Broker) offer(sub *Subscription, delta models.Delta) {
	select {
	case sub.ch <- delta:
		return
	default:
	}

	select {
	case <-sub.ch:
	default:
	}
	sub.gapped.Store(true)
	b.metrics.IncSubscriberGaps()

	select {
	case sub.ch <- delta:
	default:
		// racing consumer refilled the buffer; the gap flag already
		// forces a resync, dropping this delta loses nothing extra
	}
}

// Subscribe returns a live cursor over future deltas of the key. History is
// not replayed.
func (b *Broker) Subscribe(entityKey string) *Subscription {
	st := b.getStream(entityKey)
	sub := b.newSubscription(entityKey, "")

	st.mu.Lock()
	st.subs[sub.id] = sub
	st.mu.Unlock()

	b.metrics.AddActiveSubscriptions(1)
	return sub
}

// SubscribeFrom replays retained deltas with seq >= fromSeq before going
// live. A fromSeq older than the retained window marks the subscription
// gapped immediately and replays what is still held.
func (b *Broker) SubscribeFrom(entityKey string, fromSeq uint64) *Subscription {
	st := b.getStream(entityKey)
	sub := b.newSubscription(entityKey, "")

	st.mu.Lock()
	if fromSeq < st.base {
		sub.gapped.Store(true)
		b.metrics.IncSubscriberGaps()
		fromSeq = st.base
	}
	for _, delta := range st.log {
		if delta.Seq >= fromSeq {
			b.offer(sub, delta)
		}
	}
	st.subs[sub.id] = sub
	st.mu.Unlock()

	b.metrics.AddActiveSubscriptions(1)
	return sub
}

// SubscribeTap delivers deltas for every entity key with the given prefix.
// Per-key order is preserved; interleaving across keys is arbitrary. This is
// how consumer components take their slice of the channel.
func (b *Broker) SubscribeTap(prefix string) *Subscription {
	sub := b.newSubscription("", prefix)

	b.mu.Lock()
	b.taps = append(b.taps, sub)
	b.mu.Unlock()

	b.metrics.AddActiveSubscriptions(1)
	return sub
}

func (b *Broker) newSubscription(key, prefix string) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	sub := &Subscription{
		id:     id,
		key:    key,
		prefix: prefix,
		ch:     make(chan models.Delta, b.depth),
	}
	sub.cancel = func() { b.remove(sub) }
	return sub
}

func (b *Broker) remove(sub *Subscription) {
	if sub.prefix != "" {
		b.mu.Lock()
		for i, tap := range b.taps {
			if tap.id == sub.id {
				b.taps = append(b.taps[:i], b.taps[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	} else {
		b.mu.RLock()
		st, ok := b.streams[sub.key]
		b.mu.RUnlock()
		if ok {
			st.mu.Lock()
			delete(st.subs, sub.id)
			st.mu.Unlock()
		}
	}
	b.metrics.AddActiveSubscriptions(-1)
}

// Stats reports stream and subscriber counts for health reporting.
func (b *Broker) Stats() (streams, subscribers int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	streams = len(b.streams)
	subscribers = len(b.taps)
	for _, st := range b.streams {
		st.mu.Lock()
		subscribers += len(st.subs)
		st.mu.Unlock()
	}
	return streams, subscribers
}
