package engagement

import (
	"fmt"
	"rsd/internal/channel"
	"rsd/internal/models"
	"rsd/internal/presence"
	"rsd/internal/providers"
	"rsd/internal/structures"
	"sync"
	"time"

	"github.com/coocood/freecache"
)

// sessionCacheSize bounds the view-session window cache. Entries are tiny
// (one key per user×post per window); 16MB holds millions of sessions.
const sessionCacheSize = 16 * 1024 * 1024

type postState struct {
	mu       sync.Mutex
	reactors map[string]models.ReactionKind
	recent   []models.RecentReaction
	comments int
	shares   int
	views    int
}

// Aggregator owns the authoritative live engagement counters per post.
// All mutations for one post run under that post's lock; posts never
// contend with each other. Counter mutations are best-effort toward the
// caller: once identifiers validate, they cannot fail.
type Aggregator struct {
	mu    sync.RWMutex
	posts map[string]*postState

	broker   *channel.Broker
	presence *presence.Tracker
	sessions *freecache.Cache
	conf     structures.EngagementConfig
	logger   providers.Logger

	now func() time.Time
}

func NewAggregator(conf *structures.Config, broker *channel.Broker, tracker *presence.Tracker, logger providers.Logger) *Aggregator {
	return &Aggregator{
		posts:    make(map[string]*postState),
		broker:   broker,
		presence: tracker,
		sessions: freecache.NewCache(sessionCacheSize),
		conf:     conf.Engagement,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *Aggregator) post(postID string) *postState {
	a.mu.RLock()
	ps, ok := a.posts[postID]
	a.mu.RUnlock()
	if ok {
		return ps
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ps, ok = a.posts[postID]; ok {
		return ps
	}
	ps = &postState{reactors: make(map[string]models.ReactionKind)}
	a.posts[postID] = ps
	return ps
}

// ApplyReaction upserts the user's reaction. A repeat of the identical
// (user, kind) pair is a no-op, so at-least-once producers can retry
// freely. A different kind from the same user replaces the previous entry;
// the user is never counted twice.
func (a *Aggregator) ApplyReaction(postID, userID string, kind models.ReactionKind) error {
	if err := checkPostUser(postID, userID); err != nil {
		return err
	}
	if kind == "" {
		return fmt.Errorf("reaction kind is empty: %w", models.ErrInvalidArgument)
	}

	ps := a.post(postID)
	ps.mu.Lock()
	if prev, ok := ps.reactors[userID]; ok && prev == kind {
		ps.mu.Unlock()
		return nil
	}
	ps.reactors[userID] = kind

	ps.dropRecent(userID)
	ps.recent = append([]models.RecentReaction{{
		UserID:    userID,
		Kind:      kind,
		Timestamp: a.now(),
	}}, ps.recent...)
	if len(ps.recent) > a.conf.RecentReactionsCap {
		ps.recent = ps.recent[:a.conf.RecentReactionsCap]
	}

	a.publishLocked(postID, ps)
	ps.mu.Unlock()
	return nil
}

// RemoveReaction removes the user's entry. Absence is not an error.
func (a *Aggregator) RemoveReaction(postID, userID string) error {
	if err := checkPostUser(postID, userID); err != nil {
		return err
	}

	ps := a.post(postID)
	ps.mu.Lock()
	if _, ok := ps.reactors[userID]; !ok {
		ps.mu.Unlock()
		return nil
	}
	delete(ps.reactors, userID)
	ps.dropRecent(userID)

	a.publishLocked(postID, ps)
	ps.mu.Unlock()
	return nil
}

// IncrementView counts a view at most once per (user, post) per rolling
// view-session window, so refresh spam does not inflate the counter.
func (a *Aggregator) IncrementView(postID, userID string) error {
	if err := checkPostUser(postID, userID); err != nil {
		return err
	}

	sessionKey := []byte("v:" + postID + ":" + userID)
	if _, err := a.sessions.Get(sessionKey); err == nil {
		return nil
	}
	_ = a.sessions.Set(sessionKey, nil, int(a.conf.ViewSessionWindow.Seconds()))

	ps := a.post(postID)
	ps.mu.Lock()
	ps.views++
	a.publishLocked(postID, ps)
	ps.mu.Unlock()
	return nil
}

// ApplyCommentDelta adjusts the comment counter, clamped at zero.
func (a *Aggregator) ApplyCommentDelta(postID string, delta int) error {
	return a.applyCounter(postID, delta, func(ps *postState, d int) {
		ps.comments = clamp(ps.comments + d)
	})
}

// ApplyShareDelta adjusts the share counter, clamped at zero.
func (a *Aggregator) ApplyShareDelta(postID string, delta int) error {
	return a.applyCounter(postID, delta, func(ps *postState, d int) {
		ps.shares = clamp(ps.shares + d)
	})
}

func (a *Aggregator) applyCounter(postID string, delta int, apply func(*postState, int)) error {
	if err := models.CheckID("postId", postID); err != nil {
		return err
	}

	ps := a.post(postID)
	ps.mu.Lock()
	apply(ps, delta)
	a.publishLocked(postID, ps)
	ps.mu.Unlock()
	return nil
}

// Snapshot returns the post's current read-only engagement view.
func (a *Aggregator) Snapshot(postID string) (models.EngagementSnapshot, error) {
	if err := models.CheckID("postId", postID); err != nil {
		return models.EngagementSnapshot{}, err
	}

	ps := a.post(postID)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return a.snapshotLocked(postID, ps), nil
}

// Observe returns the current snapshot plus a live stream of every
// subsequent change. Subscribing happens under the post's lock, so the
// returned snapshot is never older than the first streamed delta.
func (a *Aggregator) Observe(postID string) (models.EngagementSnapshot, *channel.Subscription, error) {
	if err := models.CheckID("postId", postID); err != nil {
		return models.EngagementSnapshot{}, nil, err
	}

	ps := a.post(postID)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	sub := a.broker.Subscribe("engagement:" + postID)
	return a.snapshotLocked(postID, ps), sub, nil
}

func (a *Aggregator) snapshotLocked(postID string, ps *postState) models.EngagementSnapshot {
	recent := make([]models.RecentReaction, len(ps.recent))
	copy(recent, ps.recent)
	return models.EngagementSnapshot{
		PostID:            postID,
		LikeCount:         len(ps.reactors),
		CommentCount:      ps.comments,
		ShareCount:        ps.shares,
		ViewCount:         ps.views,
		ActiveViewerCount: len(a.presence.ViewersOf(postID)),
		RecentReactions:   recent,
		LastUpdated:       a.now(),
	}
}

func (a *Aggregator) publishLocked(postID string, ps *postState) {
	a.broker.Publish("engagement:"+postID, models.EngagementDelta{
		Snapshot: a.snapshotLocked(postID, ps),
	})
}

func (ps *postState) dropRecent(userID string) {
	for i, r := range ps.recent {
		if r.UserID == userID {
			ps.recent = append(ps.recent[:i], ps.recent[i+1:]...)
			return
		}
	}
}

func checkPostUser(postID, userID string) error {
	if err := models.CheckID("postId", postID); err != nil {
		return err
	}
	return models.CheckID("userId", userID)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
