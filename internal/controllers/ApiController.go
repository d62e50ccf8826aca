package controllers

import (
	"errors"
	"net/http"
	"rsd/internal/channel"
	"rsd/internal/engagement"
	"rsd/internal/feed"
	"rsd/internal/models"
	"rsd/internal/notify"
	"rsd/internal/presence"
	"rsd/internal/providers"
	"rsd/internal/syncer"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger     providers.Logger
	broker     *channel.Broker
	aggregator *engagement.Aggregator
	tracker    *presence.Tracker
	fanout     *feed.Fanout
	dispatcher *notify.Dispatcher
	syncer     *syncer.Manager
	cache      providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, broker *channel.Broker, aggregator *engagement.Aggregator, tracker *presence.Tracker, fanout *feed.Fanout, dispatcher *notify.Dispatcher, sm *syncer.Manager, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:     logger,
		broker:     broker,
		aggregator: aggregator,
		tracker:    tracker,
		fanout:     fanout,
		dispatcher: dispatcher,
		syncer:     sm,
		cache:      cache,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeJson(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		writeError(w, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// --- engagement ---

type reactionRequest struct {
	PostID string              `json:"post_id"`
	UserID string              `json:"user_id"`
	Kind   models.ReactionKind `json:"kind"`
}

func (ac *ApiController) PostReaction(w http.ResponseWriter, r *http.Request) {
	var payload reactionRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.aggregator.ApplyReaction(payload.PostID, payload.UserID, payload.Kind); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (ac *ApiController) DeleteReaction(w http.ResponseWriter, r *http.Request) {
	var payload reactionRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.aggregator.RemoveReaction(payload.PostID, payload.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) PostView(w http.ResponseWriter, r *http.Request) {
	var payload reactionRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.aggregator.IncrementView(payload.PostID, payload.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (ac *ApiController) GetEngagement(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post")
	ac.serveFromCacheOrCompute(w, "eng:"+postID, func() (any, error) {
		return ac.aggregator.Snapshot(postID)
	})
}

// --- presence ---

type activityRequest struct {
	UserID   string              `json:"user_id"`
	Kind     models.ActivityKind `json:"kind"`
	TargetID string              `json:"target_id,omitempty"`
	Metadata map[string]string   `json:"metadata,omitempty"`
	Stop     bool                `json:"stop,omitempty"`
}

func (ac *ApiController) PostActivity(w http.ResponseWriter, r *http.Request) {
	var payload activityRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	var err error
	switch {
	case payload.Stop && payload.Kind == models.ActivityOnline:
		err = ac.tracker.SetOffline(payload.UserID)
	case payload.Stop:
		err = ac.tracker.Clear(payload.UserID, payload.Kind)
	case payload.Kind == models.ActivityOnline:
		err = ac.tracker.SetOnline(payload.UserID)
	default:
		err = ac.tracker.RecordActivity(payload.UserID, payload.Kind, payload.TargetID, payload.Metadata)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ac *ApiController) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if err := models.CheckID("user", userID); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, ac.tracker.ActiveFor(userID))
}

func (ac *ApiController) GetViewers(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post")
	if err := models.CheckID("post", postID); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, ac.tracker.ViewersOf(postID))
}

// --- feed ---

type feedUpdateWire struct {
	ID          string            `json:"id,omitempty"`
	OwnerUserID string            `json:"owner_user_id"`
	Kind        models.UpdateKind `json:"kind"`
	Payload     json.RawMessage   `json:"payload"`
	Timestamp   time.Time         `json:"timestamp,omitempty"`
	Priority    int               `json:"priority"`
}

func decodeFeedPayload(kind models.UpdateKind, raw json.RawMessage) (models.FeedPayload, error) {
	switch kind {
	case models.UpdateNewPost:
		var p models.NewPostPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case models.UpdatePostEngagement:
		var p models.PostEngagementPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case models.UpdatePostRemoved:
		var p models.PostRemovedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, models.ErrInvalidArgument
	}
}

func (wire feedUpdateWire) toModel() (models.FeedUpdate, error) {
	payload, err := decodeFeedPayload(wire.Kind, wire.Payload)
	if err != nil {
		return models.FeedUpdate{}, err
	}
	return models.FeedUpdate{
		ID:          wire.ID,
		OwnerUserID: wire.OwnerUserID,
		Payload:     payload,
		Timestamp:   wire.Timestamp,
		Priority:    wire.Priority,
	}, nil
}

func toWire(u models.FeedUpdate) feedUpdateWire {
	raw, _ := json.Marshal(u.Payload)
	return feedUpdateWire{
		ID:          u.ID,
		OwnerUserID: u.OwnerUserID,
		Kind:        u.Kind(),
		Payload:     raw,
		Timestamp:   u.Timestamp,
		Priority:    u.Priority,
	}
}

func (ac *ApiController) PublishFeedUpdate(w http.ResponseWriter, r *http.Request) {
	var wire feedUpdateWire
	if !decodeBody(w, r, &wire) {
		return
	}
	update, err := wire.toModel()
	if err != nil {
		writeError(w, err)
		return
	}
	stored, err := ac.fanout.Publish(update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusCreated, map[string]string{"id": stored.ID})
}

func (ac *ApiController) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	updates, cursor, err := ac.fanout.List(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	// trailing updates stay on the server; the client pages by re-requesting
	if limit := cast.ToInt(r.URL.Query().Get("limit")); limit > 0 && len(updates) > limit {
		updates = updates[:limit]
	}
	wires := make([]feedUpdateWire, 0, len(updates))
	for _, u := range updates {
		wires = append(wires, toWire(u))
	}
	writeJson(w, http.StatusOK, map[string]any{"updates": wires, "cursor": cursor})
}

type feedReadRequest struct {
	UserID   string `json:"user_id"`
	UpdateID string `json:"update_id"`
}

func (ac *ApiController) MarkFeedRead(w http.ResponseWriter, r *http.Request) {
	var payload feedReadRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.fanout.MarkRead(payload.UserID, payload.UpdateID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- notifications ---

func (ac *ApiController) SendNotification(w http.ResponseWriter, r *http.Request) {
	var rec models.NotificationRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	stored, err := ac.dispatcher.Send(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusCreated, map[string]string{"id": stored.ID})
}

func (ac *ApiController) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	records, unread, err := ac.dispatcher.List(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, map[string]any{"notifications": records, "unread_count": unread})
}

type notificationRequest struct {
	UserID string `json:"user_id"`
	ID     string `json:"id,omitempty"`
}

func (ac *ApiController) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	var payload notificationRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.dispatcher.MarkRead(payload.UserID, payload.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var payload notificationRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.dispatcher.MarkAllRead(payload.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	var payload notificationRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := ac.dispatcher.Delete(payload.UserID, payload.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- sync ---

type mutationRequest struct {
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	LocalValue   json.RawMessage `json:"local_value"`
	BaseVersion  int64           `json:"base_version"`
}

func (ac *ApiController) SubmitMutation(w http.ResponseWriter, r *http.Request) {
	var payload mutationRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	err := ac.syncer.Submit(payload.ResourceType, payload.ResourceID, payload.LocalValue, payload.BaseVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type resolveRequest struct {
	ConflictID  string          `json:"conflict_id"`
	Resolution  string          `json:"resolution"`
	MergedValue json.RawMessage `json:"merged_value,omitempty"`
}

func (rr resolveRequest) toResolution() (models.Resolution, error) {
	switch rr.Resolution {
	case "keep_local":
		if len(rr.MergedValue) > 0 {
			return nil, models.ErrInvalidArgument
		}
		return models.KeepLocal{}, nil
	case "keep_remote":
		if len(rr.MergedValue) > 0 {
			return nil, models.ErrInvalidArgument
		}
		return models.KeepRemote{}, nil
	case "merged":
		return models.Merged{Value: rr.MergedValue}, nil
	default:
		return nil, models.ErrInvalidArgument
	}
}

func (ac *ApiController) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var payload resolveRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	resolution, err := payload.toResolution()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ac.syncer.Resolve(payload.ConflictID, resolution); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]any{
		"status":    ac.syncer.Status(),
		"conflicts": ac.syncer.Conflicts(),
	})
}

type syncNowRequest struct {
	Online *bool `json:"online,omitempty"`
}

func (ac *ApiController) SyncNow(w http.ResponseWriter, r *http.Request) {
	var payload syncNowRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &payload) {
			return
		}
	}
	if payload.Online != nil {
		ac.syncer.SetOnline(*payload.Online)
	}
	ac.syncer.SyncNow()
	w.WriteHeader(http.StatusAccepted)
}

// --- raw producer events ---

type eventRequest struct {
	EntityKey string          `json:"entity_key"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

func decodeDeltaPayload(typ string, raw json.RawMessage) (models.DeltaPayload, error) {
	switch typ {
	case "reaction":
		var p models.ReactionDelta
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "reaction_removed":
		var p models.ReactionRemovedDelta
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "view":
		var p models.ViewDelta
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "comment_count":
		var p models.CommentCountDelta
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "share_count":
		var p models.ShareCountDelta
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "activity":
		var p models.ActivityDelta
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "feed_publish":
		var wire feedUpdateWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		update, err := wire.toModel()
		if err != nil {
			return nil, err
		}
		return models.FeedPublishDelta{Update: update}, nil
	default:
		return nil, models.ErrInvalidArgument
	}
}

// ReceiveEvent accepts a raw producer delta and publishes it onto the event
// channel. The ingest service picks it up from the matching type tap, so
// this path and the typed endpoints converge on the same component ops.
func (ac *ApiController) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	var payload eventRequest
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := models.CheckID("entity_key", payload.EntityKey); err != nil {
		writeError(w, err)
		return
	}
	delta, err := decodeDeltaPayload(payload.Type, payload.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	published := ac.broker.Publish(payload.EntityKey, delta)
	writeJson(w, http.StatusAccepted, map[string]uint64{"seq": published.Seq})
}
