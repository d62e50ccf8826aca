package internal

import (
	"net/http"
	"net/http/httptest"
	"rsd/internal/channel"
	"rsd/internal/controllers"
	"rsd/internal/engagement"
	"rsd/internal/feed"
	"rsd/internal/notify"
	"rsd/internal/persist"
	"rsd/internal/presence"
	"rsd/internal/syncer"
	"rsd/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeTestCache struct{}

func (m *routeTestCache) Get(_ string) ([]byte, bool)      { return nil, false }
func (m *routeTestCache) Set(_ string, _ []byte)           {}
func (m *routeTestCache) SetTTL(_ string, _ []byte, _ int) {}

func newRouteTestController(t *testing.T) *controllers.ApiController {
	t.Helper()
	conf := testutil.NewTestConfig()
	logger := &testutil.MockLogger{}
	metrics := &testutil.MockMetrics{}

	broker := channel.NewBroker(conf, logger, metrics)
	tracker := presence.NewTracker(conf, broker, logger)
	aggregator := engagement.NewAggregator(conf, broker, tracker, logger)
	fanout := feed.NewFanout(conf, broker, logger)

	compressor, err := persist.NewZstdCompressor()
	require.NoError(t, err)
	t.Cleanup(compressor.Close)

	store := notify.NewStore(conf.Notify.MaxPerUser)
	archive := notify.NewArchive(t.TempDir(), conf.Notify.ArchiveTTL, compressor, logger)
	dispatcher := notify.NewDispatcher(store, archive, broker, &testutil.MockPushTransport{}, logger, metrics)

	sm := syncer.NewManager(conf, syncer.NewMemStore(), logger, metrics)

	return controllers.NewApiController(logger, broker, aggregator, tracker, fanout, dispatcher, sm, &routeTestCache{})
}

func TestInitRoutes_RegistersAllUrls(t *testing.T) {
	ac := newRouteTestController(t)

	router := InitRoutes(ac, testutil.NewTestConfig())
	routes := router.GetRoutes()

	urls := make([]string, len(routes))
	for i, r := range routes {
		urls[i] = r.Url
	}

	expected := []string{
		"/events",
		"/reactions",
		"/views",
		"/engagement",
		"/activity",
		"/presence",
		"/viewers",
		"/feed",
		"/feed/read",
		"/notifications",
		"/notifications/read",
		"/notifications/read-all",
		"/sync/mutations",
		"/sync/resolve",
		"/sync/status",
		"/sync/now",
	}
	require.Len(t, routes, len(expected))
	for _, url := range expected {
		assert.Contains(t, urls, url)
	}
}

func TestInitRoutes_MethodEnforcement(t *testing.T) {
	ac := newRouteTestController(t)

	router := InitRoutes(ac, testutil.NewTestConfig())

	mux := http.NewServeMux()
	for _, r := range router.GetRoutes() {
		mux.Handle(r.Url, r.Handler)
	}

	// GET /engagement with POST should fail
	req := httptest.NewRequest(http.MethodPost, "/engagement", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	// POST /reactions with GET should fail
	req = httptest.NewRequest(http.MethodGet, "/reactions", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestInitRoutes_SharedUrlDispatchesByMethod(t *testing.T) {
	ac := newRouteTestController(t)

	router := InitRoutes(ac, testutil.NewTestConfig())

	mux := http.NewServeMux()
	for _, r := range router.GetRoutes() {
		mux.Handle(r.Url, r.Handler)
	}

	// GET /feed without the user param is a 400, not a 405: the url
	// carries both GET and POST behind one handler.
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPut, "/feed", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
