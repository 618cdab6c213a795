package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/repository"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/service"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/supabase"
)

var testRows = map[string]string{
	"events": `[
		{"id":"1","title":"Quran circle","dateTime":"2024-03-10T18:00","isFeatured":false,"category":"Education"},
		{"id":"2","title":"Community iftar","dateTime":"2024-03-15T19:30","isFeatured":true,"category":"Community"}
	]`,
	"social-links": `[
		{"id":"yt","title":"YouTube","isActive":true,"displayOrder":2},
		{"id":"ig","title":"Instagram","isActive":true,"displayOrder":1},
		{"id":"fb","title":"Facebook","isActive":false,"displayOrder":0}
	]`,
	"donation-methods": `[{"id":"cash","title":"Cash","isActive":true,"displayOrder":1}]`,
	"media-categories": `[{"id":"khutbah","name":"Khutbah"}]`,
	"media-items":      `[{"id":"m1","mediaType":"video","categoryId":"khutbah"},{"id":"m2","mediaType":"audio","categoryId":"khutbah"}]`,
	"project-progress": `{"raised":1000,"target":5000}`,
}

// fakeSupabase serves testRows through a PostgREST-like surface.
type fakeSupabase struct {
	mu       sync.Mutex
	hits     int32
	status   int
	delay    time.Duration
	rpcCalls map[string]string
}

func (f *fakeSupabase) fail(status int, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.delay = status, delay
}

func (f *fakeSupabase) rpc(fn string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rpcCalls[fn]
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.hits, 1)
	f.mu.Lock()
	status, delay := f.status, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"JWT expired","code":"PGRST301"}`))
		return
	}
	if fn, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/rpc/"); ok {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.rpcCalls[fn] = string(b)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var keys []string
	filter := r.URL.Query().Get("key")
	switch {
	case strings.HasPrefix(filter, "eq."):
		keys = []string{strings.TrimPrefix(filter, "eq.")}
	case strings.HasPrefix(filter, "in.("):
		keys = strings.Split(strings.TrimSuffix(strings.TrimPrefix(filter, "in.("), ")"), ",")
	default:
		for k := range testRows {
			keys = append(keys, k)
		}
	}
	var rows []string
	for _, k := range keys {
		if v, ok := testRows[k]; ok {
			rows = append(rows, `{"key":"`+k+`","value":`+v+`}`)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("[" + strings.Join(rows, ",") + "]"))
}

type gateway struct {
	router   *mux.Router
	backend  *fakeSupabase
	upstream *httptest.Server
	redis    *miniredis.Miniredis
}

func newGateway(t *testing.T, timeout time.Duration) *gateway {
	t.Helper()
	backend := &fakeSupabase{rpcCalls: map[string]string{}}
	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	prayer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"15/03/2024":{"date":"15/03/2024","fajr_begins":"5:58","isha_jamaah":"20:15"}}`))
	}))
	t.Cleanup(prayer.Close)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/events/42":
			_, _ = w.Write([]byte(`{"id":"42","title":"Jumuah khutbah","dateTime":"2024-03-15T13:30"}`))
		case "/api/donations/stats":
			_, _ = w.Write([]byte(`{"totalRaised":1200,"goalAmount":5000,"recentDonations":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Event not found"}`))
		}
	}))
	t.Cleanup(site.Close)
	siteAPI := httpclient.New(httpclient.Config{BaseURL: site.URL + "/api", Retry: &httpclient.RetryPolicy{}})

	mr := miniredis.RunT(t)
	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := repository.NewResponseCache(rdb, time.Minute, nil)

	db := supabase.New(supabase.Config{
		URL:    upstream.URL,
		APIKey: "anon",
		HTTP:   httpclient.Config{Timeout: timeout, Retry: &httpclient.RetryPolicy{}},
	})
	clock := func() time.Time { return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC) }
	content := service.NewContentService(db, "")
	svc := Services{
		Content:   content,
		Events:    service.NewEventsService(content).WithClock(clock, time.UTC),
		Donations: service.NewDonationService(content),
		Media:     service.NewMediaService(content),
		Project:   service.NewProjectService(content),
		Social:    service.NewSocialService(content),
		Contact:   service.NewContactService(db).WithClock(clock),
		Prayer: service.NewPrayerTimesService(
			httpclient.New(httpclient.Config{Retry: &httpclient.RetryPolicy{}}),
			prayer.URL, cache, time.Hour,
		).WithClock(clock),
		EventsAPI:    service.NewEventsAPI(siteAPI),
		DonationsAPI: service.NewDonationsAPI(siteAPI),
	}

	router := mux.NewRouter()
	NewContentHandler(svc, cache, time.Minute, nil).Register(router)
	return &gateway{router: router, backend: backend, upstream: upstream, redis: mr}
}

type decoded struct {
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Cached  bool            `json:"cached"`
}

func (g *gateway) do(t *testing.T, method, target string, body string) (*httptest.ResponseRecorder, decoded) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	g.router.ServeHTTP(rr, req)

	var resp decoded
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

func TestHandleContent_CachesByKeys(t *testing.T) {
	g := newGateway(t, 0)

	rr, resp := g.do(t, http.MethodGet, "/api/content?keys=social-links,events", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Success", resp.Message)
	assert.False(t, resp.Cached)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	assert.Len(t, rows, 2)

	rr, resp = g.do(t, http.MethodGet, "/api/content?keys=events,social-links,events", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&g.backend.hits))
	assert.True(t, g.redis.Exists("masjid:content:events,social-links"))
}

func TestHandleContent_UnknownKey(t *testing.T) {
	g := newGateway(t, 0)

	rr, resp := g.do(t, http.MethodGet, "/api/content?keys=events,weather", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_KEYS", resp.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "weather")
	assert.Equal(t, int32(0), atomic.LoadInt32(&g.backend.hits))
}

func TestHandleRecords(t *testing.T) {
	g := newGateway(t, 0)

	_, resp := g.do(t, http.MethodGet, "/api/social-links", "")
	assert.JSONEq(t, `[
		{"id":"ig","type":"","link":"","title":"Instagram","isActive":true,"displayOrder":1},
		{"id":"yt","type":"","link":"","title":"YouTube","isActive":true,"displayOrder":2}
	]`, string(resp.Data))

	_, resp = g.do(t, http.MethodGet, "/api/social-links?active=false", "")
	var links []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &links))
	assert.Len(t, links, 3)

	_, resp = g.do(t, http.MethodGet, "/api/events?featured=true", "")
	var events []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Community iftar", events[0]["title"])

	_, resp = g.do(t, http.MethodGet, "/api/media/items?type=VIDEO", "")
	var items []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0]["id"])

	rr, resp := g.do(t, http.MethodGet, "/api/project-progress", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, string(resp.Data), `"raised":1000`)

	rr, _ = g.do(t, http.MethodGet, "/api/donation-methods", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, _ = g.do(t, http.MethodGet, "/api/media/categories", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleEvents_InvalidParams(t *testing.T) {
	g := newGateway(t, 0)

	for _, target := range []string{"/api/events?limit=abc", "/api/events?limit=-1", "/api/events?featured=maybe", "/api/media/items?featured=x", "/api/social-links?active=nope"} {
		rr, resp := g.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "INVALID_PARAM", resp.Code, target)
	}
}

func TestUpstreamErrorMapping(t *testing.T) {
	t.Run("client error passes through", func(t *testing.T) {
		g := newGateway(t, 0)
		g.backend.fail(http.StatusUnauthorized, 0)

		rr, resp := g.do(t, http.MethodGet, "/api/social-links", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "PGRST301", resp.Code)
		assert.Equal(t, "JWT expired", *resp.Error)
	})

	t.Run("server error becomes bad gateway", func(t *testing.T) {
		g := newGateway(t, 0)
		g.backend.fail(http.StatusInternalServerError, 0)

		rr, _ := g.do(t, http.MethodGet, "/api/events", "")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("network failure becomes bad gateway", func(t *testing.T) {
		g := newGateway(t, 0)
		g.upstream.Close()

		rr, resp := g.do(t, http.MethodGet, "/api/media/categories", "")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Equal(t, httpclient.CodeNetwork, resp.Code)
	})

	t.Run("timeout becomes gateway timeout", func(t *testing.T) {
		g := newGateway(t, 50*time.Millisecond)
		g.backend.fail(0, time.Second)

		rr, resp := g.do(t, http.MethodGet, "/api/project-progress", "")
		assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
		assert.Equal(t, httpclient.CodeTimeout, resp.Code)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		g := newGateway(t, 0)
		g.backend.fail(http.StatusInternalServerError, 0)
		g.do(t, http.MethodGet, "/api/media/categories", "")

		g.backend.fail(0, 0)
		rr, resp := g.do(t, http.MethodGet, "/api/media/categories", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, resp.Cached)
	})
}

func TestGatewayStatus(t *testing.T) {
	cases := map[int]int{
		httpclient.StatusNetwork:       http.StatusBadGateway,
		httpclient.StatusTimeout:       http.StatusGatewayTimeout,
		http.StatusNotFound:            http.StatusNotFound,
		http.StatusConflict:            http.StatusConflict,
		http.StatusInternalServerError: http.StatusBadGateway,
		http.StatusServiceUnavailable:  http.StatusBadGateway,
	}
	for upstream, want := range cases {
		assert.Equal(t, want, GatewayStatus(&httpclient.APIError{Status: upstream}), "upstream %d", upstream)
	}
}

func TestHandleContact(t *testing.T) {
	g := newGateway(t, 0)

	rr, resp := g.do(t, http.MethodPost, "/api/contact", `{"name":"Yusuf","email":"yusuf@example.com","message":"Can I volunteer?"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Message sent", resp.Message)
	assert.Contains(t, g.backend.rpc("add_contact_message"), `"dateTime":"2024-03-15T08:00"`)

	rr, resp = g.do(t, http.MethodPost, "/api/contact", `{"name":"Yusuf","email":"not-an-email","message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)

	rr, resp = g.do(t, http.MethodPost, "/api/contact", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_BODY", resp.Code)
}

func TestHandleSubscribe(t *testing.T) {
	g := newGateway(t, 0)

	rr, _ := g.do(t, http.MethodPost, "/api/subscribe", `{"name":"Maryam","email":"maryam@example.com","subscriptionTypes":["events","newsletter"]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, g.backend.rpc("add_subscriber"), `"subscriptionTypes":["events","newsletter"]`)

	rr, resp := g.do(t, http.MethodPost, "/api/subscribe", `{"name":"Maryam","email":"maryam@example.com","subscriptionTypes":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
}

func TestHandlePrayerTimesToday(t *testing.T) {
	g := newGateway(t, 0)

	rr, resp := g.do(t, http.MethodGet, "/api/prayer-times/today", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, string(resp.Data), `"fajr_begins":"5:58"`)
	assert.True(t, g.redis.Exists("masjid:prayer-times:2024-03"))
}

func TestHandlePrayerTimesToday_Missing(t *testing.T) {
	g := newGateway(t, 0)
	require.NoError(t, g.redis.Set("masjid:prayer-times:2024-03", `{"01/03/2024":{"date":"01/03/2024"}}`))

	rr, resp := g.do(t, http.MethodGet, "/api/prayer-times/today", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestRouting(t *testing.T) {
	g := newGateway(t, 0)

	rr, resp := g.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", resp.Message)

	rr, _ = g.do(t, http.MethodDelete, "/api/events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr, _ = g.do(t, http.MethodGet, "/api/weather", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = g.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestHandleSiteAPI(t *testing.T) {
	g := newGateway(t, time.Second)

	rr, resp := g.do(t, http.MethodGet, "/api/events/42", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, string(resp.Data), `"title":"Jumuah khutbah"`)
	assert.True(t, g.redis.Exists("masjid:events:id:42"))

	rr, resp = g.do(t, http.MethodGet, "/api/events/7", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Event not found", *resp.Error)

	rr, resp = g.do(t, http.MethodGet, "/api/donations/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, string(resp.Data), `"totalRaised":1200`)
}

func TestHandleSiteAPI_NotMountedWithoutClient(t *testing.T) {
	router := mux.NewRouter()
	NewContentHandler(Services{}, nil, time.Minute, nil).Register(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/donations/stats", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
