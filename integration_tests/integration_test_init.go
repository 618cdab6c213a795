package integrationtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/config"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/handler"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/metrics"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/middleware"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/repository"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/service"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/supabase"
)

var (
	miniRedisMock *miniredis.Miniredis
)

// createMockRedisServer starts miniredis on the configured test port, falling
// back to a random port when it is taken.
func createMockRedisServer() {
	miniRedisMock = miniredis.NewMiniRedis()
	if err := miniRedisMock.StartAddr(config.GetTestRedisMockPort()); err != nil {
		if err = miniRedisMock.Start(); err != nil {
			panic(err)
		}
	}
}

// mockSupabase is a PostgREST stand-in serving content rows by key.
type mockSupabase struct {
	mu       sync.Mutex
	rows     map[string]string
	failNext int
	requests int
	rpc      map[string]string
	apiKeys  []string
}

func newMockSupabase() *mockSupabase {
	return &mockSupabase{rows: map[string]string{}, rpc: map[string]string{}}
}

func (m *mockSupabase) setRow(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = value
}

// failRequests makes the next n requests answer 503.
func (m *mockSupabase) failRequests(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

func (m *mockSupabase) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *mockSupabase) rpcBody(fn string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rpc[fn]
}

func (m *mockSupabase) lastAPIKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.apiKeys) == 0 {
		return ""
	}
	return m.apiKeys[len(m.apiKeys)-1]
}

func (m *mockSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.apiKeys = append(m.apiKeys, r.Header.Get("apikey"))

	if m.failNext > 0 {
		m.failNext--
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"upstream restarting"}`))
		return
	}
	if fn, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/rpc/"); ok {
		b, _ := io.ReadAll(r.Body)
		m.rpc[fn] = string(b)
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
		for k := range m.rows {
			keys = append(keys, k)
		}
	}
	rows := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := m.rows[k]; ok {
			rows = append(rows, `{"key":"`+k+`","value":`+v+`}`)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte("[" + strings.Join(rows, ",") + "]"))
}

// setupIntegrationTestServer wires the gateway from the loaded configuration
// the same way the binary does.
func setupIntegrationTestServer(cfg config.ClientConfig, rdb *redisv9.Client, logger *zap.SugaredLogger) *httptest.Server {
	var limiter *rate.Limiter
	if cfg.OutboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.OutboundRate), cfg.OutboundBurst)
	}
	retry := httpclient.RetryPolicy{MaxRetries: cfg.Retries, Delay: cfg.RetryDelay}
	httpCfg := httpclient.Config{Timeout: cfg.Timeout, Retry: &retry, Limiter: limiter, Logger: logger}

	cache := repository.NewResponseCache(rdb, cfg.CacheExpiration, logger)
	db := supabase.New(supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseAPIKey, HTTP: httpCfg})
	content := service.NewContentService(db, cfg.SupabaseTable)

	prayerCfg := httpCfg
	prayerCfg.Target = "prayer-times"
	svc := handler.Services{
		Content:   content,
		Events:    service.NewEventsService(content),
		Donations: service.NewDonationService(content),
		Media:     service.NewMediaService(content),
		Project:   service.NewProjectService(content),
		Social:    service.NewSocialService(content),
		Contact:   service.NewContactService(db),
		Prayer:    service.NewPrayerTimesService(httpclient.New(prayerCfg), cfg.PrayerTimesURL, cache, cfg.PrayerTimesExpiry),
	}

	router := mux.NewRouter()
	handler.NewContentHandler(svc, cache, cfg.CacheExpiration, logger).Register(router)
	return httptest.NewServer(metrics.InstrumentHandler(middleware.RateLimitMiddleware(router)))
}
