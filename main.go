package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/config"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/handler"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/metrics"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/middleware"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/redis"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/repository"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/service"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/supabase"
)

// newServices wires the façade from cfg. cache may be nil.
func newServices(cfg config.ClientConfig, cache *repository.ResponseCache, logger *zap.SugaredLogger) handler.Services {
	var limiter *rate.Limiter
	if cfg.OutboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.OutboundRate), cfg.OutboundBurst)
	}
	retry := httpclient.RetryPolicy{MaxRetries: cfg.Retries, Delay: cfg.RetryDelay}
	httpCfg := func(target string) httpclient.Config {
		return httpclient.Config{
			Timeout: cfg.Timeout,
			Retry:   &retry,
			Limiter: limiter,
			Logger:  logger,
			Target:  target,
		}
	}

	db := supabase.New(supabase.Config{
		URL:    cfg.SupabaseURL,
		APIKey: cfg.SupabaseAPIKey,
		HTTP:   httpCfg("supabase"),
	})
	if !db.Configured() {
		logger.Warnw("supabase is not configured; content endpoints will answer 502")
	}
	prayerAPI := httpclient.New(httpCfg("prayer-times"))
	siteCfg := httpCfg("site-api")
	siteCfg.BaseURL = cfg.APIBaseURL
	siteAPI := httpclient.New(siteCfg)

	content := service.NewContentService(db, cfg.SupabaseTable)
	return handler.Services{
		Content:   content,
		Events:    service.NewEventsService(content),
		Donations: service.NewDonationService(content),
		Media:     service.NewMediaService(content),
		Project:   service.NewProjectService(content),
		Social:    service.NewSocialService(content),
		Contact:   service.NewContactService(db),
		Prayer:    service.NewPrayerTimesService(prayerAPI, cfg.PrayerTimesURL, cache, cfg.PrayerTimesExpiry),

		EventsAPI:    service.NewEventsAPI(siteAPI),
		DonationsAPI: service.NewDonationsAPI(siteAPI),
	}
}

// newHandler builds the full gateway handler chain.
func newHandler(cfg config.ClientConfig, rdb *redisv9.Client, logger *zap.SugaredLogger) http.Handler {
	var cache *repository.ResponseCache
	if rdb != nil {
		cache = repository.NewResponseCache(rdb, cfg.CacheExpiration, logger)
	}
	router := mux.NewRouter()
	handler.NewContentHandler(newServices(cfg, cache, logger), cache, cfg.CacheExpiration, logger).Register(router)
	return metrics.InstrumentHandler(middleware.RateLimitMiddleware(router))
}

func serverTimeout(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(config.GetServerTimeout(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// writeSlack covers encoding the reply once the upstream call has given up.
const writeSlack = 5 * time.Second

// upstreamBudget is the longest one executor call can take: every attempt
// running into its timeout plus the linear backoff between attempts.
func upstreamBudget(cfg config.ClientConfig) time.Duration {
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	attempts := time.Duration(retries + 1)
	backoff := cfg.RetryDelay * time.Duration(retries*(retries+1)/2)
	return cfg.Timeout*attempts + backoff
}

// writeTimeout raises configured to outlast the upstream budget, so a 502 or
// 504 is still written before the connection's write deadline.
func writeTimeout(cfg config.ClientConfig, configured time.Duration) time.Duration {
	floor := upstreamBudget(cfg) + writeSlack
	if configured < floor {
		return floor
	}
	return configured
}

func main() {
	logger := config.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadClientConfig()
	rdb := redis.GetClient()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redis.Ping(pingCtx, rdb); err != nil {
		logger.Warnw("redis unavailable, responses will not be cached until it recovers", "addr", config.GetRedisAddr(), "error", err)
	}
	cancel()

	middleware.StartRateLimiterCleanup(ctx)

	port := config.GetServerPort()
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newHandler(cfg, rdb, logger),
		ReadHeaderTimeout: serverTimeout("read_header_timeout", 15*time.Second),
		ReadTimeout:       serverTimeout("read_timeout", 15*time.Second),
		WriteTimeout:      writeTimeout(cfg, serverTimeout("write_timeout", 45*time.Second)),
		IdleTimeout:       serverTimeout("idle_timeout", 30*time.Second),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infow("masjid data gateway listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Fatalw("server failed", "error", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
	}
	_ = rdb.Close()
}
