package config

import (
	"flag"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// ClientConfig is the data-access configuration read once at startup and
// handed to the executors and façade constructors.
type ClientConfig struct {
	APIBaseURL        string
	SupabaseURL       string
	SupabaseAPIKey    string
	SupabaseTable     string
	PrayerTimesURL    string
	Timeout           time.Duration
	Retries           int
	RetryDelay        time.Duration
	OutboundRate      float64
	OutboundBurst     int
	CacheExpiration   time.Duration
	PrayerTimesExpiry time.Duration
}

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func initConfig() {
	once.Do(func() {
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		root, err := getProjectRoot()
		if err != nil {
			GetLogger().Errorw("Error finding project root", "error", err)
		}
		viper.SetConfigType("yaml")

		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			GetLogger().Errorw("Error reading config file", "error", err)
		}

		if isTestRun() {
			viper.SetConfigName("config_test")
			viper.AddConfigPath(root)
			if err = viper.MergeInConfig(); err != nil {
				GetLogger().Errorw("Error merging test config file", "error", err)
			}
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func getSecret(key string) string {
	_ = godotenv.Load()
	return os.Getenv(key)
}

func getDuration(key string, fallback time.Duration) time.Duration {
	initConfig()
	durStr := viper.GetString(key)
	if durStr == "" {
		return fallback
	}
	dur, err := time.ParseDuration(durStr)
	if err != nil {
		return fallback
	}
	return dur
}

// GetAPIBaseURL returns the base URL of the site's own REST API.
func GetAPIBaseURL() string {
	initConfig()
	return viper.GetString("api.base_url")
}

func GetSupabaseURL() string {
	return getSecret("SUPABASE_PROJECT_URL")
}

func GetSupabaseAPIKey() string {
	return getSecret("SUPABASE_API_KEY")
}

// GetSupabaseTable returns the content table name. SUPABASE_TABLE_NAME overrides the yaml value.
func GetSupabaseTable() string {
	initConfig()
	return viper.GetString("supabase.table_name")
}

// GetPrayerTimesURL returns the prayer-times endpoint with its access keys
// appended as query parameters. Keys missing from the environment are left out.
func GetPrayerTimesURL() string {
	initConfig()
	base := viper.GetString("prayer_times.api_url")
	if base == "" {
		return ""
	}
	params := url.Values{}
	if key := getSecret("PRAYER_TIMES_USER_CONTENT_KEY"); key != "" {
		params.Set("user_content_key", key)
	}
	if lib := getSecret("PRAYER_TIMES_LIB"); lib != "" {
		params.Set("lib", lib)
	}
	if len(params) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

// GetRequestTimeout returns the default per-attempt deadline. Defaults to 10s.
func GetRequestTimeout() time.Duration {
	return getDuration("request.timeout", 10*time.Second)
}

// GetRequestRetries returns how many times a failed call is retried. Defaults to 2.
func GetRequestRetries() int {
	initConfig()
	if !viper.IsSet("request.retries") {
		return 2
	}
	retries := viper.GetInt("request.retries")
	if retries < 0 {
		return 0
	}
	return retries
}

// GetRetryDelay returns the base delay between attempts. Defaults to 1s.
func GetRetryDelay() time.Duration {
	return getDuration("request.retry_delay", time.Second)
}

// GetOutboundLimiterConfig returns the rate and burst applied to outbound calls.
// A zero rate disables the limiter.
func GetOutboundLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("outbound_limiter.rate")
	burst = viper.GetInt("outbound_limiter.burst")
	if rate > 0 && burst <= 0 {
		burst = 1
	}
	return
}

func GetRedisAddr() string {
	initConfig()
	return viper.GetString("redis.addr")
}

func GetServerPort() string {
	initConfig()
	serverPort := viper.GetString("server.port")
	return serverPort
}

func GetCacheExpiration() string {
	initConfig()
	return viper.GetString("cache.expiration")
}

// GetPrayerTimesCacheExpiration returns how long a fetched month of prayer times is kept. Defaults to 6h.
func GetPrayerTimesCacheExpiration() time.Duration {
	return getDuration("cache.prayer_times_expiration", 6*time.Hour)
}

func GetServerTimeout(key string) string {
	initConfig()
	return viper.GetString("server." + key)
}

func GetTestRedisMockPort() string {
	initConfig()
	return viper.GetString("test.redis_mock_port")
}

func GetTestServerPort() string {
	initConfig()
	return viper.GetString("test.server_port")
}

// LoadClientConfig collects every data-access setting into one value.
func LoadClientConfig() ClientConfig {
	rate, burst := GetOutboundLimiterConfig()
	return ClientConfig{
		APIBaseURL:        GetAPIBaseURL(),
		SupabaseURL:       GetSupabaseURL(),
		SupabaseAPIKey:    GetSupabaseAPIKey(),
		SupabaseTable:     GetSupabaseTable(),
		PrayerTimesURL:    GetPrayerTimesURL(),
		Timeout:           GetRequestTimeout(),
		Retries:           GetRequestRetries(),
		RetryDelay:        GetRetryDelay(),
		OutboundRate:      rate,
		OutboundBurst:     burst,
		CacheExpiration:   getDuration("cache.expiration", 10*time.Minute),
		PrayerTimesExpiry: GetPrayerTimesCacheExpiration(),
	}
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}

// GetRateLimiterCleanupTimeout returns the rate limiter cleanup timeout as a time.Duration.
// Defaults to 3m if not set or invalid.
func GetRateLimiterCleanupTimeout() time.Duration {
	return getDuration("rate_limiter.cleanup_timeout", 3*time.Minute)
}

// GetGlobalRateLimiterConfig returns the rate and burst for the global rate limiter from config.
func GetGlobalRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.global.rate")
	if rate == 0 {
		rate = 10
	}
	burst = viper.GetInt("rate_limiter.global.burst")
	if burst == 0 {
		burst = 10
	}
	return
}

// GetParamRateLimiterConfig returns the rate and burst for the param rate limiter from config.
func GetParamRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.param.rate")
	if rate == 0 {
		rate = 2
	}
	burst = viper.GetInt("rate_limiter.param.burst")
	if burst == 0 {
		burst = 2
	}
	return
}
