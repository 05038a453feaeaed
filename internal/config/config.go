package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/resilience"
)

const (
	OverrideStoreMemory   = "memory"
	OverrideStoreFile     = "file"
	OverrideStorePostgres = "postgres"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	LogFormat          logging.Format
	CORSAllowedOrigins []string

	CacheEnabled     bool
	CacheTTL         time.Duration
	CacheDegradedTTL time.Duration
	CacheStaleMaxAge time.Duration
	OverrideCacheTTL time.Duration
	RedisURL         string

	OverrideStore        string
	OverrideFilePath     string
	OverrideAdminToken   string
	OverrideProbeTimeout time.Duration

	DBURL                   string
	DBDisablePreparedBinary bool

	TwitchEnabled          bool
	TwitchClientID         string
	TwitchClientSecret     string
	TwitchBaseURL          string
	TwitchTokenURL         string
	TwitchTimeout          time.Duration
	TwitchBatchSize        int
	TwitchBatchConcurrency int
	TwitchPhaseTimeout     time.Duration
	TwitchRetry            resilience.RetryPolicy
	TwitchRateLimitRPS     float64
	TwitchCircuit          resilience.CircuitBreakerConfig

	LeaderboardBaseURL      string
	LeaderboardTimeout      time.Duration
	LeaderboardMaxRetries   int
	LeaderboardMaxPlayers   int
	LeaderboardDefaultLimit int
	LeaderboardPlatforms    []leaderboard.Platform
	LeaderboardCircuit      resilience.CircuitBreakerConfig

	InternalJobToken string

	MetricsEnabled             bool
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	logFormat, ok := logging.ParseFormat(getEnv("APP_LOG_FORMAT", string(logging.FormatJSON)))
	if !ok {
		return Config{}, fmt.Errorf("invalid APP_LOG_FORMAT %q: valid values are json, console", os.Getenv("APP_LOG_FORMAT"))
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "apex-leaderboard-api"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		LogLevel:           parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		LogFormat:          logFormat,
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		InternalJobToken:   strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	if err := loadCache(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadTwitch(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLeaderboard(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadCache(cfg *Config) error {
	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := getEnvAsDuration("CACHE_TTL", 300*time.Second)
	if err != nil {
		return err
	}
	degradedTTL, err := getEnvAsDuration("CACHE_DEGRADED_TTL", 30*time.Second)
	if err != nil {
		return err
	}
	staleMaxAge, err := getEnvAsDuration("CACHE_STALE_MAX_AGE", 15*time.Minute)
	if err != nil {
		return err
	}
	overrideTTL, err := getEnvAsDuration("OVERRIDE_CACHE_TTL", 15*time.Second)
	if err != nil {
		return err
	}
	if degradedTTL > cacheTTL {
		degradedTTL = cacheTTL
	}
	if overrideTTL > cacheTTL {
		overrideTTL = cacheTTL
	}

	cfg.CacheEnabled = cacheEnabled
	cfg.CacheTTL = cacheTTL
	cfg.CacheDegradedTTL = degradedTTL
	cfg.CacheStaleMaxAge = staleMaxAge
	cfg.OverrideCacheTTL = overrideTTL
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))
	return nil
}

func loadOverrides(cfg *Config) error {
	store := strings.ToLower(strings.TrimSpace(getEnv("OVERRIDE_STORE", OverrideStoreFile)))
	switch store {
	case OverrideStoreMemory, OverrideStoreFile, OverrideStorePostgres:
	default:
		return fmt.Errorf("invalid OVERRIDE_STORE %q: valid values are %s, %s, %s", store, OverrideStoreMemory, OverrideStoreFile, OverrideStorePostgres)
	}

	probeTimeout, err := getEnvAsDuration("OVERRIDE_PROBE_TIMEOUT", 5*time.Second)
	if err != nil {
		return err
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	cfg.OverrideStore = store
	cfg.OverrideFilePath = strings.TrimSpace(getEnv("OVERRIDE_FILE_PATH", "./data/twitch_overrides.json"))
	cfg.OverrideAdminToken = strings.TrimSpace(getEnv("OVERRIDE_ADMIN_TOKEN", ""))
	cfg.OverrideProbeTimeout = probeTimeout
	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", ""))
	cfg.DBDisablePreparedBinary = dbDisablePreparedBinary

	if store == OverrideStoreFile && cfg.OverrideFilePath == "" {
		return fmt.Errorf("OVERRIDE_FILE_PATH is required when OVERRIDE_STORE=file")
	}
	if store == OverrideStorePostgres && cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required when OVERRIDE_STORE=postgres")
	}
	return nil
}

func loadTwitch(cfg *Config) error {
	enabled, err := strconv.ParseBool(getEnv("TWITCH_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse TWITCH_ENABLED: %w", err)
	}
	timeout, err := getEnvAsDuration("TWITCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	batchSize, err := getEnvAsInt("TWITCH_BATCH_SIZE", 100)
	if err != nil {
		return fmt.Errorf("parse TWITCH_BATCH_SIZE: %w", err)
	}
	if batchSize < 1 || batchSize > 100 {
		return fmt.Errorf("TWITCH_BATCH_SIZE must be between 1 and 100")
	}
	concurrency, err := getEnvAsInt("TWITCH_BATCH_CONCURRENCY", 4)
	if err != nil {
		return fmt.Errorf("parse TWITCH_BATCH_CONCURRENCY: %w", err)
	}
	if concurrency < 1 {
		return fmt.Errorf("TWITCH_BATCH_CONCURRENCY must be >= 1")
	}
	phaseTimeout, err := getEnvAsDuration("TWITCH_PHASE_TIMEOUT", 20*time.Second)
	if err != nil {
		return err
	}
	maxRetries, err := getEnvAsInt("TWITCH_MAX_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("parse TWITCH_MAX_RETRIES: %w", err)
	}
	if maxRetries < 0 {
		return fmt.Errorf("TWITCH_MAX_RETRIES must be >= 0")
	}
	baseDelay, err := getEnvAsDuration("TWITCH_RETRY_BASE_DELAY", time.Second)
	if err != nil {
		return err
	}
	maxDelay, err := getEnvAsDuration("TWITCH_RETRY_MAX_DELAY", 30*time.Second)
	if err != nil {
		return err
	}
	jitter, err := getEnvAsFloat("TWITCH_RETRY_JITTER", 0.25)
	if err != nil {
		return fmt.Errorf("parse TWITCH_RETRY_JITTER: %w", err)
	}
	if jitter < 0 || jitter > 1 {
		return fmt.Errorf("TWITCH_RETRY_JITTER must be between 0 and 1")
	}
	rps, err := getEnvAsFloat("TWITCH_RATE_LIMIT_RPS", 10)
	if err != nil {
		return fmt.Errorf("parse TWITCH_RATE_LIMIT_RPS: %w", err)
	}
	if rps < 0 {
		return fmt.Errorf("TWITCH_RATE_LIMIT_RPS must be >= 0")
	}
	circuit, err := loadCircuit("TWITCH")
	if err != nil {
		return err
	}

	cfg.TwitchEnabled = enabled
	cfg.TwitchClientID = strings.TrimSpace(getEnv("TWITCH_CLIENT_ID", ""))
	cfg.TwitchClientSecret = strings.TrimSpace(getEnv("TWITCH_CLIENT_SECRET", ""))
	cfg.TwitchBaseURL = strings.TrimSpace(getEnv("TWITCH_BASE_URL", "https://api.twitch.tv/helix"))
	cfg.TwitchTokenURL = strings.TrimSpace(getEnv("TWITCH_TOKEN_URL", "https://id.twitch.tv/oauth2/token"))
	cfg.TwitchTimeout = timeout
	cfg.TwitchBatchSize = batchSize
	cfg.TwitchBatchConcurrency = concurrency
	cfg.TwitchPhaseTimeout = phaseTimeout
	cfg.TwitchRetry = resilience.RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2,
		Jitter:     jitter,
	}
	cfg.TwitchRateLimitRPS = rps
	cfg.TwitchCircuit = circuit

	if enabled && (cfg.TwitchClientID == "" || cfg.TwitchClientSecret == "") {
		return fmt.Errorf("TWITCH_CLIENT_ID and TWITCH_CLIENT_SECRET are required when TWITCH_ENABLED=true")
	}
	return nil
}

func loadLeaderboard(cfg *Config) error {
	timeout, err := getEnvAsDuration("LEADERBOARD_TIMEOUT", 15*time.Second)
	if err != nil {
		return err
	}
	maxRetries, err := getEnvAsInt("LEADERBOARD_MAX_RETRIES", 2)
	if err != nil {
		return fmt.Errorf("parse LEADERBOARD_MAX_RETRIES: %w", err)
	}
	if maxRetries < 0 {
		return fmt.Errorf("LEADERBOARD_MAX_RETRIES must be >= 0")
	}
	maxPlayers, err := getEnvAsInt("LEADERBOARD_MAX_PLAYERS", 500)
	if err != nil {
		return fmt.Errorf("parse LEADERBOARD_MAX_PLAYERS: %w", err)
	}
	if maxPlayers <= 0 {
		return fmt.Errorf("LEADERBOARD_MAX_PLAYERS must be > 0")
	}
	defaultLimit, err := getEnvAsInt("LEADERBOARD_DEFAULT_LIMIT", maxPlayers)
	if err != nil {
		return fmt.Errorf("parse LEADERBOARD_DEFAULT_LIMIT: %w", err)
	}
	if defaultLimit <= 0 {
		return fmt.Errorf("LEADERBOARD_DEFAULT_LIMIT must be > 0")
	}
	if defaultLimit > maxPlayers {
		defaultLimit = maxPlayers
	}
	platforms, err := parsePlatforms(getEnv("LEADERBOARD_PLATFORMS", "PC,PS4,X1,SWITCH"))
	if err != nil {
		return fmt.Errorf("parse LEADERBOARD_PLATFORMS: %w", err)
	}
	circuit, err := loadCircuit("LEADERBOARD")
	if err != nil {
		return err
	}

	cfg.LeaderboardBaseURL = strings.TrimSpace(getEnv("LEADERBOARD_BASE_URL", "https://apexlegendsstatus.com/live-ranked-leaderboards"))
	cfg.LeaderboardTimeout = timeout
	cfg.LeaderboardMaxRetries = maxRetries
	cfg.LeaderboardMaxPlayers = maxPlayers
	cfg.LeaderboardDefaultLimit = defaultLimit
	cfg.LeaderboardPlatforms = platforms
	cfg.LeaderboardCircuit = circuit
	return nil
}

func loadObservability(cfg *Config) error {
	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", 15*time.Second)
	if err != nil {
		return err
	}

	cfg.MetricsEnabled = metricsEnabled
	cfg.UptraceEnabled = uptraceEnabled
	cfg.UptraceDSN = uptraceDSN
	cfg.PprofEnabled = pprofEnabled
	cfg.PprofAddr = pprofAddr
	cfg.PyroscopeEnabled = pyroscopeEnabled
	cfg.PyroscopeServerAddress = pyroscopeServerAddress
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	cfg.PyroscopeUploadRate = pyroscopeUploadRate
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	return nil
}

// loadCircuit reads <PREFIX>_CIRCUIT_{ENABLED,FAILURE_COUNT,OPEN_TIMEOUT,HALF_OPEN_MAX_REQ}.
func loadCircuit(prefix string) (resilience.CircuitBreakerConfig, error) {
	enabledKey := prefix + "_CIRCUIT_ENABLED"
	enabled, err := strconv.ParseBool(getEnv(enabledKey, "true"))
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s: %w", enabledKey, err)
	}

	failureKey := prefix + "_CIRCUIT_FAILURE_COUNT"
	failureCount, err := getEnvAsInt(failureKey, 5)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s: %w", failureKey, err)
	}
	if failureCount < 1 {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("%s must be >= 1", failureKey)
	}

	openTimeout, err := getEnvAsDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, err
	}

	halfOpenKey := prefix + "_CIRCUIT_HALF_OPEN_MAX_REQ"
	halfOpenMaxReq, err := getEnvAsInt(halfOpenKey, 1)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s: %w", halfOpenKey, err)
	}
	if halfOpenMaxReq < 1 {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("%s must be >= 1", halfOpenKey)
	}

	return resilience.CircuitBreakerConfig{
		Enabled:          enabled,
		FailureThreshold: failureCount,
		OpenTimeout:      openTimeout,
		HalfOpenMaxReq:   halfOpenMaxReq,
	}, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parsePlatforms(raw string) ([]leaderboard.Platform, error) {
	items := splitCSV(raw)
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}

	out := make([]leaderboard.Platform, 0, len(items))
	seen := make(map[leaderboard.Platform]struct{}, len(items))
	for _, item := range items {
		platform, err := leaderboard.ParsePlatform(item)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, platform)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return strconv.ParseFloat(value, 64)
}

// getEnvAsDuration parses a Go duration and rejects non-positive values.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
