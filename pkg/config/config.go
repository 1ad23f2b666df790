package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string
	HTTPPort  string

	// Polymarket API
	PolymarketGammaURL string
	PolymarketCLOBURL  string
	PolymarketWSURL    string

	// Fetch
	FetchTimeout     time.Duration
	FetchMaxAttempts int

	// Cache
	CacheMaxEntries   int
	MarketsStaleTTL   time.Duration
	DetailStaleTTL    time.Duration
	HistoryStaleTTL   time.Duration
	TagsStaleTTL      time.Duration
	OrderBookStaleTTL time.Duration
	PriceCacheTTL     time.Duration

	// Query engine
	QueryPageSize     int
	QueryPageCap      int
	EnrichConcurrency int
	EnrichMaxMarkets  int

	// Price feed
	PriceFeedEnabled        bool
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64

	// Cache warmer
	DiscoveryPollInterval time.Duration
	DiscoveryMarketLimit  int

	// Storage
	StorageMode  string // "none", "memory" or "postgres"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),

		PolymarketGammaURL: getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketCLOBURL:  getEnvOrDefault("POLYMARKET_CLOB_API_URL", "https://clob.polymarket.com"),
		PolymarketWSURL:    getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		FetchTimeout:     getDurationOrDefault("FETCH_TIMEOUT", 10*time.Second),
		FetchMaxAttempts: getIntOrDefault("FETCH_MAX_ATTEMPTS", 2),

		CacheMaxEntries:   getIntOrDefault("CACHE_MAX_ENTRIES", 500),
		MarketsStaleTTL:   getDurationOrDefault("MARKETS_STALE_TTL", 30*time.Second),
		DetailStaleTTL:    getDurationOrDefault("DETAIL_STALE_TTL", 60*time.Second),
		HistoryStaleTTL:   getDurationOrDefault("HISTORY_STALE_TTL", 5*time.Minute),
		TagsStaleTTL:      getDurationOrDefault("TAGS_STALE_TTL", 10*time.Minute),
		OrderBookStaleTTL: getDurationOrDefault("ORDERBOOK_STALE_TTL", 5*time.Second),
		PriceCacheTTL:     getDurationOrDefault("PRICE_CACHE_TTL", 10*time.Second),

		QueryPageSize:     getIntOrDefault("QUERY_PAGE_SIZE", 100),
		QueryPageCap:      getIntOrDefault("QUERY_PAGE_CAP", 10),
		EnrichConcurrency: getIntOrDefault("ENRICH_CONCURRENCY", 5),
		EnrichMaxMarkets:  getIntOrDefault("ENRICH_MAX_MARKETS", 50),

		PriceFeedEnabled:        getBoolOrDefault("PRICE_FEED_ENABLED", false),
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 30*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),

		DiscoveryPollInterval: getDurationOrDefault("DISCOVERY_POLL_INTERVAL", 30*time.Second),
		DiscoveryMarketLimit:  getIntOrDefault("DISCOVERY_MARKET_LIMIT", 50),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "none"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polymarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polymarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_lens"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.PolymarketGammaURL == "" {
		return fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if c.PolymarketCLOBURL == "" {
		return fmt.Errorf("POLYMARKET_CLOB_API_URL cannot be empty")
	}

	if c.PriceFeedEnabled && c.PolymarketWSURL == "" {
		return fmt.Errorf("POLYMARKET_WS_URL cannot be empty when PRICE_FEED_ENABLED is set")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", c.FetchTimeout)
	}

	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1, got %d", c.FetchMaxAttempts)
	}

	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be at least 1, got %d", c.CacheMaxEntries)
	}

	ttls := map[string]time.Duration{
		"MARKETS_STALE_TTL":   c.MarketsStaleTTL,
		"DETAIL_STALE_TTL":    c.DetailStaleTTL,
		"HISTORY_STALE_TTL":   c.HistoryStaleTTL,
		"TAGS_STALE_TTL":      c.TagsStaleTTL,
		"ORDERBOOK_STALE_TTL": c.OrderBookStaleTTL,
		"PRICE_CACHE_TTL":     c.PriceCacheTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, ttl)
		}
	}

	if c.QueryPageSize < 1 || c.QueryPageSize > 100 {
		return fmt.Errorf("QUERY_PAGE_SIZE must be between 1 and 100, got %d", c.QueryPageSize)
	}

	if c.QueryPageCap < 1 {
		return fmt.Errorf("QUERY_PAGE_CAP must be at least 1, got %d", c.QueryPageCap)
	}

	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be at least 1, got %d", c.EnrichConcurrency)
	}

	if c.EnrichMaxMarkets < 0 {
		return fmt.Errorf("ENRICH_MAX_MARKETS cannot be negative, got %d", c.EnrichMaxMarkets)
	}

	if c.DiscoveryPollInterval < 0 {
		return fmt.Errorf("DISCOVERY_POLL_INTERVAL cannot be negative, got %v", c.DiscoveryPollInterval)
	}

	if c.DiscoveryMarketLimit < 1 || c.DiscoveryMarketLimit > 500 {
		return fmt.Errorf("DISCOVERY_MARKET_LIMIT must be between 1 and 500, got %d", c.DiscoveryMarketLimit)
	}

	switch c.StorageMode {
	case "none", "memory", "postgres":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'none', 'memory' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
