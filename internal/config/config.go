package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	ErrMissingDB       = errors.New("DATABASE_URL is required for postgres sink")
	ErrInvalidSinkType = errors.New("invalid sink type")
)

// maxNumberedKeys - сколько нумерованных переменных окружения
// проверяется на провайдера (TAVILY_API_KEY_1 .. TAVILY_API_KEY_10)
const maxNumberedKeys = 10

// Providers - провайдеры поиска в порядке опроса
var Providers = []string{"tavily", "exa", "serper"}

type Config struct {
	HTTP        HTTPConfig
	Credentials CredentialsConfig
	Rotation    RotationConfig
	Collector   CollectorConfig
	Aggregation AggregationConfig
	Tavily      ProviderConfig
	Exa         ProviderConfig
	Serper      ProviderConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Sink        SinkConfig
	Log         LogConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// CredentialsConfig - пулы ключей по провайдерам, из нумерованных
// переменных окружения плюс базовой (TAVILY_API_KEY, TAVILY_API_KEY_1, ...)
type CredentialsConfig struct {
	Keys map[string][]string
}

type RotationConfig struct {
	UnhealthyThreshold int
	RateLimitCooldown  time.Duration
	QuotaCooldown      time.Duration
	GenericCooldown    time.Duration
}

type CollectorConfig struct {
	TargetBytes int
	PageLimit   int
	PageSize    int
	BatchSize   int
	PageDelay   time.Duration
}

type AggregationConfig struct {
	CallTimeout           time.Duration
	MaxResultsPerProvider int
}

type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type SinkConfig struct {
	Type        string // file | postgres
	Path        string
	DatabaseURL string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
			ShutdownTimeout: time.Duration(getEnvIntOrDefault("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		},
		Credentials: CredentialsConfig{
			Keys: map[string][]string{
				"tavily": loadProviderKeys("TAVILY_API_KEY"),
				"exa":    loadProviderKeys("EXA_API_KEY"),
				"serper": loadProviderKeys("SERPER_API_KEY"),
			},
		},
		Rotation: RotationConfig{
			UnhealthyThreshold: getEnvIntOrDefault("KEY_UNHEALTHY_THRESHOLD", 5),
			RateLimitCooldown:  time.Duration(getEnvIntOrDefault("RATE_LIMIT_COOLDOWN_SEC", 300)) * time.Second,
			QuotaCooldown:      time.Duration(getEnvIntOrDefault("QUOTA_COOLDOWN_SEC", 3600)) * time.Second,
			GenericCooldown:    time.Duration(getEnvIntOrDefault("GENERIC_COOLDOWN_SEC", 60)) * time.Second,
		},
		Collector: CollectorConfig{
			TargetBytes: getEnvIntOrDefault("COLLECT_TARGET_BYTES", 500_000),
			PageLimit:   getEnvIntOrDefault("COLLECT_PAGE_LIMIT", 50),
			PageSize:    getEnvIntOrDefault("COLLECT_PAGE_SIZE", 20),
			BatchSize:   getEnvIntOrDefault("COLLECT_BATCH_SIZE", 10),
			PageDelay:   time.Duration(getEnvIntOrDefault("COLLECT_PAGE_DELAY_SEC", 1)) * time.Second,
		},
		Aggregation: AggregationConfig{
			CallTimeout:           time.Duration(getEnvIntOrDefault("CALL_TIMEOUT_SEC", 300)) * time.Second,
			MaxResultsPerProvider: getEnvIntOrDefault("MAX_RESULTS_PER_PROVIDER", 10),
		},
		Tavily: ProviderConfig{
			BaseURL: getEnvOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),
			Timeout: time.Duration(getEnvIntOrDefault("TAVILY_TIMEOUT_SEC", 30)) * time.Second,
		},
		Exa: ProviderConfig{
			BaseURL: getEnvOrDefault("EXA_BASE_URL", "https://api.exa.ai"),
			Timeout: time.Duration(getEnvIntOrDefault("EXA_TIMEOUT_SEC", 30)) * time.Second,
		},
		Serper: ProviderConfig{
			BaseURL: getEnvOrDefault("SERPER_BASE_URL", "https://google.serper.dev"),
			Timeout: time.Duration(getEnvIntOrDefault("SERPER_TIMEOUT_SEC", 30)) * time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 3600)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
		},
		Sink: SinkConfig{
			Type:        getEnvOrDefault("SINK_TYPE", "file"),
			Path:        getEnvOrDefault("SINK_PATH", "analyses_data/search_results"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Sink.Type {
	case "file":
	case "postgres":
		if c.Sink.DatabaseURL == "" {
			return ErrMissingDB
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSinkType, c.Sink.Type)
	}
	return nil
}

// loadProviderKeys собирает пул ключей провайдера: базовая переменная
// плюс нумерованные PREFIX_1 .. PREFIX_10, дубликаты отбрасываются
func loadProviderKeys(prefix string) []string {
	var keys []string
	seen := make(map[string]bool)

	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			keys = append(keys, v)
		}
	}

	add(os.Getenv(prefix))
	for i := 1; i <= maxNumberedKeys; i++ {
		add(os.Getenv(fmt.Sprintf("%s_%d", prefix, i)))
	}

	return keys
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
