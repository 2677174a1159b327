package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	OpenAIAPIKey string
	OpenAIModel  string

	FallbackLLMAPIKey  string
	FallbackLLMBaseURL string
	FallbackLLMModel   string

	FinnhubAPIKey string
	RapidAPIKey   string

	AudioTempDir string

	CollectionSweepSecs int
	ValidationSecs      int
	PriceRefreshSecs    int
	RankingSecs         int
	CleanupSecs         int

	SingleCallTokenCeiling int
	ChunkTokenTarget       int
	ChunkTokenOverlap      int

	RetentionDays         int
	FreshnessWindowDays   int
	RecentItemsPerChannel int
	ProcessQueueLimit     int

	HTTPPort int
	APIKey   string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		FallbackLLMAPIKey:  os.Getenv("FALLBACK_LLM_API_KEY"),
		FallbackLLMBaseURL: os.Getenv("FALLBACK_LLM_BASE_URL"),
		FinnhubAPIKey:      os.Getenv("FINNHUB_API_KEY"),
		RapidAPIKey:        os.Getenv("RAPIDAPI_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, extraction will rely on the fallback provider")
	}
	if cfg.RapidAPIKey == "" {
		log.Println("Warning: RAPIDAPI_KEY not set, transcript API and audio fallback disabled")
	}

	cfg.OpenAIModel = envString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.FallbackLLMModel = envString("FALLBACK_LLM_MODEL", "deepseek-chat")
	if cfg.FallbackLLMBaseURL == "" {
		cfg.FallbackLLMBaseURL = "https://api.deepseek.com/v1"
	}

	cfg.AudioTempDir = envString("AUDIO_TEMP_DIR", os.TempDir()+"/foresight-audio")

	cfg.CollectionSweepSecs = envInt("COLLECTION_SWEEP_SECS", 300)
	cfg.ValidationSecs = envInt("VALIDATION_SECS", 3600)
	cfg.PriceRefreshSecs = envInt("PRICE_REFRESH_SECS", 300)
	cfg.RankingSecs = envInt("RANKING_SECS", 1800)
	cfg.CleanupSecs = envInt("CLEANUP_SECS", 86400)

	cfg.SingleCallTokenCeiling = envInt("SINGLE_CALL_TOKEN_CEILING", 50000)
	cfg.ChunkTokenTarget = envInt("CHUNK_TOKEN_TARGET", 30000)
	cfg.ChunkTokenOverlap = envInt("CHUNK_TOKEN_OVERLAP", 2000)

	cfg.RetentionDays = envInt("RETENTION_DAYS", 30)
	cfg.FreshnessWindowDays = envInt("FRESHNESS_WINDOW_DAYS", 7)
	cfg.RecentItemsPerChannel = envInt("RECENT_ITEMS_PER_CHANNEL", 15)
	cfg.ProcessQueueLimit = envInt("PROCESS_QUEUE_LIMIT", 25)

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)
	cfg.APIKey = os.Getenv("API_KEY")

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using default %d", key, v, fallback)
	}
	return fallback
}
