package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port                string
	Env                 string
	DatabaseURL         string
	CORSAllowOrigin     []string
	JWTSecret           string
	LLMProvider         string
	LLMModel            string
	LLMBaseURL          string
	LLMAPIKey           string
	AdvisoryTimeout     time.Duration
	AdvisoryRPS         float64
	AdvisoryBurst       int
	RedisURL            string
	RecommendationTTL   time.Duration
	SeedFile            string
	MaxCompareCountries int
	Scoring             Scoring
}

// Scoring holds the readiness deductions and grade thresholds.
type Scoring struct {
	CriticalDeduction int
	MajorDeduction    int
	MinorDeduction    int
	ReadyThreshold    int
	WarningThreshold  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 env,
		DatabaseURL:         dbURL,
		CORSAllowOrigin:     splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		LLMProvider:         normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:            getEnv("LLM_MODEL", ""),
		LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:           getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		AdvisoryTimeout:     getDuration("ADVISORY_TIMEOUT", 30*time.Second),
		AdvisoryRPS:         getFloat("ADVISORY_RPS", 2),
		AdvisoryBurst:       getInt("ADVISORY_BURST", 4),
		RedisURL:            getEnv("REDIS_URL", ""),
		RecommendationTTL:   getDuration("RECOMMENDATION_CACHE_TTL", 24*time.Hour),
		SeedFile:            getEnv("SEED_FILE", ""),
		MaxCompareCountries: getInt("MAX_COMPARE_COUNTRIES", 5),
		Scoring: Scoring{
			CriticalDeduction: getInt("SCORE_DEDUCTION_CRITICAL", 20),
			MajorDeduction:    getInt("SCORE_DEDUCTION_MAJOR", 10),
			MinorDeduction:    getInt("SCORE_DEDUCTION_MINOR", 5),
			ReadyThreshold:    getInt("SCORE_THRESHOLD_READY", 80),
			WarningThreshold:  getInt("SCORE_THRESHOLD_WARNING", 50),
		},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config %s invalid float: %v", key, err)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai", "kolosal":
		return "openai"
	default:
		return "none"
	}
}
