package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds application configuration.
type Config struct {
	Port            string   `env:"PORT" env-default:"8080"`
	Env             string   `env:"ENV" env-default:"dev"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	DatabaseURL     string   `env:"DATABASE_URL"`
	MaxBodyBytes    int64    `env:"MAX_BODY_BYTES" env-default:"10485760"`

	LLMProvider   string        `env:"LLM_PROVIDER" env-default:"openai"`
	LLMModel      string        `env:"LLM_MODEL"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" env-default:"120s"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`

	RefusalMarkersExtra []string `env:"REFUSAL_MARKERS_EXTRA" env-separator:","`
	AnalyzeRatePerMin   float64  `env:"ANALYZE_RATE_PER_MIN" env-default:"10"`
	AnalyzeBurst        int      `env:"ANALYZE_BURST" env-default:"5"`

	JWTSecret      string        `env:"JWT_SECRET"`
	JWTIssuer      string        `env:"JWT_ISSUER" env-default:"skinscan"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"24h"`
	AdminEmails    []string      `env:"ADMIN_EMAILS" env-separator:","`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL      string `env:"UI_REDIRECT_URL"`

	ObjectStoreType string `env:"OBJECT_STORE" env-default:"none"`
	LocalStoreDir   string `env:"LOCAL_STORE_DIR" env-default:"./data"`
	AWSRegion       string `env:"AWS_REGION"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Prefix        string `env:"S3_PREFIX"`
	SSEKMSKeyID     string `env:"SSE_KMS_KEY_ID"`
}

// Load reads configuration from environment variables with sensible defaults.
// A malformed value fails the load; cleanenv stops at the first bad field and
// leaves the rest without their defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	return normalize(cfg), nil
}

func normalize(cfg Config) Config {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.CORSAllowOrigin = trimAll(cfg.CORSAllowOrigin)
	cfg.RefusalMarkersExtra = trimAll(cfg.RefusalMarkersExtra)
	cfg.AdminEmails = trimAll(cfg.AdminEmails)

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	if cfg.Env == "production" && strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Printf("JWT_SECRET is required in production")
	}
	return cfg
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
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
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

// normalizeStoreType keeps unknown values so bootstrap can reject them.
func normalizeStoreType(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "none"
	}
	return v
}
