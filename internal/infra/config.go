package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PolicyRegenerate = "regenerate"
	PolicyResume     = "resume"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	KieAPIKey        string
	KieBaseURL       string
	KieImageModel    string
	KieVideoModel    string
	ImageAspectRatio string
	ImageQuality     string
	VideoDuration    string
	RateInterval     time.Duration
	HTTPTimeout      time.Duration

	PollMaxAttempts int
	PollInterval    time.Duration

	ManifestPath  string
	CatalogPath   string
	Policy        string
	AssetsDir     string
	AssetsBaseURL string

	CORSOrigins      []string
	ManifestCacheTTL time.Duration
	RateLimitPerMin  int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// envFiles are read in order; a key set by an earlier file is not overridden
// by a later one, so .env.local takes precedence over .env.
var envFiles = []string{".env.local", ".env"}

// LoadConfig loads configuration from .env files and environment variables and
// applies defaults where needed. Existing environment variables win over files.
func LoadConfig() (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		KieAPIKey:        strings.TrimSpace(os.Getenv("KIE_API_KEY")),
		KieBaseURL:       getEnv("KIE_BASE_URL", "https://api.kie.ai/api/v1/jobs"),
		KieImageModel:    getEnv("KIE_IMAGE_MODEL", "seedream/4.5-text-to-image"),
		KieVideoModel:    getEnv("KIE_VIDEO_MODEL", "kling-2.6/image-to-video"),
		ImageAspectRatio: getEnv("KIE_IMAGE_ASPECT_RATIO", "16:9"),
		ImageQuality:     getEnv("KIE_IMAGE_QUALITY", "high"),
		VideoDuration:    getEnv("KIE_VIDEO_DURATION", "5"),
		RateInterval:     getEnvDuration("KIE_RATE_INTERVAL", time.Second),
		HTTPTimeout:      getEnvDuration("KIE_HTTP_TIMEOUT", 60*time.Second),

		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 120),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 5*time.Second),

		ManifestPath:  getEnv("MANIFEST_PATH", "public/generated/manifest.json"),
		CatalogPath:   os.Getenv("ASSET_CATALOG_PATH"),
		Policy:        strings.ToLower(getEnv("GENERATION_POLICY", PolicyRegenerate)),
		AssetsDir:     getEnv("ASSETS_DIR", "public/assets"),
		AssetsBaseURL: getEnv("ASSETS_BASE_URL", "/assets"),

		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		ManifestCacheTTL: getEnvDuration("MANIFEST_CACHE_TTL", 30*time.Second),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", c.PollMaxAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if strings.TrimSpace(c.ManifestPath) == "" {
		return fmt.Errorf("MANIFEST_PATH is required")
	}
	switch c.Policy {
	case PolicyRegenerate, PolicyResume:
	default:
		return fmt.Errorf("GENERATION_POLICY must be %q or %q, got %q", PolicyRegenerate, PolicyResume, c.Policy)
	}
	return nil
}

// loadEnvFiles loads each file on its own so a missing one does not stop the
// rest from being read.
func loadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5s") or plain milliseconds ("5000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
