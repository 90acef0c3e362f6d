package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port            string
	UpstreamBaseURL string
	CookieName      string
	CookieTTL       time.Duration
	RequestTimeout  time.Duration
	RateBurst       int
	RatePerSecond   int
	SessionIdleTTL  time.Duration
	AuditDSN        string
	CORSOrigins     []string
}

// Load reads configuration from the environment after a best-effort .env
// load, and performs minimal validation. The audit DSN is optional; every
// other default is serviceable for local development except the upstream URL.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:            fallback(os.Getenv("FIRECLOUD_PORT"), "8080"),
		UpstreamBaseURL: strings.TrimSpace(os.Getenv("FIRECLOUD_UPSTREAM_URL")),
		CookieName:      fallback(os.Getenv("FIRECLOUD_COOKIE_NAME"), "firecloud_token"),
		CookieTTL:       durationEnv("FIRECLOUD_COOKIE_TTL_HOURS", time.Hour, 24*7),
		RequestTimeout:  durationEnv("FIRECLOUD_REQUEST_TIMEOUT_SECONDS", time.Second, 15),
		RateBurst:       intEnv("FIRECLOUD_RATE_BURST", 20),
		RatePerSecond:   intEnv("FIRECLOUD_RATE_PER_SECOND", 10),
		SessionIdleTTL:  durationEnv("FIRECLOUD_SESSION_IDLE_MINUTES", time.Minute, 60),
		AuditDSN:        strings.TrimSpace(os.Getenv("FIRECLOUD_PG_DSN")),
		CORSOrigins:     parseCSV(fallback(os.Getenv("FIRECLOUD_CORS_ORIGINS"), "")),
	}

	if cfg.UpstreamBaseURL == "" {
		return Config{}, errors.New("FIRECLOUD_UPSTREAM_URL is required")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func durationEnv(key string, unit time.Duration, def int) time.Duration {
	return time.Duration(intEnv(key, def)) * unit
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
