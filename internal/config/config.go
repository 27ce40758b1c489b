package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret string

	AudioBasePath string

	TranscribeURL     string
	TranscribeTimeout time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	CORSOrigins []string
}

// FromEnv loads .env if present, then reads the environment.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		AuthSecret:        envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AudioBasePath:     envOr("AUDIO_BASE_PATH", "./data/audio"),
		TranscribeURL:     envOr("TRANSCRIBE_URL", "http://localhost:9090/v1/transcribe"),
		TranscribeTimeout: time.Duration(envInt("TRANSCRIBE_TIMEOUT_SEC", 30)) * time.Second,
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		RateLimitMax:      envInt("RATE_LIMIT_MAX", 10),
		CORSOrigins:       csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
