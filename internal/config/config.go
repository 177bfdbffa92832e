// Package config loads servare's runtime configuration: environment
// variables, optionally layered over a YAML file, read once at
// startup and treated as immutable afterward.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the server and job runner need.
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int

	// HTTP Fetcher
	FetchTimeout   time.Duration
	FetchMaxSize   int64
	FaviconTimeout time.Duration

	// Job Runner
	JobRunInterval  time.Duration
	ManageJobsLimit int
	RunJobsLimit    int
	MaxJobAttempts  int

	// Rate limiting
	RateLimitGeneral int
	RateLimitFeedReg int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// fileConfig mirrors the subset of Config that may be set from the
// optional YAML config file; environment variables always win over
// it, and its absence is never an error.
type fileConfig struct {
	DatabaseURL       string `yaml:"database_url"`
	SessionSecret     string `yaml:"session_secret"`
	BaseURL           string `yaml:"base_url"`
	ServerPort        string `yaml:"server_port"`
	CORSAllowedOrigin string `yaml:"cors_allowed_origin"`
}

// configFilePaths are checked in order; the first that exists is
// loaded. A missing file at every path is not an error — env vars (or
// their defaults) stand alone in that case.
var configFilePaths = []string{
	"servare.yaml",
	"/etc/servare/servare.yaml",
}

// Load reads the optional YAML config file, then environment
// variables (which override any value the file set), and returns the
// resulting Config. It returns an error if a required value is set by
// neither source.
func Load() (*Config, error) {
	fc := loadFileConfig()

	cfg := &Config{}
	var missing []string

	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), fc.DatabaseURL)
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = firstNonEmpty(os.Getenv("SESSION_SECRET"), fc.SessionSecret)
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = firstNonEmpty(os.Getenv("BASE_URL"), fc.BaseURL)
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required configuration values are not set: %v", missing)
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FaviconTimeout = getEnvDuration("FAVICON_TIMEOUT", 5*time.Second)
	cfg.JobRunInterval = getEnvDuration("JOB_RUN_INTERVAL", time.Minute)
	cfg.ManageJobsLimit = getEnvInt("MANAGE_JOBS_LIMIT", 500)
	cfg.RunJobsLimit = getEnvInt("RUN_JOBS_LIMIT", 50)
	cfg.MaxJobAttempts = getEnvInt("MAX_JOB_ATTEMPTS", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFeedReg = getEnvInt("RATE_LIMIT_FEED_REG", 10)
	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.ServerPort, "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = firstNonEmpty(os.Getenv("CORS_ALLOWED_ORIGIN"), fc.CORSAllowedOrigin, "http://localhost:3000")

	return cfg, nil
}

func loadFileConfig() fileConfig {
	for _, path := range configFilePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			continue
		}
		return fc
	}
	return fileConfig{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
