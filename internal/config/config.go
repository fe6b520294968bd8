// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	QuotaStatePath string
	DatabasePath   string
	DownloadDir    string
	UserAgentsPath string
	FFmpegPath     string
	LogLevel       string
	LogFile        string
	LogFormat      string

	MonthlyLimit           int
	FetchMaxAttempts       int
	MaxConcurrentDownloads int
	HLSSegmentRate         float64

	FetchRetryDelay     time.Duration
	FetchConnectTimeout time.Duration
	FetchReadTimeout    time.Duration
	HLSToolTimeout      time.Duration
	RefreshInterval     time.Duration

	FetchRetryClientErrors bool
	DesktopNotifications   bool

	UserAgents []string
}

// Default values
const (
	defaultMonthlyLimit           = 1500
	defaultFetchMaxAttempts       = 3
	defaultMaxConcurrentDownloads = 4
	defaultFetchRetryDelay        = 2 * time.Second
	defaultFetchConnectTimeout    = 10 * time.Second
	defaultFetchReadTimeout       = 30 * time.Second
	defaultHLSToolTimeout         = 5 * time.Minute
	defaultRefreshInterval        = 5 * time.Second
	defaultFFmpegPath             = "ffmpeg"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		QuotaStatePath: getEnvString("QUOTA_STATE_PATH", getDefaultQuotaStatePath()),
		DatabasePath:   getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		DownloadDir:    getEnvString("DOWNLOAD_DIR", getDefaultDownloadDir()),
		UserAgentsPath: getEnvString("USER_AGENTS_PATH", ""),
		FFmpegPath:     getEnvString("FFMPEG_PATH", defaultFFmpegPath),
		LogLevel:       getEnvString("LOG_LEVEL", "info"),
		LogFile:        getEnvString("LOG_FILE", ""),
		LogFormat:      getEnvString("LOG_FORMAT", "text"),

		MonthlyLimit:           getEnvInt("MONTHLY_LIMIT", defaultMonthlyLimit),
		FetchMaxAttempts:       getEnvInt("FETCH_MAX_ATTEMPTS", defaultFetchMaxAttempts),
		MaxConcurrentDownloads: getEnvInt("MAX_CONCURRENT_DOWNLOADS", defaultMaxConcurrentDownloads),
		HLSSegmentRate:         getEnvFloat("HLS_SEGMENT_RATE", 0),

		FetchRetryDelay:     getEnvDuration("FETCH_RETRY_DELAY", defaultFetchRetryDelay),
		FetchConnectTimeout: getEnvDuration("FETCH_CONNECT_TIMEOUT", defaultFetchConnectTimeout),
		FetchReadTimeout:    getEnvDuration("FETCH_READ_TIMEOUT", defaultFetchReadTimeout),
		HLSToolTimeout:      getEnvDuration("HLS_TOOL_TIMEOUT", defaultHLSToolTimeout),
		RefreshInterval:     getEnvDuration("REFRESH_INTERVAL", defaultRefreshInterval),

		FetchRetryClientErrors: getEnvBool("FETCH_RETRY_CLIENT_ERRORS", true),
		DesktopNotifications:   getEnvBool("DESKTOP_NOTIFICATIONS", true),
	}

	if cfg.MonthlyLimit <= 0 {
		return nil, fmt.Errorf("MONTHLY_LIMIT must be positive, got %d", cfg.MonthlyLimit)
	}
	if cfg.FetchMaxAttempts <= 0 {
		cfg.FetchMaxAttempts = defaultFetchMaxAttempts
	}
	if cfg.MaxConcurrentDownloads <= 0 {
		cfg.MaxConcurrentDownloads = defaultMaxConcurrentDownloads
	}

	agents, err := LoadUserAgents(cfg.UserAgentsPath)
	if err != nil {
		return nil, err
	}
	cfg.UserAgents = agents

	for _, dir := range []string{
		filepath.Dir(cfg.QuotaStatePath),
		filepath.Dir(cfg.DatabasePath),
		cfg.DownloadDir,
	} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "mediagate", ".env"),
			filepath.Join(home, ".mediagate", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mediagate")
}

// getDefaultQuotaStatePath returns the default path for the persisted quota document.
func getDefaultQuotaStatePath() string {
	dir := configDir()
	if dir == "" {
		return "quota.json"
	}
	return filepath.Join(dir, "quota.json")
}

// getDefaultDatabasePath returns the default path for the SQLite archive.
func getDefaultDatabasePath() string {
	dir := configDir()
	if dir == "" {
		return "archive.db"
	}
	return filepath.Join(dir, "archive.db")
}

func getDefaultDownloadDir() string {
	return filepath.Join(os.TempDir(), "mediagate")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultValue
}

// getEnvBool accepts the forms understood by strconv.ParseBool.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
