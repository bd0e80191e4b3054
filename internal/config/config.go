// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/vehicle-dashboard/internal/aggregator"
)

// Config holds the application configuration.
type Config struct {
	Location      *time.Location
	DatabasePath  string
	UserID        string
	OCRURL        string
	MQTT          MQTTConfig
	OCRTimeout    time.Duration
	WatchDebounce time.Duration
	WindowDays    int
	MonthOrder    aggregator.MonthOrder
}

// MQTTConfig holds the broker settings used to publish snapshots.
type MQTTConfig struct {
	Broker      string // host:port, empty disables publishing
	Username    string
	Password    string
	TopicPrefix string
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Default values
const (
	defaultOCRURL        = "http://prahtzwal.pythonanywhere.com/ocr"
	defaultOCRTimeout    = 30 * time.Second
	defaultWatchDebounce = 250 * time.Millisecond
	defaultWindowDays    = 30
	defaultTopicPrefix   = "vehicle_dashboard"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DatabasePath:  getEnvString("VDASH_DATABASE_PATH", getDefaultDatabasePath()),
		UserID:        getEnvString("VDASH_USER_ID", ""),
		OCRURL:        getEnvString("VDASH_OCR_URL", defaultOCRURL),
		OCRTimeout:    getEnvDuration("VDASH_OCR_TIMEOUT", defaultOCRTimeout),
		WatchDebounce: getEnvDuration("VDASH_WATCH_DEBOUNCE", defaultWatchDebounce),
		WindowDays:    getEnvInt("VDASH_WINDOW_DAYS", defaultWindowDays),
		MQTT: MQTTConfig{
			Broker:      getEnvString("VDASH_MQTT_BROKER", ""),
			Username:    getEnvString("VDASH_MQTT_USERNAME", ""),
			Password:    getEnvString("VDASH_MQTT_PASSWORD", ""),
			TopicPrefix: getEnvString("VDASH_MQTT_TOPIC_PREFIX", defaultTopicPrefix),
		},
	}

	if cfg.WindowDays <= 0 {
		return nil, fmt.Errorf("VDASH_WINDOW_DAYS must be positive, got %d", cfg.WindowDays)
	}

	loc, err := loadLocation(getEnvString("VDASH_TIMEZONE", ""))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	order, err := aggregator.ParseMonthOrder(getEnvString("VDASH_MONTH_ORDER", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid VDASH_MONTH_ORDER: %w", err)
	}
	cfg.MonthOrder = order

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AggregatorOptions returns the aggregation settings described by cfg.
func (c *Config) AggregatorOptions() []aggregator.Option {
	return []aggregator.Option{
		aggregator.WithWindowDays(c.WindowDays),
		aggregator.WithLocation(c.Location),
		aggregator.WithMonthOrder(c.MonthOrder),
	}
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vdash", ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vehicle.db"
	}
	return filepath.Join(home, ".config", "vdash", "vehicle.db")
}

// loadLocation resolves an IANA zone name; empty means the local zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid VDASH_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
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
