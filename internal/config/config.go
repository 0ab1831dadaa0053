package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the ledger service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	// Ledger policy knobs. These drive the policy engine and the
	// mark/undo rules; tests vary them without touching logic.
	ExcuseDays      int
	FinePerDay      int
	AlertThreshold  int
	UndoWindow      time.Duration
	StoreTimeout    time.Duration
	ConflictRetries int
	Timezone        string

	ReportCacheTTL time.Duration

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	EvidenceMaxSizeMB   int

	AIProvider      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves the institution timezone used for calendar-day
// boundaries and the undo window. Day math never uses host-local time.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "LateMark API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("excuse_days", 2)
	v.SetDefault("fine_per_day", 5)
	v.SetDefault("alert_threshold", 5)
	v.SetDefault("undo_window", "10m")
	v.SetDefault("store_timeout", "5s")
	v.SetDefault("conflict_retries", 3)
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("report.cache_ttl", "2m")
	v.SetDefault("cloudinary.folder", "latemark/evidence")
	v.SetDefault("evidence_max_size_mb", 5)
	v.SetDefault("ai.provider", "openai")

	undoWindow, err := time.ParseDuration(v.GetString("undo_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid undo window: %w", err)
	}

	storeTimeout, err := time.ParseDuration(v.GetString("store_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid store timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("report.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid report cache ttl: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		ExcuseDays:          v.GetInt("excuse_days"),
		FinePerDay:          v.GetInt("fine_per_day"),
		AlertThreshold:      v.GetInt("alert_threshold"),
		UndoWindow:          undoWindow,
		StoreTimeout:        storeTimeout,
		ConflictRetries:     v.GetInt("conflict_retries"),
		Timezone:            v.GetString("timezone"),
		ReportCacheTTL:      cacheTTL,
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),
		EvidenceMaxSizeMB:   v.GetInt("evidence_max_size_mb"),
		AIProvider:          strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ExcuseDays < 0 {
		return Config{}, fmt.Errorf("excuse days must not be negative")
	}

	if cfg.FinePerDay <= 0 {
		return Config{}, fmt.Errorf("fine per day must be positive")
	}

	if cfg.ConflictRetries <= 0 {
		cfg.ConflictRetries = 3
	}

	if cfg.EvidenceMaxSizeMB <= 0 {
		cfg.EvidenceMaxSizeMB = 5
	}

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
