package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Recording     RecordingConfig     `toml:"recording"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Categorizer   CategorizerConfig   `toml:"categorization"`
	Auth          AuthConfig          `toml:"auth"`
	Logging       LoggingConfig       `toml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ReadTimeoutSec     int      `toml:"read_timeout_seconds"`
	WriteTimeoutSec    int      `toml:"write_timeout_seconds"`
	ShutdownTimeoutSec int      `toml:"shutdown_timeout_seconds"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// RecordingConfig holds recording capture and upload settings
type RecordingConfig struct {
	StorageDir          string `toml:"storage_dir"`
	SampleRate          int    `toml:"sample_rate"`
	Channels            int    `toml:"channels"`
	MaxUploadSizeMB     int    `toml:"max_upload_size_mb"`
	ContextFreshnessMs  int    `toml:"context_freshness_ms"`
	DeleteAfterUpload   bool   `toml:"delete_after_upload"`
	NavigateAwayDelayMs int    `toml:"navigate_away_delay_ms"`
}

// TranscriptionConfig holds settings for the Whisper transcription service
type TranscriptionConfig struct {
	BaseURL         string `toml:"base_url"`
	Language        string `toml:"language"`
	TimeoutSec      int    `toml:"timeout_seconds"`
	RetryMaxAttempts int   `toml:"retry_max_attempts"`
	RetryBackoffMs  int    `toml:"retry_backoff_ms"`
}

// CategorizerConfig holds settings for the note-structuring step
type CategorizerConfig struct {
	Enabled          bool   `toml:"enabled"`
	OpenAIAPIKey     string `toml:"openai_api_key"`
	Model            string `toml:"model"`
	IntervalSeconds  int    `toml:"interval_seconds"`
	BatchSize        int    `toml:"batch_size"`
	TimeoutSec       int    `toml:"timeout_seconds"`
	SystemPromptPath string `toml:"system_prompt_path"`
}

// AuthConfig holds staff token settings
type AuthConfig struct {
	SigningKey     string       `toml:"signing_key"`
	TokenTTLHours  int          `toml:"token_ttl_hours"`
	Staff          []StaffEntry `toml:"staff"`
}

// StaffEntry is a configured staff member allowed to request tokens
type StaffEntry struct {
	ID          string `toml:"id"`
	DisplayName string `toml:"display_name"`
	Role        string `toml:"role"` // "doctor" or "nurse"
	Secret      string `toml:"secret"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSec:     30,
			WriteTimeoutSec:    30,
			ShutdownTimeoutSec: 10,
		},
		Database: DatabaseConfig{
			Path: "voicenotes.db",
		},
		Recording: RecordingConfig{
			StorageDir:          "recordings",
			SampleRate:          16000,
			Channels:            1,
			MaxUploadSizeMB:     64,
			ContextFreshnessMs:  10000,
			DeleteAfterUpload:   true,
			NavigateAwayDelayMs: 3000,
		},
		Transcription: TranscriptionConfig{
			BaseURL:          "http://localhost:8081",
			Language:         "ja",
			TimeoutSec:       120,
			RetryMaxAttempts: 3,
			RetryBackoffMs:   1000,
		},
		Categorizer: CategorizerConfig{
			Enabled:         true,
			Model:           "gpt-4o",
			IntervalSeconds: 5,
			BatchSize:       4,
			TimeoutSec:      60,
		},
		Auth: AuthConfig{
			TokenTTLHours: 12,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the configuration from the given TOML file, applying defaults
// for any missing values
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides for secrets
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Categorizer.OpenAIAPIKey = key
	}
	if key := os.Getenv("VOICENOTES_SIGNING_KEY"); key != "" {
		cfg.Auth.SigningKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels != 1 && c.Recording.Channels != 2 {
		return fmt.Errorf("invalid channel count: %d", c.Recording.Channels)
	}
	if c.Recording.ContextFreshnessMs <= 0 {
		return fmt.Errorf("context freshness window must be positive")
	}
	if c.Transcription.BaseURL == "" {
		return fmt.Errorf("transcription base_url must not be empty")
	}
	if c.Categorizer.Enabled {
		if c.Categorizer.IntervalSeconds <= 0 {
			return fmt.Errorf("categorization interval must be positive")
		}
		if c.Categorizer.BatchSize <= 0 {
			return fmt.Errorf("categorization batch size must be positive")
		}
	}
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth signing key must not be empty")
	}
	for i, s := range c.Auth.Staff {
		if s.ID == "" || s.Secret == "" {
			return fmt.Errorf("staff entry %d is missing id or secret", i)
		}
		if s.Role != "doctor" && s.Role != "nurse" {
			return fmt.Errorf("staff entry %s has unknown role %q", s.ID, s.Role)
		}
	}
	return nil
}

// ContextFreshness returns the navigation-context freshness window
func (c *Config) ContextFreshness() time.Duration {
	return time.Duration(c.Recording.ContextFreshnessMs) * time.Millisecond
}

// EnsureDirs creates directories the service writes to
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.Recording.StorageDir, 0755); err != nil {
		return fmt.Errorf("failed to create recording storage dir: %w", err)
	}
	if dir := filepath.Dir(c.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database dir: %w", err)
		}
	}
	return nil
}

// Sanitized returns a copy of the config safe to expose over the API
func (c *Config) Sanitized() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host": c.Server.Host,
			"port": c.Server.Port,
		},
		"recording": map[string]interface{}{
			"sample_rate":            c.Recording.SampleRate,
			"channels":               c.Recording.Channels,
			"max_upload_size_mb":     c.Recording.MaxUploadSizeMB,
			"context_freshness_ms":   c.Recording.ContextFreshnessMs,
			"navigate_away_delay_ms": c.Recording.NavigateAwayDelayMs,
		},
		"transcription": map[string]interface{}{
			"language": c.Transcription.Language,
		},
		"categorization": map[string]interface{}{
			"enabled": c.Categorizer.Enabled,
			"model":   c.Categorizer.Model,
		},
	}
}
