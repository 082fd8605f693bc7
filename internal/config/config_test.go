package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValidOnceSigned(t *testing.T) {
	cfg := Default()
	// The only default with no safe value is the signing key
	assert.Error(t, cfg.Validate())

	cfg.Auth.SigningKey = "test-key"
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 16000, cfg.Recording.SampleRate)
	assert.Equal(t, "ja", cfg.Transcription.Language)
	assert.Equal(t, 10*time.Second, cfg.ContextFreshness())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 9090

[recording]
context_freshness_ms = 5000

[auth]
signing_key = "file-key"

[[auth.staff]]
id = "staff-1"
display_name = "Tanaka Hanako"
role = "nurse"
secret = "s3cret"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.ContextFreshness())
	// Untouched values keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "ja", cfg.Transcription.Language)

	assert.Len(t, cfg.Auth.Staff, 1)
	assert.Equal(t, "nurse", cfg.Auth.Staff[0].Role)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesSigningKey(t *testing.T) {
	t.Setenv("VOICENOTES_SIGNING_KEY", "env-key")

	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Auth.SigningKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero sample rate", func(c *Config) { c.Recording.SampleRate = 0 }},
		{"surround channels", func(c *Config) { c.Recording.Channels = 6 }},
		{"zero freshness window", func(c *Config) { c.Recording.ContextFreshnessMs = 0 }},
		{"empty transcription url", func(c *Config) { c.Transcription.BaseURL = "" }},
		{"zero categorizer interval", func(c *Config) { c.Categorizer.IntervalSeconds = 0 }},
		{"staff without secret", func(c *Config) {
			c.Auth.Staff = []StaffEntry{{ID: "staff-1", Role: "nurse"}}
		}},
		{"staff with unknown role", func(c *Config) {
			c.Auth.Staff = []StaffEntry{{ID: "staff-1", Role: "admin", Secret: "x"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.SigningKey = "test-key"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSanitizedExcludesSecrets(t *testing.T) {
	cfg := Default()
	cfg.Auth.SigningKey = "secret-key"
	cfg.Categorizer.OpenAIAPIKey = "sk-secret"

	out := cfg.Sanitized()
	assert.NotContains(t, out, "auth")
	for _, section := range out {
		if m, ok := section.(map[string]interface{}); ok {
			for _, v := range m {
				assert.NotEqual(t, "secret-key", v)
				assert.NotEqual(t, "sk-secret", v)
			}
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Recording.StorageDir = filepath.Join(dir, "recordings")
	cfg.Database.Path = filepath.Join(dir, "db", "voicenotes.db")

	assert.NoError(t, cfg.EnsureDirs())

	info, err := os.Stat(cfg.Recording.StorageDir)
	assert.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(dir, "db"))
	assert.NoError(t, err)
}
