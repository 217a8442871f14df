package config

import (
	"os"
	"path/filepath"
	"testing"

	"carlot/internal/featureflags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:        "sqlite://file::memory:",
		Port:               "3000",
		SessionSecret:      "secure-secret-at-least-32-chars-long",
		SessionTTLHours:    24,
		RateLimitPerMinute: 100,
		TracingExporter:    "stdout",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError string
	}{
		{"valid", func(_ *Config) {}, ""},
		{"missing database url", func(c *Config) { c.DatabaseURL = "  " }, "DATABASE_URL is required"},
		{"missing port", func(c *Config) { c.Port = "" }, "PORT is required"},
		{"missing session secret", func(c *Config) { c.SessionSecret = "" }, "SESSION_SECRET is required"},
		{"bad exporter", func(c *Config) { c.TracingExporter = "jaeger" }, "TRACING_EXPORTER"},
		{"zero rate limit", func(c *Config) { c.RateLimitPerMinute = 0 }, "RATE_LIMIT_PER_MINUTE"},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.SessionSecret = defaultSessionSecret
		}, "changed from the default"},
		{"production short secret", func(c *Config) {
			c.Env = "prod"
			c.SessionSecret = "short"
		}, "at least 32 characters"},
		{"production strong secret", func(c *Config) { c.Env = "production" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "sqlite://file::memory:")
	t.Setenv("PORT", "4000")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "42")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://file::memory:", c.DatabaseURL)
	assert.Equal(t, "4000", c.Port)
	assert.Equal(t, 42, c.RateLimitPerMinute)
	assert.Equal(t, 24*7, c.SessionTTLHours)
	assert.True(t, c.UsesSQLite())
	assert.False(t, c.IsProduction())
	assert.Equal(t, featureflags.Defaults, c.FeatureFlags)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "DATABASE_URL=sqlite://dotenv.db\nPORT=5000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "6000")
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://dotenv.db", c.DatabaseURL)
	assert.Equal(t, "6000", c.Port, "process environment wins over .env")
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "4000")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoadConfig_RequiresPort(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "postgres://localhost/cars")
	t.Setenv("PORT", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT is required")
}
