package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Minute, cfg.Triage.AckWindow)
	assert.Equal(t, 24*time.Hour, cfg.Triage.ResolveWindow)
	assert.Equal(t, 8*time.Hour, cfg.Alerts.FreshnessThreshold)
	assert.Equal(t, 15, cfg.Recovery.ConversionCaps[3])
	assert.NotEmpty(t, cfg.Reports.Departments)
}

func TestLoad(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Server.Port)
	})

	t.Run("partial file overlays defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "server:\n  port: \"9090\"\ntriage:\n  ack_window: 15m\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, 15*time.Minute, cfg.Triage.AckWindow)
		assert.Equal(t, 24*time.Hour, cfg.Triage.ResolveWindow)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "triage:\n  ack_window: 48h\nreports:\n  morning_cron: \"every morning\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolve_window")
		assert.Contains(t, err.Error(), "morning_cron")
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnv(envOf(map[string]string{
		"SERVER_PORT":      "7000",
		"LOG_FORMAT":       "json",
		"CORS_ORIGINS":     "https://ops.example.com, https://gm.example.com,",
		"DRAFTING_TIMEOUT": "20s",
		"OPENAI_API_KEY":   "",
		"REDIS_URL":        "redis://:secret@cache:6380/2",
	}))
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"https://ops.example.com", "https://gm.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 20*time.Second, cfg.Drafting.Timeout)
	assert.Empty(t, cfg.OpenAI.APIKey, "empty values do not override")
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)

	assert.Error(t, DefaultConfig().applyEnv(envOf(map[string]string{"DRAFTING_TIMEOUT": "soon"})))
}

func TestRedisSetURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
		wantErr  bool
	}{
		{url: "redis://localhost:6379", addr: "localhost:6379"},
		{url: "redis://admin:pw@10.0.0.1:6379/0", addr: "10.0.0.1:6379", password: "pw"},
		{url: "rediss://:tls@cache.internal:6380/3", addr: "cache.internal:6380", password: "tls", db: 3},
		{url: "http://localhost:6379", wantErr: true},
		{url: "redis://localhost:6379/db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			var r RedisConfig
			err := r.setURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, r.Addr)
			assert.Equal(t, tt.password, r.Password)
			assert.Equal(t, tt.db, r.DB)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"warning ratio", func(c *Config) { c.Triage.WarningRatio = 1.2 }},
		{"target", func(c *Config) { c.Recovery.TargetAverage = 6 }},
		{"caps", func(c *Config) { c.Recovery.ConversionCaps[5] = 3 }},
		{"complaint rating", func(c *Config) { c.Alerts.ComplaintMaxRating = 0 }},
		{"attempts", func(c *Config) { c.Drafting.MaxAttempts = 0 }},
		{"cron", func(c *Config) { c.Reports.SLASweepCron = "*/5 * * *" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
