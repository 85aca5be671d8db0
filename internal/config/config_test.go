package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, "default", cfg.DefaultProfile)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.AzureConfigured())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INSPECTOR_PORT", "9090")
	t.Setenv("INSPECTOR_CACHE_TTL", "30s")
	t.Setenv("INSPECTOR_DEFAULT_PROFILE", "bulk")
	t.Setenv("INSPECTOR_AZURE_CONNECTION_STRING", "UseDevelopmentStorage=true")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "bulk", cfg.DefaultProfile)
	assert.True(t, cfg.AzureConfigured())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\ncache_enabled: false\nlog_level: debug\n"), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"zero body size", func(c *Config) { c.MaxRequestBodySize = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"empty cache", func(c *Config) { c.CacheSize = 0 }},
		{"azure name without key", func(c *Config) { c.AzureAccountName = "acct" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
