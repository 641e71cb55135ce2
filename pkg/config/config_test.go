package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2000.0, cfg.Feedback.Mu)
	assert.Equal(t, 10, cfg.Feedback.DefaultTopN)
	assert.Equal(t, 5, cfg.Feedback.DefaultTopK)
	assert.Equal(t, 0.5, cfg.Feedback.DefaultAlpha)
	assert.Equal(t, "data/index", cfg.Indexer.DataDir)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
feedback:
  mu: 1000
  defaultTopK: 3
redis:
  cacheTTL: 2m
indexer:
  dataDir: /tmp/prf
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("PRF_FEEDBACK_ALPHA", "0.25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, cfg.Feedback.Mu)
	assert.Equal(t, 3, cfg.Feedback.DefaultTopK)
	assert.Equal(t, 0.25, cfg.Feedback.DefaultAlpha)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "/tmp/prf", cfg.Indexer.DataDir)
	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Feedback.DefaultTopN)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero mu", func(c *Config) { c.Feedback.Mu = 0 }},
		{"negative mu", func(c *Config) { c.Feedback.Mu = -5 }},
		{"alpha above one", func(c *Config) { c.Feedback.DefaultAlpha = 1.5 }},
		{"alpha below zero", func(c *Config) { c.Feedback.DefaultAlpha = -0.1 }},
		{"zero topN", func(c *Config) { c.Feedback.DefaultTopN = 0 }},
		{"zero topK", func(c *Config) { c.Feedback.DefaultTopK = 0 }},
		{"max below default", func(c *Config) { c.Feedback.MaxTopN = 1 }},
		{"no data dir", func(c *Config) { c.Indexer.DataDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
