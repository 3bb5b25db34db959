package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "all", cfg.Scope)
	assert.Equal(t, 500, cfg.TargetKB)
	assert.Equal(t, 0.2, cfg.ToleranceRatio)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 1, cfg.DeleteRetryPasses)
	assert.Equal(t, 1, cfg.DeleteRetryCredits)
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.DryRun)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scope: single\ntarget_kb: 250\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "single", cfg.Scope)
	assert.Equal(t, 250, cfg.TargetKB)
	// Untouched keys keep defaults.
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_kb: 250\n"), 0o600))
	t.Setenv("PRESSFIT_TARGET_KB", "100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.TargetKB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad scope", func(c *Config) { c.Scope = "largest" }, "scope"},
		{"zero target", func(c *Config) { c.TargetKB = 0 }, "target_kb"},
		{"negative tolerance", func(c *Config) { c.ToleranceRatio = -0.1 }, "tolerance_ratio"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"negative retry budget", func(c *Config) { c.DeleteRetryPasses = -1 }, "retry budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Scope: "all", TargetKB: 500, Concurrency: 4}
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
