package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, 45, cfg.Render.TimeoutSecs)
	assert.Equal(t, 5, cfg.Render.MaxConcurrent)
	assert.Equal(t, 30, cfg.Pipeline.ReviewQualityThreshold)
	assert.Equal(t, 0.7, cfg.Discovery.CountryConfidenceMin)
	assert.Contains(t, cfg.Discovery.SupportedCountries, "US")
	assert.Equal(t, "sitecheck", cfg.Queue.TaskQueue)
	assert.Equal(t, 4, cfg.Queue.MaxAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SITECHECK_RENDER_MAX_CONCURRENT", "8")
	t.Setenv("SITECHECK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Render.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
