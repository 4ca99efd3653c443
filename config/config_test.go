package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pvyield/internal/yield"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "api:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.API.Port)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "monthly", cfg.Engine.Timeframe)
	assert.Equal(t, uint32(5), cfg.Engine.BreakerFailures)
	assert.Equal(t, 720*time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)

	losses := cfg.LossParameters()
	assert.Equal(t, 14.08, losses.SystemLossesPercent)
	assert.Equal(t, yield.ArrayTypeFixedRoofMount, losses.ArrayTypeCode)
	assert.Equal(t, 0.8, losses.PerformanceRatio)

	opts := cfg.Options()
	assert.Equal(t, yield.DefaultModuleClasses(), opts.ModuleClasses)
	assert.Equal(t, yield.DefaultDegradation(), opts.Degradation)
	assert.Nil(t, opts.Radius)
}

func TestLoad_ModelOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  timeframe: hourly
  radius: 50
  timeout: 15s
model:
  degradation_rate: 0.0055
  lifetime_years: 30
  module_classes:
    - id: 0
      name: Standard
      efficiency: 19.0
    - id: 1
      name: Premium
      efficiency: 22.0
  structure_array_types:
    carport: 1
`))
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, "hourly", opts.Timeframe)
	require.NotNil(t, opts.Radius)
	assert.Equal(t, 50, *opts.Radius)
	assert.Equal(t, 15*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, yield.Degradation{Rate: 0.0055, Years: 30}, opts.Degradation)
	require.Len(t, opts.ModuleClasses, 2)
	assert.Equal(t, 22.0, opts.ModuleClasses[1].EfficiencyPercent)
	assert.Equal(t, 1, opts.StructureArrayTypes["carport"])
	assert.Equal(t, yield.ArrayTypeOneAxis, opts.StructureArrayTypes["tracker"], "unlisted structures keep defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PVYIELD_ENGINE_API_KEY", "from-env")
	t.Setenv("PVYIELD_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "engine:\n  api_key: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Engine.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
