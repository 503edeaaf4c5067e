package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.Debug)
	assert.Equal(t, 200, cfg.Cache.Capacity)
	assert.Equal(t, 6*time.Hour, cfg.Cache.TTL())
	assert.InDelta(t, 0.3, cfg.Cache.MinLineageQuality, 1e-9)
	assert.Equal(t, 1, cfg.Gate.EmitBudget)
	assert.Equal(t, time.Hour, cfg.Gate.GlobalWindow())
	assert.Equal(t, 30*time.Minute, cfg.Dedup.Cooldown())
	assert.Equal(t, 4*time.Hour, cfg.Dedup.InsightCooldown())
	assert.Equal(t, 280, cfg.Emit.CharBudget)
	assert.Equal(t, 6*time.Hour, cfg.Outcome.MatchWindow())
	assert.Equal(t, 5, cfg.Tuner.MinSamples)
	assert.InDelta(t, 0.1, cfg.Tuner.MaxChangePerRun, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Tuner.Interval())
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	home := t.TempDir()
	data := `{"debug_mode": true, "cache": {"capacity": 50, "ttl_seconds": 21600, "min_lineage_quality": 0.3}, "gate": {"emit_budget": 2, "global_window_seconds": 3600}}`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.json"), []byte(data), 0644))

	cfg := Load(home)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.Equal(t, 2, cfg.Gate.EmitBudget)
	assert.Equal(t, home, cfg.Home)
	// Untouched sections keep their defaults.
	assert.Equal(t, 280, cfg.Emit.CharBudget)
	assert.Equal(t, 5, cfg.Tuner.MinSamples)
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.json"), []byte("{nope"), 0644))

	cfg := Load(home)
	assert.Equal(t, 200, cfg.Cache.Capacity)
	assert.False(t, cfg.Debug)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(t.TempDir())
	assert.Equal(t, Default().Cache, cfg.Cache)
	assert.Equal(t, Default().Tuner, cfg.Tuner)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPARK_DEBUG", "true")
	t.Setenv("SPARK_CACHE_CAPACITY", "77")
	t.Setenv("SPARK_EMIT_BUDGET", "3")
	t.Setenv("SPARK_LOG_LEVEL", "debug")
	t.Setenv("SPARK_GENAI_MODEL", "gemini-2.5-flash")

	cfg := Load(t.TempDir())
	assert.True(t, cfg.Debug)
	assert.Equal(t, 77, cfg.Cache.Capacity)
	assert.Equal(t, 3, cfg.Gate.EmitBudget)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gemini-2.5-flash", cfg.Outcome.GenAIModel)
}

func TestEnvOverridesRejectGarbage(t *testing.T) {
	t.Setenv("SPARK_CACHE_CAPACITY", "not-a-number")
	t.Setenv("SPARK_DEBUG", "maybe")

	cfg := Load(t.TempDir())
	assert.Equal(t, 200, cfg.Cache.Capacity)
	assert.False(t, cfg.Debug)
}

func TestDefaultHomeHonorsEnv(t *testing.T) {
	t.Setenv("SPARK_HOME", "/tmp/spark-home-test")
	assert.Equal(t, "/tmp/spark-home-test", DefaultHome())
}

func TestPathsLayout(t *testing.T) {
	cfg := Default()
	cfg.Home = "/state/.spark"
	p := cfg.Paths()

	assert.Equal(t, "/state/.spark", p.Root)
	assert.Equal(t, filepath.Join("/state/.spark", "packets", "index.json"), p.PacketsIndex)
	assert.Equal(t, filepath.Join("/state/.spark", "queue", "jobs.json"), p.QueueJobs)
	assert.Equal(t, filepath.Join("/state/.spark", "dedup", "emitted.ndjson"), p.DedupLog)
	assert.Equal(t, filepath.Join("/state/.spark", "tuner", "boosts.json"), p.BoostsFile)
}
