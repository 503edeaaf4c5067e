// Package config holds the spark configuration snapshot. A Config is
// loaded once per invocation from .spark/config.json (missing or
// corrupt files fall back to defaults, never an error) and then
// threaded explicitly through every pipeline stage. There is no
// package-level mutable state.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is an immutable snapshot of all spark tunables.
type Config struct {
	Debug bool   `json:"debug_mode"`
	Home  string `json:"-"` // state root, e.g. ~/.spark; set by Load

	LogLevel string `json:"log_level,omitempty"`

	Cache    CacheConfig    `json:"cache"`
	Prefetch PrefetchConfig `json:"prefetch"`
	Gate     GateConfig     `json:"gate"`
	Dedup    DedupConfig    `json:"dedup"`
	Emit     EmitConfig     `json:"emit"`
	Outcome  OutcomeConfig  `json:"outcome"`
	Tuner    TunerConfig    `json:"tuner"`
}

// CacheConfig tunes the advisory packet cache.
type CacheConfig struct {
	Capacity          int     `json:"capacity"`
	TTLSeconds        int     `json:"ttl_seconds"`
	MinLineageQuality float64 `json:"min_lineage_quality"`
}

// TTL returns the packet freshness window.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// PrefetchConfig tunes the planner and worker.
type PrefetchConfig struct {
	MaxJobs        int     `json:"max_jobs"`
	MaxToolsPerJob int     `json:"max_tools_per_job"`
	MinProbability float64 `json:"min_probability"`
	ProcessedCap   int     `json:"processed_cap"`
	TickSeconds    int     `json:"tick_seconds"`
}

// Tick returns the watch-mode fallback interval.
func (c PrefetchConfig) Tick() time.Duration { return time.Duration(c.TickSeconds) * time.Second }

// GateConfig tunes the admission gate.
type GateConfig struct {
	EmitBudget          int `json:"emit_budget"`
	GlobalWindowSeconds int `json:"global_window_seconds"`
}

// GlobalWindow returns the recent-global-emission window.
func (c GateConfig) GlobalWindow() time.Duration {
	return time.Duration(c.GlobalWindowSeconds) * time.Second
}

// DedupConfig tunes the dedup controller.
type DedupConfig struct {
	CooldownSeconds        int `json:"cooldown_seconds"`
	InsightCooldownSeconds int `json:"insight_cooldown_seconds"`
	LogCap                 int `json:"log_cap"`
}

// Cooldown returns the per-advice/text repeat window.
func (c DedupConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// InsightCooldown returns the insight-level repeat window.
func (c DedupConfig) InsightCooldown() time.Duration {
	return time.Duration(c.InsightCooldownSeconds) * time.Second
}

// EmitConfig tunes the emitter.
type EmitConfig struct {
	CharBudget int `json:"char_budget"`
	LogCap     int `json:"log_cap"`
}

// OutcomeConfig tunes the action matcher and effect evaluator.
type OutcomeConfig struct {
	MatchWindowSeconds int    `json:"match_window_seconds"`
	GenAIModel         string `json:"genai_model,omitempty"`
	FeedbackLogCap     int    `json:"feedback_log_cap"`
	OutcomeLogCap      int    `json:"outcome_log_cap"`
}

// MatchWindow returns the evidence search window.
func (c OutcomeConfig) MatchWindow() time.Duration {
	return time.Duration(c.MatchWindowSeconds) * time.Second
}

// TunerConfig tunes the auto-tuner.
type TunerConfig struct {
	MinSamples      int     `json:"min_samples"`
	MaxChangePerRun float64 `json:"max_change_per_run"`
	Tolerance       float64 `json:"tolerance"`
	IntervalSeconds int     `json:"interval_seconds"`
	RunLogCap       int     `json:"run_log_cap"`
}

// Interval returns the minimum gap between unforced tuning runs.
func (c TunerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Capacity:          200,
			TTLSeconds:        6 * 3600,
			MinLineageQuality: 0.3,
		},
		Prefetch: PrefetchConfig{
			MaxJobs:        10,
			MaxToolsPerJob: 3,
			MinProbability: 0.15,
			ProcessedCap:   500,
			TickSeconds:    30,
		},
		Gate: GateConfig{
			EmitBudget:          1,
			GlobalWindowSeconds: 3600,
		},
		Dedup: DedupConfig{
			CooldownSeconds:        1800,
			InsightCooldownSeconds: 4 * 3600,
			LogCap:                 200,
		},
		Emit: EmitConfig{
			CharBudget: 280,
			LogCap:     500,
		},
		Outcome: OutcomeConfig{
			MatchWindowSeconds: 6 * 3600,
			FeedbackLogCap:     1000,
			OutcomeLogCap:      2000,
		},
		Tuner: TunerConfig{
			MinSamples:      5,
			MaxChangePerRun: 0.1,
			Tolerance:       0.01,
			IntervalSeconds: 24 * 3600,
			RunLogCap:       20,
		},
	}
}

// Load builds a Config for the given state root: defaults, overlaid by
// .spark/config.json if present and parseable, overlaid by SPARK_* env
// vars. It never fails; a corrupt config file is ignored.
func Load(home string) Config {
	cfg := Default()
	if home == "" {
		home = DefaultHome()
	}
	cfg.Home = home

	if data, err := os.ReadFile(filepath.Join(home, "config.json")); err == nil {
		// Unmarshal over the defaults so absent keys keep their values.
		var overlay Config
		overlay = cfg
		if json.Unmarshal(data, &overlay) == nil {
			overlay.Home = home
			cfg = overlay
		}
	}

	applyEnv(&cfg)
	return cfg
}

// DefaultHome returns ~/.spark, falling back to a relative .spark when
// the home directory cannot be resolved.
func DefaultHome() string {
	if env := os.Getenv("SPARK_HOME"); env != "" {
		return env
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".spark")
	}
	return ".spark"
}

// applyEnv applies SPARK_* overrides on top of the loaded snapshot.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SPARK_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v := os.Getenv("SPARK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SPARK_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.Capacity = n
		}
	}
	if v := os.Getenv("SPARK_EMIT_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Gate.EmitBudget = n
		}
	}
	if v := os.Getenv("SPARK_GENAI_MODEL"); v != "" {
		cfg.Outcome.GenAIModel = v
	}
}
