// Package logging provides config-driven categorized file logging for
// spark. Logs are written to .spark/logs/ with a separate file per
// category. When debug mode is off nothing is written at all: the hook
// path must stay silent on an agent's stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a pipeline stage's log stream.
type Category string

const (
	CategoryPipeline Category = "pipeline"
	CategoryCache    Category = "cache"
	CategoryPrefetch Category = "prefetch"
	CategoryGate     Category = "gate"
	CategoryDedup    Category = "dedup"
	CategoryEmit     Category = "emit"
	CategoryOutcome  Category = "outcome"
	CategoryTuner    Category = "tuner"
)

// Options configures a Registry.
type Options struct {
	Dir   string // logs directory, e.g. ~/.spark/logs
	Debug bool   // when false every logger is a no-op
	Level string // debug/info/warn/error, default debug
}

// Registry hands out per-category zap loggers. It is an explicit
// object threaded through the pipeline context rather than package
// state, so tests and concurrent processes get isolated instances.
type Registry struct {
	mu      sync.Mutex
	opts    Options
	level   zapcore.Level
	loggers map[Category]*zap.SugaredLogger
	files   []*os.File
	nop     *zap.SugaredLogger
}

// New creates a Registry. It never fails: on any setup problem the
// affected category degrades to a no-op logger.
func New(opts Options) *Registry {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		if parsed, err := zapcore.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	return &Registry{
		opts:    opts,
		level:   level,
		loggers: make(map[Category]*zap.SugaredLogger),
		nop:     zap.NewNop().Sugar(),
	}
}

// Get returns the logger for a category, creating it on first use.
func (r *Registry) Get(category Category) *zap.SugaredLogger {
	if r == nil || !r.opts.Debug || r.opts.Dir == "" {
		return zap.NewNop().Sugar()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[category]; ok {
		return l
	}

	if err := os.MkdirAll(r.opts.Dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not create %s: %v\n", r.opts.Dir, err)
		r.loggers[category] = r.nop
		return r.nop
	}

	// Date-prefixed filenames keep rotation a matter of deleting old days.
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	path := filepath.Join(r.opts.Dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		r.loggers[category] = r.nop
		return r.nop
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), r.level)
	l := zap.New(core).Sugar().With("cat", string(category))

	r.loggers[category] = l
	r.files = append(r.files, file)
	return l
}

// Close flushes and closes all open log files.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.loggers {
		_ = l.Sync()
	}
	for _, f := range r.files {
		f.Close()
	}
	r.loggers = make(map[Category]*zap.SugaredLogger)
	r.files = nil
}
