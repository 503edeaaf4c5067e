// Package emit formats and delivers admitted advisories to the
// agent-visible channel and appends emission telemetry to a rotated
// log. Delivery failure degrades to false plus a debug log entry,
// never an error: a lost advisory is an acceptable outcome.
package emit

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// truncationMarker terminates advisories cut at the char budget.
const truncationMarker = "…"

// Emitter writes advisories to out and telemetry to the emission log.
type Emitter struct {
	out     io.Writer
	logPath string
	cfg     config.EmitConfig
	clock   func() time.Time
	log     *zap.SugaredLogger
}

// LogEntry is one line of the emission log. Empty metadata fields are
// stripped from the persisted form.
type LogEntry struct {
	TS         time.Time `json:"ts"`
	Authority  string    `json:"authority"`
	Text       string    `json:"text"`
	Tool       string    `json:"tool,omitempty"`
	AdviceID   string    `json:"advice_id,omitempty"`
	InsightKey string    `json:"insight_key,omitempty"`
	Source     string    `json:"source,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
}

// Meta carries optional emission telemetry.
type Meta struct {
	Tool       string
	AdviceID   string
	InsightKey string
	Source     string
	SessionID  string
	TraceID    string
}

// NewEmitter creates an emitter delivering to out.
func NewEmitter(out io.Writer, cfg config.EmitConfig, logPath string, log *zap.SugaredLogger, clock func() time.Time) *Emitter {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Emitter{out: out, logPath: logPath, cfg: cfg, clock: clock, log: log}
}

// Format renders text for an authority tier, truncating rune-safely to
// the character budget.
func Format(text string, authority advice.Authority, charBudget int) (string, bool) {
	var prefix string
	switch authority {
	case advice.AuthorityWhisper:
		prefix = "(spark) "
	case advice.AuthorityNote:
		prefix = "[spark] "
	case advice.AuthorityWarning:
		prefix = "[spark:warning] "
	case advice.AuthorityBlock:
		prefix = "[spark:block] "
	default:
		return "", false
	}

	formatted := prefix + text
	truncated := false
	if charBudget > 0 {
		runes := []rune(formatted)
		if len(runes) > charBudget {
			keep := charBudget - len([]rune(truncationMarker))
			if keep < 0 {
				keep = 0
			}
			formatted = string(runes[:keep]) + truncationMarker
			truncated = true
		}
	}
	return formatted, truncated
}

// Emit delivers text at the given authority. Silent authority is a
// no-op returning false. The emission log entry is best-effort.
func (e *Emitter) Emit(text string, authority advice.Authority) bool {
	return e.EmitWithMeta(text, authority, Meta{})
}

// EmitWithMeta is Emit plus telemetry fields for the emission log.
func (e *Emitter) EmitWithMeta(text string, authority advice.Authority, meta Meta) bool {
	formatted, truncated := Format(text, authority, e.cfg.CharBudget)
	if formatted == "" {
		return false
	}

	if _, err := fmt.Fprintln(e.out, formatted); err != nil {
		e.log.Debugw("delivery failed", "err", err)
		return false
	}

	entry := LogEntry{
		TS:         e.clock(),
		Authority:  authority.String(),
		Text:       formatted,
		Tool:       meta.Tool,
		AdviceID:   meta.AdviceID,
		InsightKey: meta.InsightKey,
		Source:     meta.Source,
		SessionID:  meta.SessionID,
		TraceID:    meta.TraceID,
		Truncated:  truncated,
	}
	if err := storage.AppendLine(e.logPath, entry, e.cfg.LogCap); err != nil {
		e.log.Debugw("emission log append failed", "err", err)
	}
	return true
}

// RecentEmissions returns up to max emission log entries, oldest
// first. Used by the pipeline to rebuild gate state and by the action
// matcher to find past emissions.
func (e *Emitter) RecentEmissions(max int) []LogEntry {
	return storage.DecodeLines[LogEntry](e.logPath, max)
}
