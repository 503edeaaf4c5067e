// Package outcome closes the advisory feedback loop: the action
// matcher links a past emission to later evidence, and the effect
// evaluator classifies what the advisory actually did. Evidence
// arrives on two NDJSON streams written by external collaborators:
// explicit feedback rows referencing advice ids, and implicit outcome
// events keyed only by session and tool.
package outcome

import (
	"time"

	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// Emission identifies a past advisory emission to attribute.
type Emission struct {
	AdviceID   string    `json:"advice_id"`
	InsightKey string    `json:"insight_key,omitempty"`
	SessionID  string    `json:"session_id"`
	Tool       string    `json:"tool"`
	CreatedAt  time.Time `json:"created_at"`
}

// MatchStatus says what the agent did with the advisory.
type MatchStatus string

const (
	StatusActed      MatchStatus = "acted"
	StatusSkipped    MatchStatus = "skipped"
	StatusUnresolved MatchStatus = "unresolved"
)

// Evidence kind of a match.
const (
	KindExplicit = "explicit"
	KindImplicit = "implicit"
	KindNone     = "none"
)

// Match links an emission to its strongest available evidence.
type Match struct {
	Status   MatchStatus          `json:"status"`
	Kind     string               `json:"kind"`
	Feedback *advice.FeedbackRow  `json:"feedback,omitempty"`
	Event    *advice.OutcomeEvent `json:"event,omitempty"`
}

// Matcher searches the evidence streams for a given emission.
type Matcher struct {
	cfg          config.OutcomeConfig
	feedbackPath string
	outcomePath  string
	log          *zap.SugaredLogger
}

// NewMatcher creates a matcher over the evidence stream paths.
func NewMatcher(cfg config.OutcomeConfig, feedbackPath, outcomePath string, log *zap.SugaredLogger) *Matcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Matcher{cfg: cfg, feedbackPath: feedbackPath, outcomePath: outcomePath, log: log}
}

// Match searches in strict priority order: explicit feedback
// referencing the advice id within the window (strongest), then
// implicit same-session same-tool outcome events within the window
// (weaker), else unresolved. Evidence outside the window never counts.
func (m *Matcher) Match(e Emission) Match {
	window := m.cfg.MatchWindow()

	if fb := m.explicitFor(e, window); fb != nil {
		status := StatusSkipped
		if fb.Followed {
			status = StatusActed
		}
		m.log.Debugw("explicit match", "advice", e.AdviceID, "followed", fb.Followed, "helpful", fb.Helpful)
		return Match{Status: status, Kind: KindExplicit, Feedback: fb}
	}

	if ev := m.implicitFor(e, window); ev != nil {
		m.log.Debugw("implicit match", "advice", e.AdviceID, "kind", ev.Kind)
		return Match{Status: StatusActed, Kind: KindImplicit, Event: ev}
	}

	return Match{Status: StatusUnresolved, Kind: KindNone}
}

// explicitFor returns the newest in-window feedback row referencing
// the emission's advice id.
func (m *Matcher) explicitFor(e Emission, window time.Duration) *advice.FeedbackRow {
	rows := storage.DecodeLines[advice.FeedbackRow](m.feedbackPath, m.cfg.FeedbackLogCap)
	var best *advice.FeedbackRow
	for i := range rows {
		row := rows[i]
		if !inWindow(e.CreatedAt, row.CreatedAt, window) {
			continue
		}
		if !references(row.AdviceIDs, e.AdviceID) {
			continue
		}
		if best == nil || row.CreatedAt.After(best.CreatedAt) {
			best = &rows[i]
		}
	}
	return best
}

// implicitFor returns the earliest in-window outcome event from the
// same session and tool: the first thing that happened after the
// advisory is the most attributable.
func (m *Matcher) implicitFor(e Emission, window time.Duration) *advice.OutcomeEvent {
	events := storage.DecodeLines[advice.OutcomeEvent](m.outcomePath, m.cfg.OutcomeLogCap)
	var best *advice.OutcomeEvent
	for i := range events {
		ev := events[i]
		if ev.SessionID != e.SessionID || ev.Tool != e.Tool {
			continue
		}
		if !inWindow(e.CreatedAt, ev.CreatedAt, window) {
			continue
		}
		if best == nil || ev.CreatedAt.Before(best.CreatedAt) {
			best = &events[i]
		}
	}
	return best
}

// LatestEvidenceFor returns the newest outcome event timestamp for an
// insight key, or the zero time. The dedup controller uses this to
// reset insight cooldowns once fresh evidence exists.
func (m *Matcher) LatestEvidenceFor(insightKey string) time.Time {
	if insightKey == "" {
		return time.Time{}
	}
	var latest time.Time
	for _, ev := range storage.DecodeLines[advice.OutcomeEvent](m.outcomePath, m.cfg.OutcomeLogCap) {
		if ev.InsightKey == insightKey && ev.CreatedAt.After(latest) {
			latest = ev.CreatedAt
		}
	}
	return latest
}

// inWindow reports whether evidence at ts counts for an emission at
// start: strictly after, and inside the window.
func inWindow(start, ts time.Time, window time.Duration) bool {
	if !ts.After(start) {
		return false
	}
	return window <= 0 || ts.Sub(start) <= window
}

func references(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
