// Package dedup suppresses repeat advisories. Two independent layers
// run per emission attempt: a per-session text-repeat check against
// the last emitted fingerprint, and a cross-session scan of a capped
// append-only log. Both layers are advisory-only: they return
// verdicts, never errors, and any persistence failure counts as
// "allowed".
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// Verdict is the outcome of one dedup or quality check. Rejections
// carry a structured (source, stage, reason) triple for operators.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Source  string `json:"source,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func allowed() Verdict { return Verdict{Allowed: true} }

func rejected(source, stage, reason string) Verdict {
	return Verdict{Source: source, Stage: stage, Reason: reason}
}

// sessionSig remembers the last fingerprint emitted in one session.
type sessionSig struct {
	sig string
	at  time.Time
}

// insightState is the persisted last-emission table per insight key.
type insightState struct {
	LastEmitted map[string]time.Time `json:"last_emitted"`
}

// Controller runs all dedup layers. The cross-session log and insight
// table are shared on disk; the per-session fingerprints live in
// memory for the current process only.
type Controller struct {
	mu          sync.Mutex
	cfg         config.DedupConfig
	logPath     string
	insightPath string
	clock       func() time.Time
	log         *zap.SugaredLogger
	sessionSigs map[string]sessionSig
}

// NewController creates a dedup controller.
func NewController(cfg config.DedupConfig, logPath, insightPath string, log *zap.SugaredLogger, clock func() time.Time) *Controller {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		cfg:         cfg,
		logPath:     logPath,
		insightPath: insightPath,
		clock:       clock,
		log:         log,
		sessionSigs: make(map[string]sessionSig),
	}
}

var (
	wsRun    = regexp.MustCompile(`\s+`)
	digitRun = regexp.MustCompile(`\d+`)
)

// Normalize lowers, collapses whitespace, and masks digit runs so
// advisories differing only in counts or paths-with-numbers collapse
// to one fingerprint.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = digitRun.ReplaceAllString(t, "#")
	t = wsRun.ReplaceAllString(t, " ")
	return t
}

// TextSignature returns a short stable signature of normalized text.
func TextSignature(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:8])
}

// CheckSession rejects a text whose normalized fingerprint matches the
// last advisory emitted in this session inside the cooldown window.
func (c *Controller) CheckSession(sessionID, text string) Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.sessionSigs[sessionID]
	if !ok {
		return allowed()
	}
	if c.clock().Sub(last.at) >= c.cfg.Cooldown() {
		return allowed()
	}
	if last.sig == TextSignature(text) {
		return rejected("dedup", "session", "repeat_text_in_session")
	}
	return allowed()
}

// CheckGlobal scans the capped cross-session log backward for a match
// on advice id or text signature within the cooldown window,
// regardless of originating session. The log is pruned by line count
// only, so a high-traffic burst can evict a within-window record
// before its cooldown elapses; that is accepted behavior.
func (c *Controller) CheckGlobal(adviceID, text string) Verdict {
	records := storage.DecodeLines[advice.DedupRecord](c.logPath, c.cfg.LogCap)
	now := c.clock()
	sig := TextSignature(text)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if now.Sub(rec.TS) >= c.cfg.Cooldown() {
			break // log is append-ordered; everything earlier is older
		}
		if rec.AdviceID != "" && rec.AdviceID == adviceID {
			return rejected("dedup", "global", "advice_id_in_window")
		}
		if rec.TextSig == sig {
			return rejected("dedup", "global", "text_sig_in_window")
		}
	}
	return allowed()
}

// CheckInsight applies the insight-level repeat cooldown, which is
// distinct from per-advice-instance dedup: a whole insight stays quiet
// for its window unless new outcome evidence for it has arrived since
// the last emission, which resets the cooldown early.
func (c *Controller) CheckInsight(insightKey string, latestEvidence time.Time) Verdict {
	if insightKey == "" {
		return allowed()
	}
	var st insightState
	storage.ReadJSON(c.insightPath, &st)
	last, ok := st.LastEmitted[insightKey]
	if !ok {
		return allowed()
	}
	if latestEvidence.After(last) {
		return allowed() // fresh evidence reopens the insight
	}
	if c.clock().Sub(last) < c.cfg.InsightCooldown() {
		return rejected("dedup", "insight", "insight_cooldown_active")
	}
	return allowed()
}

// Record registers an emission in every layer: session fingerprint,
// cross-session log (capped, FIFO), and insight table.
func (c *Controller) Record(sessionID, tool, adviceID, insightKey, text string) {
	now := c.clock()

	c.mu.Lock()
	c.sessionSigs[sessionID] = sessionSig{sig: TextSignature(text), at: now}
	c.mu.Unlock()

	rec := advice.DedupRecord{TS: now, Tool: tool, AdviceID: adviceID, TextSig: TextSignature(text)}
	if err := storage.AppendLine(c.logPath, rec, c.cfg.LogCap); err != nil {
		c.log.Debugw("dedup log append failed", "err", err)
	}

	if insightKey != "" {
		var st insightState
		storage.ReadJSON(c.insightPath, &st)
		if st.LastEmitted == nil {
			st.LastEmitted = make(map[string]time.Time)
		}
		st.LastEmitted[insightKey] = now
		if err := storage.WriteJSONAtomic(c.insightPath, st); err != nil {
			c.log.Debugw("insight state write failed", "err", err)
		}
	}
}
