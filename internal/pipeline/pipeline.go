// Package pipeline orchestrates the advisory decision loop. OnPreTool
// is the sole entry point for live tool events: retrieve candidates
// (or fall back to cached packets), run the admission gate, run the
// dedup layers, emit at most the budgeted number of advisories, and
// record enough telemetry for later effect attribution. No stage in
// this path is fatal: every failure mode is "suppress or skip".
package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/dedup"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/emit"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/gate"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/logging"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/outcome"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/packet"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/tuner"
)

// Advisor is the external candidate-retrieval collaborator. A nil
// Advisor means cache-only operation.
type Advisor interface {
	AdviseOnTool(ctx context.Context, sessionID, toolName string, toolInput map[string]interface{}) []advice.CandidateAdvice
}

// Synthesizer turns an admitted decision and its advice items into the
// final advisory text. A nil Synthesizer uses the candidate text
// directly.
type Synthesizer interface {
	Synthesize(decision advice.GateDecision, items []advice.CandidateAdvice) string
}

// Context bundles the explicit dependencies every stage needs: config
// snapshot, resolved paths, clock, and loggers. It replaces any notion
// of process-global state.
type Context struct {
	Cfg   config.Config
	Paths config.Paths
	Clock func() time.Time
	Logs  *logging.Registry
}

// NewContext builds a pipeline context from a config snapshot.
func NewContext(cfg config.Config, logs *logging.Registry, clock func() time.Time) Context {
	if clock == nil {
		clock = time.Now
	}
	return Context{Cfg: cfg, Paths: cfg.Paths(), Clock: clock, Logs: logs}
}

// Pipeline wires the stages together.
type Pipeline struct {
	pctx    Context
	cache   *packet.Cache
	dedup   *dedup.Controller
	emitter *emit.Emitter
	matcher *outcome.Matcher
	eval    *outcome.Evaluator
	boosts  *tuner.Store
	advisor Advisor
	synth   Synthesizer
	bands   gate.Bands
	log     *zap.SugaredLogger
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithAdvisor wires the external candidate retrieval collaborator.
func WithAdvisor(a Advisor) Option { return func(p *Pipeline) { p.advisor = a } }

// WithSynthesizer wires the external text synthesis collaborator.
func WithSynthesizer(s Synthesizer) Option { return func(p *Pipeline) { p.synth = s } }

// WithOutput redirects advisory delivery (defaults to stdout).
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.emitter = emit.NewEmitter(w, p.pctx.Cfg.Emit, p.pctx.Paths.EmissionLog,
			p.pctx.Logs.Get(logging.CategoryEmit), p.pctx.Clock)
	}
}

// WithEffectClassifier wires an optional LLM client for ambiguous-hint
// classification during attribution.
func WithEffectClassifier(llm outcome.LLMClient) Option {
	return func(p *Pipeline) {
		p.eval = outcome.NewEvaluator(llm, p.pctx.Logs.Get(logging.CategoryOutcome))
	}
}

// New builds a pipeline from a context.
func New(pctx Context, opts ...Option) *Pipeline {
	p := &Pipeline{
		pctx:  pctx,
		bands: gate.DefaultBands(),
		cache: packet.NewCache(pctx.Cfg.Cache, pctx.Paths.PacketsIndex,
			pctx.Logs.Get(logging.CategoryCache), pctx.Clock),
		dedup: dedup.NewController(pctx.Cfg.Dedup, pctx.Paths.DedupLog, pctx.Paths.InsightState,
			pctx.Logs.Get(logging.CategoryDedup), pctx.Clock),
		emitter: emit.NewEmitter(os.Stdout, pctx.Cfg.Emit, pctx.Paths.EmissionLog,
			pctx.Logs.Get(logging.CategoryEmit), pctx.Clock),
		matcher: outcome.NewMatcher(pctx.Cfg.Outcome, pctx.Paths.FeedbackLog, pctx.Paths.OutcomeLog,
			pctx.Logs.Get(logging.CategoryOutcome)),
		boosts: tuner.NewStore(pctx.Paths.BoostsFile, pctx.Paths.SourceStats,
			pctx.Logs.Get(logging.CategoryTuner)),
		log: pctx.Logs.Get(logging.CategoryPipeline),
	}
	p.eval = outcome.NewEvaluator(nil, pctx.Logs.Get(logging.CategoryOutcome))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cache exposes the packet cache (the prefetch worker shares it).
func (p *Pipeline) Cache() *packet.Cache { return p.cache }

// Boosts exposes the tuner store.
func (p *Pipeline) Boosts() *tuner.Store { return p.boosts }

// suppressionsFile is the persisted per-tool suppression table,
// written by operators or by post-tool stages.
type suppressionsFile struct {
	Tools map[string]time.Time `json:"tools"`
}

// OnPreTool is the sole orchestration entry point for a live tool
// event. It returns the emitted advisory text, or "" when nothing
// passed admission — including on every internal failure.
func (p *Pipeline) OnPreTool(ctx context.Context, sessionID, toolName string, toolInput map[string]interface{}, traceID string) string {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	intent := IntentFor(toolName, toolInput)
	project := ProjectKey("")
	sessionCtx := SessionContextKey(sessionID)

	p.log.Debugw("pre-tool", "trace", traceID, "session", sessionID, "tool", toolName, "intent", intent)

	candidates := p.retrieve(ctx, sessionID, toolName, toolInput, project, sessionCtx, intent)
	if len(candidates) == 0 {
		return ""
	}

	decisions := gate.Evaluate(candidates, gate.PhasePreTool, p.gateState(toolName), p.bands)

	for i, dec := range decisions {
		if !dec.Emit {
			p.log.Debugw("gated", "trace", traceID, "advice", dec.AdviceID,
				"authority", dec.Authority.String(), "reason", dec.Reason)
			continue
		}
		cand := candidates[i]
		if text := p.tryEmit(dec, cand, sessionID, toolName, traceID); text != "" {
			return text
		}
	}
	return ""
}

// retrieve returns live candidates when an advisor is wired, else
// converts the best cached packet into candidates.
func (p *Pipeline) retrieve(ctx context.Context, sessionID, toolName string, toolInput map[string]interface{}, project, sessionCtx, intent string) []advice.CandidateAdvice {
	if p.advisor != nil {
		if cands := p.advisor.AdviseOnTool(ctx, sessionID, toolName, toolInput); len(cands) > 0 {
			return cands
		}
	}

	pkt, ok := p.cache.LookupExact(project, sessionCtx, toolName, intent)
	match := 0.9
	if !ok {
		pkt, ok = p.cache.LookupRelaxed(project, sessionCtx, toolName, intent)
		match = 0.7
	}
	if !ok {
		return nil
	}
	if len(pkt.AdviceItems) > 0 {
		return pkt.AdviceItems
	}
	return []advice.CandidateAdvice{{
		AdviceID:     "packet:" + pkt.PacketID,
		Text:         pkt.AdvisoryText,
		Confidence:   pkt.Lineage.Quality,
		Source:       pkt.Lineage.Source,
		ContextMatch: match,
	}}
}

// gateState assembles the admission gate's external facts.
func (p *Pipeline) gateState(toolName string) gate.State {
	now := p.pctx.Clock()

	recent := make(map[string]time.Time)
	for _, entry := range p.emitter.RecentEmissions(p.pctx.Cfg.Emit.LogCap) {
		if entry.AdviceID != "" {
			recent[entry.AdviceID] = entry.TS
		}
	}

	var sup suppressionsFile
	storage.ReadJSON(p.pctx.Paths.Suppressions, &sup)

	return gate.State{
		Now:             now,
		Tool:            toolName,
		GlobalWindow:    p.pctx.Cfg.Gate.GlobalWindow(),
		RecentGlobal:    recent,
		SuppressedUntil: sup.Tools,
		Boosts:          p.boosts.Boosts(),
		EmitBudget:      p.pctx.Cfg.Gate.EmitBudget,
	}
}

// tryEmit runs an admitted decision through the dedup layers and
// emits it. Returns the delivered text, or "" when any layer rejected.
func (p *Pipeline) tryEmit(dec advice.GateDecision, cand advice.CandidateAdvice, sessionID, toolName, traceID string) string {
	text := cand.Text
	if p.synth != nil {
		if s := p.synth.Synthesize(dec, []advice.CandidateAdvice{cand}); s != "" {
			text = s
		}
	}

	checks := []struct {
		name string
		v    dedup.Verdict
	}{
		{"quality", dedup.QualityFilter(text)},
		{"session", p.dedup.CheckSession(sessionID, text)},
		{"global", p.dedup.CheckGlobal(cand.AdviceID, text)},
		{"insight", p.dedup.CheckInsight(cand.InsightKey, p.matcher.LatestEvidenceFor(cand.InsightKey))},
	}
	for _, c := range checks {
		if !c.v.Allowed {
			p.log.Debugw("suppressed", "trace", traceID, "advice", cand.AdviceID,
				"source", c.v.Source, "stage", c.v.Stage, "reason", c.v.Reason)
			return ""
		}
	}

	ok := p.emitter.EmitWithMeta(text, dec.Authority, emit.Meta{
		Tool:       toolName,
		AdviceID:   cand.AdviceID,
		InsightKey: cand.InsightKey,
		Source:     cand.Source,
		SessionID:  sessionID,
		TraceID:    traceID,
	})
	if !ok {
		return ""
	}
	p.dedup.Record(sessionID, toolName, cand.AdviceID, cand.InsightKey, text)
	formatted, _ := emit.Format(text, dec.Authority, p.pctx.Cfg.Emit.CharBudget)
	return formatted
}
