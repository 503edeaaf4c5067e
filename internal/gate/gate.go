// Package gate implements admission control: converting ranked
// advisory candidates into per-item authority decisions. Evaluate is a
// pure function of its inputs; all cooldown and emission state is
// passed in, which keeps the gate fully testable in isolation.
package gate

import (
	"time"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
)

// Phase is where in the tool lifecycle the evaluation happens.
type Phase string

const (
	PhasePreTool  Phase = "pre_tool"
	PhasePostTool Phase = "post_tool"
)

// Bands is the fixed score→authority threshold table. Authority is
// monotonic in adjusted score by construction: a score clears block
// only after clearing every lower band.
type Bands struct {
	Block   float64
	Warning float64
	Note    float64
	Whisper float64
}

// DefaultBands returns the standard threshold table.
func DefaultBands() Bands {
	return Bands{Block: 0.95, Warning: 0.75, Note: 0.55, Whisper: 0.35}
}

// Authority maps an adjusted score to its tier.
func (b Bands) Authority(score float64) advice.Authority {
	switch {
	case score >= b.Block:
		return advice.AuthorityBlock
	case score >= b.Warning:
		return advice.AuthorityWarning
	case score >= b.Note:
		return advice.AuthorityNote
	case score >= b.Whisper:
		return advice.AuthorityWhisper
	default:
		return advice.AuthoritySilent
	}
}

// State carries the external facts the gate needs: the clock, the
// per-tool suppression table, recent global emissions, per-source
// boosts, and the remaining emit budget for this call.
type State struct {
	Now             time.Time
	Tool            string
	GlobalWindow    time.Duration
	RecentGlobal    map[string]time.Time // advice_id → last emission anywhere
	SuppressedUntil map[string]time.Time // tool → suppression expiry
	Boosts          map[string]float64   // source → boost multiplier
	EmitBudget      int                  // emissions allowed this call
}

// Decision reasons.
const (
	ReasonAdmitted       = "admitted"
	ReasonBelowThreshold = "below_threshold"
	ReasonInvalid        = "invalid_candidate"
	ReasonRecentlyGlobal = "recently_emitted_globally"
	ReasonToolSuppressed = "tool_suppressed"
	ReasonBudget         = "emit_budget_exhausted"
)

// Evaluate produces one decision per candidate, in input order (ties
// between equal scores are broken by retrieval order — the order is
// never changed). Candidates map to silent/emit=false when the advice
// id was recently emitted globally, the tool is under suppression, or
// the per-call emit budget is exhausted.
func Evaluate(candidates []advice.CandidateAdvice, phase Phase, st State, bands Bands) []advice.GateDecision {
	budget := st.EmitBudget
	decisions := make([]advice.GateDecision, 0, len(candidates))

	toolSuppressed := false
	if until, ok := st.SuppressedUntil[st.Tool]; ok && until.After(st.Now) {
		toolSuppressed = true
	}

	for _, cand := range candidates {
		original := cand.Confidence * cand.ContextMatch
		adjusted := clamp01(original * boostFor(st.Boosts, cand.Source) * phaseFit(phase, cand.Source))

		dec := advice.GateDecision{
			AdviceID:      cand.AdviceID,
			OriginalScore: original,
			AdjustedScore: adjusted,
		}

		switch {
		case cand.Validate() != nil:
			dec.Authority = advice.AuthoritySilent
			dec.Reason = ReasonInvalid
		case recentlyGlobal(st, cand.AdviceID):
			dec.Authority = advice.AuthoritySilent
			dec.Reason = ReasonRecentlyGlobal
		case toolSuppressed:
			dec.Authority = advice.AuthoritySilent
			dec.Reason = ReasonToolSuppressed
		default:
			dec.Authority = bands.Authority(adjusted)
			if dec.Authority == advice.AuthoritySilent {
				dec.Reason = ReasonBelowThreshold
			} else if budget <= 0 {
				dec.Authority = advice.AuthoritySilent
				dec.Reason = ReasonBudget
			} else {
				dec.Emit = true
				dec.Reason = ReasonAdmitted
				budget--
			}
		}
		decisions = append(decisions, dec)
	}
	return decisions
}

// Source phase affinities used by phaseFit.
var (
	preSources = map[string]bool{
		"mistake_prevention": true,
		"preference":         true,
		"prefetch_baseline":  true,
	}
	postSources = map[string]bool{
		"outcome_learning": true,
		"retrospective":    true,
	}
)

// phaseFit nudges candidates toward the lifecycle phase their source
// is designed for: preventive sources pre-tool, retrospective ones
// post-tool. Unknown sources are neutral.
func phaseFit(phase Phase, source string) float64 {
	pre, post := preSources, postSources
	switch phase {
	case PhasePreTool:
		if pre[source] {
			return 1.1
		}
		if post[source] {
			return 0.9
		}
	case PhasePostTool:
		if post[source] {
			return 1.1
		}
		if pre[source] {
			return 0.9
		}
	}
	return 1.0
}

func boostFor(boosts map[string]float64, source string) float64 {
	if b, ok := boosts[source]; ok && b > 0 {
		return b
	}
	return 1.0
}

func recentlyGlobal(st State, adviceID string) bool {
	last, ok := st.RecentGlobal[adviceID]
	if !ok || st.GlobalWindow <= 0 {
		return false
	}
	return st.Now.Sub(last) < st.GlobalWindow
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
