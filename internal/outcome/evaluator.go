package outcome

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Effect is the classified real-world effect of an advisory.
type Effect string

const (
	EffectPositive Effect = "positive"
	EffectNegative Effect = "negative"
	EffectNeutral  Effect = "neutral"
)

// Evaluation is the evaluator's verdict on one match.
type Evaluation struct {
	Effect     Effect  `json:"effect"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Implicit event kinds with unambiguous polarity. Anything else is an
// ambiguous hint.
var (
	positiveKinds = map[string]bool{
		"error_resolved": true,
		"tests_passed":   true,
		"task_completed": true,
		"success":        true,
	}
	negativeKinds = map[string]bool{
		"error_repeated": true,
		"tests_failed":   true,
		"reverted":       true,
		"failure":        true,
	}
)

// Confidence constants for the heuristic table.
const (
	explicitPositiveConf = 0.9
	explicitNegativeConf = 0.85
	explicitSkipConf     = 0.8
	noEvidenceConf       = 0.2
	ambiguousConfCap     = 0.4
	implicitBaseConf     = 0.5
	implicitBoost        = 0.3
)

// Evaluate maps a match to an effect using the fixed heuristic table:
// explicit skip is high-confidence neutral, no evidence low-confidence
// neutral, an ambiguous hint is capped low-confidence neutral, and an
// unambiguous hint takes its polarity with a confidence boost capped
// at 1.0.
func Evaluate(m Match) Evaluation {
	switch m.Kind {
	case KindExplicit:
		fb := m.Feedback
		if fb == nil || !fb.Followed {
			return Evaluation{Effect: EffectNeutral, Confidence: explicitSkipConf, Reason: "explicit_skip"}
		}
		if fb.Helpful {
			return Evaluation{Effect: EffectPositive, Confidence: explicitPositiveConf, Reason: "explicit_helpful"}
		}
		return Evaluation{Effect: EffectNegative, Confidence: explicitNegativeConf, Reason: "explicit_unhelpful"}

	case KindImplicit:
		ev := m.Event
		if ev == nil {
			return Evaluation{Effect: EffectNeutral, Confidence: noEvidenceConf, Reason: "no_action_evidence"}
		}
		conf := capConf(implicitBaseConf + implicitBoost)
		if positiveKinds[ev.Kind] {
			return Evaluation{Effect: EffectPositive, Confidence: conf, Reason: "implicit_" + ev.Kind}
		}
		if negativeKinds[ev.Kind] {
			return Evaluation{Effect: EffectNegative, Confidence: conf, Reason: "implicit_" + ev.Kind}
		}
		return Evaluation{Effect: EffectNeutral, Confidence: ambiguousConfCap, Reason: "ambiguous_hint"}

	default:
		return Evaluation{Effect: EffectNeutral, Confidence: noEvidenceConf, Reason: "no_action_evidence"}
	}
}

// LLMClient is the minimal completion surface the evaluator needs for
// optional LLM-assisted classification.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Evaluator wraps the heuristic table with optional LLM assistance for
// ambiguous hints. Provider or network errors degrade to the heuristic
// result rather than blocking; classification never fails.
type Evaluator struct {
	llm LLMClient
	log *zap.SugaredLogger
}

// NewEvaluator creates an evaluator. llm may be nil, in which case the
// evaluator is purely heuristic.
func NewEvaluator(llm LLMClient, log *zap.SugaredLogger) *Evaluator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Evaluator{llm: llm, log: log}
}

// Evaluate runs the heuristic table first and only consults the LLM
// for ambiguous implicit hints.
func (e *Evaluator) Evaluate(ctx context.Context, m Match) Evaluation {
	heuristic := Evaluate(m)
	if e.llm == nil || heuristic.Reason != "ambiguous_hint" || m.Event == nil {
		return heuristic
	}

	prompt := classifyPrompt(m)
	resp, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.log.Debugw("llm classification failed, keeping heuristic", "err", err)
		return heuristic
	}

	var parsed struct {
		Effect     string  `json:"effect"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp)), &parsed); err != nil {
		e.log.Debugw("llm response unparseable, keeping heuristic", "err", err)
		return heuristic
	}

	effect := Effect(parsed.Effect)
	if effect != EffectPositive && effect != EffectNegative && effect != EffectNeutral {
		return heuristic
	}
	conf := parsed.Confidence
	if conf <= 0 || conf > 0.85 {
		conf = 0.6 // LLM-classified ambiguity never outranks explicit evidence
	}
	reason := "llm_classified"
	if parsed.Reason != "" {
		reason = "llm:" + parsed.Reason
	}
	return Evaluation{Effect: effect, Confidence: conf, Reason: reason}
}

func classifyPrompt(m Match) string {
	return `Classify the effect of a coding-agent advisory given this later event.

Event kind: ` + m.Event.Kind + `
Event detail: ` + m.Event.Detail + `

Did the advisory likely help (positive), hurt (negative), or neither (neutral)?

Return JSON only:
{"effect": "positive|negative|neutral", "confidence": 0.0-1.0, "reason": "short explanation"}`
}

// extractJSON pulls the first {...} object out of a model response
// that may be wrapped in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func capConf(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
