package gate

import (
	"testing"
	"time"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
)

func cand(id string, confidence, contextMatch float64, source string) advice.CandidateAdvice {
	return advice.CandidateAdvice{
		AdviceID:     id,
		InsightKey:   "ins-" + id,
		Text:         "watch for the failing test before editing",
		Confidence:   confidence,
		Source:       source,
		ContextMatch: contextMatch,
	}
}

func baseState(now time.Time) State {
	return State{
		Now:          now,
		Tool:         "Bash",
		GlobalWindow: time.Hour,
		EmitBudget:   10,
	}
}

func TestBandsAuthorityThresholds(t *testing.T) {
	b := DefaultBands()
	cases := []struct {
		score float64
		want  advice.Authority
	}{
		{0.0, advice.AuthoritySilent},
		{0.34, advice.AuthoritySilent},
		{0.35, advice.AuthorityWhisper},
		{0.54, advice.AuthorityWhisper},
		{0.55, advice.AuthorityNote},
		{0.74, advice.AuthorityNote},
		{0.75, advice.AuthorityWarning},
		{0.94, advice.AuthorityWarning},
		{0.95, advice.AuthorityBlock},
		{1.0, advice.AuthorityBlock},
	}
	for _, tc := range cases {
		if got := b.Authority(tc.score); got != tc.want {
			t.Errorf("Authority(%.2f) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestAuthorityMonotonicInScore(t *testing.T) {
	b := DefaultBands()
	prev := advice.AuthoritySilent
	for score := 0.0; score <= 1.0; score += 0.01 {
		got := b.Authority(score)
		if got < prev {
			t.Fatalf("authority decreased at score %.2f: %v after %v", score, got, prev)
		}
		prev = got
	}
}

func TestEvaluateAdjustedScore(t *testing.T) {
	now := time.Now()
	st := baseState(now)
	st.Boosts = map[string]float64{"mistake_prevention": 1.2}

	// 0.8 * 0.9 * 1.2 boost * 1.1 pre-tool fit = 0.9504
	decs := Evaluate([]advice.CandidateAdvice{cand("a1", 0.8, 0.9, "mistake_prevention")},
		PhasePreTool, st, DefaultBands())
	if len(decs) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decs))
	}
	d := decs[0]
	if !d.Emit || d.Reason != ReasonAdmitted {
		t.Fatalf("expected admitted, got emit=%v reason=%q", d.Emit, d.Reason)
	}
	if d.Authority != advice.AuthorityBlock {
		t.Errorf("authority = %v, want block at %.4f", d.Authority, d.AdjustedScore)
	}
	if diff := d.AdjustedScore - 0.9504; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("adjusted = %.6f, want 0.9504", d.AdjustedScore)
	}
	if diff := d.OriginalScore - 0.72; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("original = %.6f, want 0.72", d.OriginalScore)
	}
}

func TestEvaluatePhaseFit(t *testing.T) {
	now := time.Now()
	st := baseState(now)
	c := cand("a1", 0.8, 0.9, "outcome_learning") // post-tool source

	pre := Evaluate([]advice.CandidateAdvice{c}, PhasePreTool, st, DefaultBands())[0]
	post := Evaluate([]advice.CandidateAdvice{c}, PhasePostTool, st, DefaultBands())[0]

	if pre.AdjustedScore >= post.AdjustedScore {
		t.Errorf("post-tool source should score higher post-tool: pre=%.4f post=%.4f",
			pre.AdjustedScore, post.AdjustedScore)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	st := baseState(time.Now())
	d := Evaluate([]advice.CandidateAdvice{cand("a1", 0.3, 0.5, "other")},
		PhasePreTool, st, DefaultBands())[0]
	if d.Emit || d.Reason != ReasonBelowThreshold || d.Authority != advice.AuthoritySilent {
		t.Errorf("low score should be silent/below_threshold, got %+v", d)
	}
}

func TestEvaluateRecentlyGlobal(t *testing.T) {
	now := time.Now()
	st := baseState(now)
	st.RecentGlobal = map[string]time.Time{"a1": now.Add(-10 * time.Minute)}

	d := Evaluate([]advice.CandidateAdvice{cand("a1", 0.9, 0.9, "mistake_prevention")},
		PhasePreTool, st, DefaultBands())[0]
	if d.Emit || d.Reason != ReasonRecentlyGlobal {
		t.Errorf("recent global emission must force silent, got %+v", d)
	}

	// Outside the window the same candidate is admitted again.
	st.RecentGlobal["a1"] = now.Add(-2 * time.Hour)
	d = Evaluate([]advice.CandidateAdvice{cand("a1", 0.9, 0.9, "mistake_prevention")},
		PhasePreTool, st, DefaultBands())[0]
	if !d.Emit {
		t.Errorf("emission outside window should be admitted, got %+v", d)
	}
}

func TestEvaluateToolSuppressed(t *testing.T) {
	now := time.Now()
	st := baseState(now)
	st.SuppressedUntil = map[string]time.Time{"Bash": now.Add(30 * time.Minute)}

	d := Evaluate([]advice.CandidateAdvice{cand("a1", 0.9, 0.9, "mistake_prevention")},
		PhasePreTool, st, DefaultBands())[0]
	if d.Emit || d.Reason != ReasonToolSuppressed {
		t.Errorf("suppressed tool must force silent, got %+v", d)
	}

	// Expired suppression is ignored.
	st.SuppressedUntil["Bash"] = now.Add(-time.Minute)
	d = Evaluate([]advice.CandidateAdvice{cand("a1", 0.9, 0.9, "mistake_prevention")},
		PhasePreTool, st, DefaultBands())[0]
	if !d.Emit {
		t.Errorf("expired suppression should admit, got %+v", d)
	}
}

func TestEvaluateBudgetExhaustion(t *testing.T) {
	st := baseState(time.Now())
	st.EmitBudget = 1

	cands := []advice.CandidateAdvice{
		cand("a1", 0.9, 0.9, "mistake_prevention"),
		cand("a2", 0.9, 0.9, "mistake_prevention"),
		cand("a3", 0.2, 0.2, "mistake_prevention"),
	}
	decs := Evaluate(cands, PhasePreTool, st, DefaultBands())

	if !decs[0].Emit {
		t.Errorf("first passing candidate should consume the budget, got %+v", decs[0])
	}
	if decs[1].Emit || decs[1].Reason != ReasonBudget {
		t.Errorf("second candidate should hit emit_budget_exhausted, got %+v", decs[1])
	}
	// Budget exhaustion only affects candidates that would have emitted.
	if decs[2].Reason != ReasonBelowThreshold {
		t.Errorf("sub-threshold candidate keeps its own reason, got %+v", decs[2])
	}
}

func TestEvaluatePreservesInputOrder(t *testing.T) {
	st := baseState(time.Now())
	cands := []advice.CandidateAdvice{
		cand("low", 0.4, 0.9, "other"),
		cand("high", 0.95, 0.95, "other"),
		cand("mid", 0.7, 0.9, "other"),
	}
	decs := Evaluate(cands, PhasePreTool, st, DefaultBands())
	for i, want := range []string{"low", "high", "mid"} {
		if decs[i].AdviceID != want {
			t.Fatalf("decision %d = %s, want %s (input order must be preserved)", i, decs[i].AdviceID, want)
		}
	}
}

func TestEvaluateInvalidCandidate(t *testing.T) {
	st := baseState(time.Now())
	bad := cand("a1", 0.9, 0.9, "mistake_prevention")
	bad.Text = ""

	d := Evaluate([]advice.CandidateAdvice{bad}, PhasePreTool, st, DefaultBands())[0]
	if d.Emit || d.Reason != ReasonInvalid {
		t.Errorf("invalid candidate must be silent/invalid, got %+v", d)
	}
}

func TestEvaluateClampsAtOne(t *testing.T) {
	st := baseState(time.Now())
	st.Boosts = map[string]float64{"mistake_prevention": 2.0}

	d := Evaluate([]advice.CandidateAdvice{cand("a1", 0.9, 0.9, "mistake_prevention")},
		PhasePreTool, st, DefaultBands())[0]
	if d.AdjustedScore > 1.0 {
		t.Errorf("adjusted score must clamp to 1.0, got %.4f", d.AdjustedScore)
	}
}
