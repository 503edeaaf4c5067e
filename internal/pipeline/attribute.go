package pipeline

import (
	"context"
	"time"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/outcome"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// attributedCap bounds the processed-emission set, mirroring the
// prefetch worker's processed-id window.
const attributedCap = 1000

// attributedState tracks which emissions have already been attributed.
type attributedState struct {
	Keys []string `json:"keys"`
}

// AttributionResult summarizes one attribution pass.
type AttributionResult struct {
	Examined   int `json:"examined"`
	Attributed int `json:"attributed"`
	Deferred   int `json:"deferred"`
}

// Attribute links past emissions to later evidence and folds the
// classified effects into the per-source statistics the tuner reads.
// Emissions with no evidence yet are deferred until their match window
// has fully elapsed, then settled as neutral no-evidence.
func (p *Pipeline) Attribute(ctx context.Context) AttributionResult {
	var res AttributionResult
	now := p.pctx.Clock()
	window := p.pctx.Cfg.Outcome.MatchWindow()

	var st attributedState
	storage.ReadJSON(p.pctx.Paths.Attributed, &st)
	done := make(map[string]bool, len(st.Keys))
	for _, k := range st.Keys {
		done[k] = true
	}

	for _, entry := range p.emitter.RecentEmissions(p.pctx.Cfg.Emit.LogCap) {
		if entry.AdviceID == "" {
			continue
		}
		key := entry.TS.UTC().Format(time.RFC3339) + "|" + entry.AdviceID
		if done[key] {
			continue
		}
		res.Examined++

		match := p.matcher.Match(outcome.Emission{
			AdviceID:   entry.AdviceID,
			InsightKey: entry.InsightKey,
			SessionID:  entry.SessionID,
			Tool:       entry.Tool,
			CreatedAt:  entry.TS,
		})

		// Window still open and nothing matched: evidence may still
		// arrive, so do not settle this emission yet.
		if match.Status == outcome.StatusUnresolved && now.Sub(entry.TS) < window {
			res.Deferred++
			continue
		}

		eval := p.eval.Evaluate(ctx, match)
		p.boosts.RecordOutcome(entry.Source, eval.Effect == outcome.EffectPositive)
		p.log.Debugw("attributed", "advice", entry.AdviceID, "status", string(match.Status),
			"effect", string(eval.Effect), "confidence", eval.Confidence, "reason", eval.Reason)

		st.Keys = append(st.Keys, key)
		done[key] = true
		res.Attributed++
	}

	if len(st.Keys) > attributedCap {
		st.Keys = st.Keys[len(st.Keys)-attributedCap:]
	}
	if err := storage.WriteJSONAtomic(p.pctx.Paths.Attributed, st); err != nil {
		p.log.Debugw("attributed state write failed", "err", err)
	}
	return res
}
