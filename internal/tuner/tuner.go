package tuner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// Linear map from effectiveness ratio to ideal boost: ratio 0 → 0.3,
// ratio 1 → 1.0, ratio 2 → 1.7, clamped to the boost bounds.
const (
	idealBase  = 0.3
	idealSlope = 0.7
)

// Tuner periodically nudges per-source boosts toward their ideal
// values, bounded by max_change_per_run.
type Tuner struct {
	store    *Store
	cfg      config.TunerConfig
	runsPath string
	clock    func() time.Time
	log      *zap.SugaredLogger
}

// Change records one boost adjustment (or skip) within a run.
type Change struct {
	Source        string  `json:"source"`
	Before        float64 `json:"before"`
	After         float64 `json:"after"`
	Ideal         float64 `json:"ideal"`
	Effectiveness float64 `json:"effectiveness"`
	Samples       int     `json:"samples"`
	Applied       bool    `json:"applied"`
	Reason        string  `json:"reason"`
}

// RunReport summarizes one tuning cycle.
type RunReport struct {
	RanAt      time.Time `json:"ran_at"`
	Skipped    bool      `json:"skipped,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
	GlobalAvg  float64   `json:"global_avg"`
	Changes    []Change  `json:"changes,omitempty"`
}

type runsFile struct {
	Runs []RunReport `json:"runs"`
}

// New creates a tuner over the store.
func New(store *Store, cfg config.TunerConfig, runsPath string, log *zap.SugaredLogger, clock func() time.Time) *Tuner {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tuner{store: store, cfg: cfg, runsPath: runsPath, clock: clock, log: log}
}

// LastRun returns the most recent run report, if any.
func (t *Tuner) LastRun() (RunReport, bool) {
	var rf runsFile
	storage.ReadJSON(t.runsPath, &rf)
	if len(rf.Runs) == 0 {
		return RunReport{}, false
	}
	return rf.Runs[len(rf.Runs)-1], true
}

// lastCompleted returns the most recent non-skipped run.
func (t *Tuner) lastCompleted() (RunReport, bool) {
	var rf runsFile
	storage.ReadJSON(t.runsPath, &rf)
	for i := len(rf.Runs) - 1; i >= 0; i-- {
		if !rf.Runs[i].Skipped {
			return rf.Runs[i], true
		}
	}
	return RunReport{}, false
}

// Run executes one tuning cycle. Unless force is set, a run inside the
// configured interval since the last run is skipped. Every boost
// change and skip is logged with before/after values and a reason.
func (t *Tuner) Run(force bool) RunReport {
	now := t.clock()
	report := RunReport{RanAt: now}

	if !force {
		if last, ok := t.lastCompleted(); ok && now.Sub(last.RanAt) < t.cfg.Interval() {
			report.Skipped = true
			report.SkipReason = fmt.Sprintf("last run %s ago, interval %s",
				now.Sub(last.RanAt).Round(time.Second), t.cfg.Interval())
			t.log.Debugw("tuning skipped", "reason", report.SkipReason)
			t.appendRun(report)
			return report
		}
	}

	stats := t.store.Stats()
	report.GlobalAvg = globalAverage(stats)

	boosts := t.store.SourceBoosts()
	for source, st := range stats {
		change := t.tuneSource(source, st, report.GlobalAvg, boosts)
		report.Changes = append(report.Changes, change)
		if change.Applied {
			boosts[source] = advice.SourceBoost{
				Source:        source,
				Boost:         change.After,
				Effectiveness: st.Effectiveness(),
				SampleCount:   st.Total,
			}
		}
		t.log.Infow("tuned source",
			"source", source, "before", change.Before, "after", change.After,
			"ideal", change.Ideal, "applied", change.Applied, "reason", change.Reason)
	}

	t.store.mu.Lock()
	t.store.saveBoosts(boosts, now)
	t.store.mu.Unlock()

	t.appendRun(report)
	return report
}

// tuneSource computes one source's step toward its ideal boost.
func (t *Tuner) tuneSource(source string, st SourceStats, globalAvg float64, boosts map[string]advice.SourceBoost) Change {
	current := 1.0
	if b, ok := boosts[source]; ok && b.Boost > 0 {
		current = b.Boost
	}

	change := Change{
		Source:        source,
		Before:        current,
		After:         current,
		Effectiveness: st.Effectiveness(),
		Samples:       st.Total,
	}

	if st.Total < t.cfg.MinSamples {
		change.Ideal = current
		change.Reason = fmt.Sprintf("only %d samples, need %d", st.Total, t.cfg.MinSamples)
		return change
	}
	if globalAvg <= 0 {
		change.Ideal = current
		change.Reason = "global average is zero"
		return change
	}

	ratio := st.Effectiveness() / globalAvg
	ideal := clampBoost(idealBase + idealSlope*ratio)
	change.Ideal = ideal

	delta := ideal - current
	if abs(delta) < t.cfg.Tolerance {
		change.Reason = fmt.Sprintf("within tolerance of ideal %.3f", ideal)
		return change
	}

	step := delta
	if abs(step) > t.cfg.MaxChangePerRun {
		if step > 0 {
			step = t.cfg.MaxChangePerRun
		} else {
			step = -t.cfg.MaxChangePerRun
		}
	}

	change.After = clampBoost(current + step)
	change.Applied = true
	change.Reason = fmt.Sprintf("effectiveness %.2f vs global %.2f, moving %.3f toward %.3f",
		st.Effectiveness(), globalAvg, step, ideal)
	return change
}

// appendRun appends the report to the capped rolling tuning log.
func (t *Tuner) appendRun(report RunReport) {
	var rf runsFile
	storage.ReadJSON(t.runsPath, &rf)
	rf.Runs = append(rf.Runs, report)
	if t.cfg.RunLogCap > 0 && len(rf.Runs) > t.cfg.RunLogCap {
		rf.Runs = rf.Runs[len(rf.Runs)-t.cfg.RunLogCap:]
	}
	if err := storage.WriteJSONAtomic(t.runsPath, rf); err != nil {
		t.log.Debugw("run log write failed", "err", err)
	}
}

// globalAverage is the sample-weighted mean effectiveness over all
// sources: total helpful over total classified.
func globalAverage(stats map[string]SourceStats) float64 {
	helpful, total := 0, 0
	for _, st := range stats {
		helpful += st.Helpful
		total += st.Total
	}
	if total == 0 {
		return 0
	}
	return float64(helpful) / float64(total)
}

func clampBoost(v float64) float64 {
	if v < advice.BoostMin {
		return advice.BoostMin
	}
	if v > advice.BoostMax {
		return advice.BoostMax
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
