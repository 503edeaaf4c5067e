package pipeline

import (
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/packet"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/tuner"
)

// StatusReport is a read-only, JSON-serializable snapshot of the
// pipeline's stores for external dashboards and CLIs. Producing it has
// no side effects.
type StatusReport struct {
	Cache         packet.Status                 `json:"cache"`
	DedupLogLines int                           `json:"dedup_log_lines"`
	Emissions     int                           `json:"emissions"`
	Boosts        map[string]advice.SourceBoost `json:"boosts,omitempty"`
	SourceStats   map[string]tuner.SourceStats  `json:"source_stats,omitempty"`
}

// Status aggregates store snapshots.
func (p *Pipeline) Status() StatusReport {
	return StatusReport{
		Cache:         p.cache.Status(),
		DedupLogLines: len(storage.ReadLines(p.pctx.Paths.DedupLog, 0)),
		Emissions:     len(p.emitter.RecentEmissions(0)),
		Boosts:        p.boosts.SourceBoosts(),
		SourceStats:   p.boosts.Stats(),
	}
}
