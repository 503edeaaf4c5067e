// Package prefetch predicts upcoming (tool, intent) pairs from a fixed
// prior table and populates the packet cache ahead of need. The
// planner is a deterministic table lookup; the worker consumes a
// persisted job queue at-most-once per job id.
package prefetch

import (
	_ "embed"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
)

//go:embed priors.yaml
var defaultPriors []byte

// defaultIntent is used for unknown or empty intent families.
const defaultIntent = "default"

// ToolPrediction is one planned tool with its prior probability.
type ToolPrediction struct {
	Tool        string  `yaml:"tool" json:"tool"`
	Probability float64 `yaml:"probability" json:"probability"`
}

// PriorTable maps intent family to a ranked tool list. Ranking in the
// table is authoritative for tie-breaks.
type PriorTable map[string][]ToolPrediction

// LoadPriors returns the prior table: the embedded default, replaced
// by the override file when it exists and parses. A corrupt override
// degrades to the embedded table.
func LoadPriors(overridePath string) PriorTable {
	table := PriorTable{}
	if err := yaml.Unmarshal(defaultPriors, &table); err != nil {
		// Embedded table is compiled in; this cannot happen in practice.
		table = PriorTable{}
	}
	if overridePath == "" {
		return table
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return table
	}
	override := PriorTable{}
	if err := yaml.Unmarshal(data, &override); err != nil || len(override) == 0 {
		return table
	}
	return override
}

// Plan returns up to maxTools predictions for the job's intent family,
// filtered by the probability floor, sorted by probability descending
// with ties broken by table order.
func Plan(table PriorTable, job advice.PrefetchJob, maxTools int, minProbability float64) []ToolPrediction {
	ranked, ok := table[job.IntentFamily]
	if !ok || job.IntentFamily == "" {
		ranked = table[defaultIntent]
	}

	out := make([]ToolPrediction, 0, len(ranked))
	for _, p := range ranked {
		if p.Probability >= minProbability {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	if maxTools > 0 && len(out) > maxTools {
		out = out[:maxTools]
	}
	return out
}
