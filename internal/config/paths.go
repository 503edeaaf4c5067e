package config

import "path/filepath"

// Paths resolves every on-disk location under the state root. All
// stages receive paths from here; nothing hardcodes file names.
type Paths struct {
	Root         string
	LogsDir      string
	PacketsIndex string
	PriorsFile   string
	QueueJobs    string
	QueueLock    string
	WorkerState  string
	Suppressions string
	DedupLog     string
	InsightState string
	EmissionLog  string
	FeedbackLog  string
	OutcomeLog   string
	Attributed   string
	BoostsFile   string
	SourceStats  string
	TunerRuns    string
}

// Paths returns the path set for this config's state root.
func (c Config) Paths() Paths {
	root := c.Home
	return Paths{
		Root:         root,
		LogsDir:      filepath.Join(root, "logs"),
		PacketsIndex: filepath.Join(root, "packets", "index.json"),
		PriorsFile:   filepath.Join(root, "priors.yaml"),
		QueueJobs:    filepath.Join(root, "queue", "jobs.json"),
		QueueLock:    filepath.Join(root, "queue", "queue.lock"),
		WorkerState:  filepath.Join(root, "queue", "worker_state.json"),
		Suppressions: filepath.Join(root, "suppressions.json"),
		DedupLog:     filepath.Join(root, "dedup", "emitted.ndjson"),
		InsightState: filepath.Join(root, "dedup", "insights.json"),
		EmissionLog:  filepath.Join(root, "logs", "emissions.ndjson"),
		FeedbackLog:  filepath.Join(root, "outcomes", "feedback.ndjson"),
		OutcomeLog:   filepath.Join(root, "outcomes", "events.ndjson"),
		Attributed:   filepath.Join(root, "outcomes", "attributed.json"),
		BoostsFile:   filepath.Join(root, "tuner", "boosts.json"),
		SourceStats:  filepath.Join(root, "tuner", "source_stats.json"),
		TunerRuns:    filepath.Join(root, "tuner", "runs.json"),
	}
}
