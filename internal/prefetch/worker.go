package prefetch

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/packet"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// queueCap bounds the persisted job queue; enqueue drops oldest first.
const queueCap = 100

// lockWait is how long queue mutations wait for the advisory lock
// before skipping the tick.
const lockWait = 500 * time.Millisecond

// Worker consumes the prefetch job queue and writes baseline packets
// into the cache. Each job id is processed at most once within the
// tracked window; a persisted pause flag stops all work.
type Worker struct {
	cache     *packet.Cache
	table     PriorTable
	cfg       config.PrefetchConfig
	jobsPath  string
	statePath string
	lockPath  string
	clock     func() time.Time
	log       *zap.SugaredLogger
}

// State is the worker's persisted bookkeeping.
type State struct {
	ProcessedIDs   []string  `json:"processed_ids"`
	Paused         bool      `json:"paused"`
	PauseReason    string    `json:"pause_reason,omitempty"`
	PausedAt       time.Time `json:"paused_at,omitzero"`
	LastRunAt      time.Time `json:"last_run_at,omitzero"`
	PacketsCreated int       `json:"packets_created"`
}

// Result summarizes one ProcessQueue pass.
type Result struct {
	JobsProcessed  int `json:"jobs_processed"`
	PacketsCreated int `json:"packets_created"`
}

// NewWorker creates a worker over the given cache and paths.
func NewWorker(cache *packet.Cache, table PriorTable, cfg config.PrefetchConfig, paths config.Paths, log *zap.SugaredLogger, clock func() time.Time) *Worker {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Worker{
		cache:     cache,
		table:     table,
		cfg:       cfg,
		jobsPath:  paths.QueueJobs,
		statePath: paths.WorkerState,
		lockPath:  paths.QueueLock,
		clock:     clock,
		log:       log,
	}
}

// loadState degrades to a zero state on missing/corrupt file.
func (w *Worker) loadState() State {
	var st State
	storage.ReadJSON(w.statePath, &st)
	return st
}

func (w *Worker) saveState(st State) {
	if err := storage.WriteJSONAtomic(w.statePath, st); err != nil {
		w.log.Debugw("worker state write failed", "err", err)
	}
}

// StateSnapshot returns the current persisted state, read-only.
func (w *Worker) StateSnapshot() State {
	return w.loadState()
}

// Pause stops all queue processing until Resume. The reason is
// persisted for operators.
func (w *Worker) Pause(reason string) {
	st := w.loadState()
	st.Paused = true
	st.PauseReason = reason
	st.PausedAt = w.clock()
	w.saveState(st)
	w.log.Infow("worker paused", "reason", reason)
}

// Resume clears the pause flag.
func (w *Worker) Resume() {
	st := w.loadState()
	st.Paused = false
	st.PauseReason = ""
	st.PausedAt = time.Time{}
	w.saveState(st)
	w.log.Infow("worker resumed")
}

// Enqueue appends a job to the persisted queue under the advisory
// lock, rotating oldest-first past the queue cap.
func (w *Worker) Enqueue(job advice.PrefetchJob) error {
	lock := storage.NewFileLock(w.lockPath)
	if err := lock.Acquire(lockWait); err != nil {
		return err
	}
	defer lock.Release()

	var jobs []advice.PrefetchJob
	storage.ReadJSON(w.jobsPath, &jobs)
	jobs = append(jobs, job)
	if len(jobs) > queueCap {
		jobs = jobs[len(jobs)-queueCap:]
	}
	return storage.WriteJSONAtomic(w.jobsPath, jobs)
}

// ProcessQueue drains up to maxJobs unprocessed jobs, planning at most
// maxToolsPerJob tools per job and saving one baseline packet per
// planned tool. While paused it performs no work. Processing an empty
// queue is a no-op.
func (w *Worker) ProcessQueue(maxJobs, maxToolsPerJob int) Result {
	st := w.loadState()
	if st.Paused {
		w.log.Debugw("worker paused, skipping", "reason", st.PauseReason)
		return Result{}
	}
	if maxJobs <= 0 {
		maxJobs = w.cfg.MaxJobs
	}
	if maxToolsPerJob <= 0 {
		maxToolsPerJob = w.cfg.MaxToolsPerJob
	}

	lock := storage.NewFileLock(w.lockPath)
	if err := lock.Acquire(lockWait); err != nil {
		w.log.Debugw("queue busy, skipping tick", "err", err)
		return Result{}
	}
	defer lock.Release()

	var jobs []advice.PrefetchJob
	storage.ReadJSON(w.jobsPath, &jobs)
	if len(jobs) == 0 {
		return Result{}
	}

	processed := make(map[string]bool, len(st.ProcessedIDs))
	for _, id := range st.ProcessedIDs {
		processed[id] = true
	}

	var res Result
	var remaining []advice.PrefetchJob
	for _, job := range jobs {
		if res.JobsProcessed >= maxJobs {
			remaining = append(remaining, job)
			continue
		}
		if job.JobID != "" && processed[job.JobID] {
			continue // at-most-once within the tracked window
		}
		created := w.processJob(job, maxToolsPerJob)
		res.JobsProcessed++
		res.PacketsCreated += created
		if job.JobID != "" {
			st.ProcessedIDs = append(st.ProcessedIDs, job.JobID)
			processed[job.JobID] = true
		}
	}

	if idCap := w.cfg.ProcessedCap; idCap > 0 && len(st.ProcessedIDs) > idCap {
		st.ProcessedIDs = st.ProcessedIDs[len(st.ProcessedIDs)-idCap:]
	}
	st.LastRunAt = w.clock()
	st.PacketsCreated += res.PacketsCreated

	if err := storage.WriteJSONAtomic(w.jobsPath, remaining); err != nil {
		w.log.Debugw("queue rewrite failed", "err", err)
	}
	w.saveState(st)

	if res.JobsProcessed > 0 {
		w.log.Infow("queue processed", "jobs", res.JobsProcessed, "packets", res.PacketsCreated)
	}
	return res
}

// processJob plans tools for one job and saves a baseline packet per
// planned tool.
func (w *Worker) processJob(job advice.PrefetchJob, maxTools int) int {
	created := 0
	for _, pred := range Plan(w.table, job, maxTools, w.cfg.MinProbability) {
		pkt := advice.AdvisoryPacket{
			ProjectKey:        job.ProjectKey,
			SessionContextKey: job.SessionContextKey,
			ToolName:          pred.Tool,
			IntentFamily:      job.IntentFamily,
			TaskPlane:         job.TaskPlane,
			AdvisoryText:      BaselineText(job.IntentFamily, pred.Tool),
			Lineage:           advice.Lineage{Source: "prefetch_baseline", Quality: 0.4},
			CreatedAt:         w.clock(),
		}
		if id := w.cache.Save(pkt); id != "" {
			created++
		}
	}
	return created
}

// BaselineText synthesizes a deterministic advisory per (intent, tool)
// with no retrieval dependency. It is intentionally bland: baseline
// packets exist so a cache hit is possible before any real insight has
// been learned for the key.
func BaselineText(intent, tool string) string {
	switch intent {
	case "testing_validation":
		return fmt.Sprintf("Before running %s for tests, confirm the test target matches the files just changed.", tool)
	case "code_authoring":
		return fmt.Sprintf("When using %s to author code, re-read the surrounding file region first to match local conventions.", tool)
	case "debugging":
		return fmt.Sprintf("While debugging with %s, reproduce the failure once before changing anything.", tool)
	case "refactoring":
		return fmt.Sprintf("When refactoring via %s, keep each change compilable and run the narrowest affected tests.", tool)
	case "deployment":
		return fmt.Sprintf("Before deployment steps with %s, verify the working tree is clean and the build is current.", tool)
	case "exploration":
		return fmt.Sprintf("Exploring with %s: prefer narrow queries over whole-tree scans to keep context small.", tool)
	default:
		return fmt.Sprintf("Check recent outcomes for %s before repeating a previously failed approach.", tool)
	}
}
