package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/packet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testWorker(t *testing.T) (*Worker, *packet.Cache) {
	t.Helper()
	cfg := config.Default()
	cfg.Home = t.TempDir()
	paths := cfg.Paths()
	cache := packet.NewCache(cfg.Cache, paths.PacketsIndex, nil, nil)
	w := NewWorker(cache, LoadPriors(""), cfg.Prefetch, paths, nil, nil)
	return w, cache
}

func testJob(id string) advice.PrefetchJob {
	return advice.PrefetchJob{
		JobID:             id,
		ProjectKey:        "proj-1",
		SessionContextKey: "ctx-1",
		IntentFamily:      "testing_validation",
	}
}

func TestProcessEmptyQueueIsNoop(t *testing.T) {
	w, _ := testWorker(t)

	for i := 0; i < 2; i++ {
		res := w.ProcessQueue(0, 0)
		assert.Zero(t, res.JobsProcessed, "pass %d", i)
		assert.Zero(t, res.PacketsCreated, "pass %d", i)
	}
	assert.Empty(t, w.StateSnapshot().ProcessedIDs)
}

func TestProcessJobCreatesPackets(t *testing.T) {
	w, cache := testWorker(t)
	require.NoError(t, w.Enqueue(testJob("j1")))

	res := w.ProcessQueue(0, 0)
	assert.Equal(t, 1, res.JobsProcessed)
	assert.Greater(t, res.PacketsCreated, 0)

	// The top predicted tool for testing_validation is Bash.
	got, ok := cache.LookupExact("proj-1", "ctx-1", "Bash", "testing_validation")
	require.True(t, ok)
	assert.Equal(t, "prefetch_baseline", got.Lineage.Source)
	assert.NotEmpty(t, got.AdvisoryText)
}

func TestJobProcessedAtMostOnce(t *testing.T) {
	w, _ := testWorker(t)
	require.NoError(t, w.Enqueue(testJob("j1")))

	first := w.ProcessQueue(0, 0)
	assert.Equal(t, 1, first.JobsProcessed)

	// Re-enqueueing the same id must not be processed again.
	require.NoError(t, w.Enqueue(testJob("j1")))
	second := w.ProcessQueue(0, 0)
	assert.Zero(t, second.JobsProcessed)

	st := w.StateSnapshot()
	assert.Equal(t, []string{"j1"}, st.ProcessedIDs)
}

func TestPauseStopsProcessing(t *testing.T) {
	w, _ := testWorker(t)
	require.NoError(t, w.Enqueue(testJob("j1")))

	w.Pause("maintenance window")
	res := w.ProcessQueue(0, 0)
	assert.Zero(t, res.JobsProcessed, "paused worker must not touch the queue")

	st := w.StateSnapshot()
	assert.True(t, st.Paused)
	assert.Equal(t, "maintenance window", st.PauseReason)

	w.Resume()
	res = w.ProcessQueue(0, 0)
	assert.Equal(t, 1, res.JobsProcessed)
	assert.False(t, w.StateSnapshot().Paused)
}

func TestMaxJobsLeavesRemainderQueued(t *testing.T) {
	w, _ := testWorker(t)
	for _, id := range []string{"j1", "j2", "j3"} {
		require.NoError(t, w.Enqueue(testJob(id)))
	}

	res := w.ProcessQueue(2, 1)
	assert.Equal(t, 2, res.JobsProcessed)

	res = w.ProcessQueue(2, 1)
	assert.Equal(t, 1, res.JobsProcessed, "leftover job should be picked up next pass")
}

func TestProcessedIDsTrimmedToCap(t *testing.T) {
	w, _ := testWorker(t)
	w.cfg.ProcessedCap = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Enqueue(testJob(string(rune('a'+i)))))
	}
	w.ProcessQueue(10, 1)

	st := w.StateSnapshot()
	assert.Equal(t, []string{"c", "d", "e"}, st.ProcessedIDs)
}

func TestBaselineTextIsDeterministic(t *testing.T) {
	a := BaselineText("debugging", "Bash")
	b := BaselineText("debugging", "Bash")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, BaselineText("debugging", "Read"))
	assert.NotEmpty(t, BaselineText("unknown_family", "Bash"))
}
