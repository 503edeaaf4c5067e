package outcome

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

type matcherFixture struct {
	m            *Matcher
	feedbackPath string
	outcomePath  string
}

func newMatcherFixture(t *testing.T) *matcherFixture {
	t.Helper()
	dir := t.TempDir()
	fb := filepath.Join(dir, "feedback.ndjson")
	ev := filepath.Join(dir, "events.ndjson")
	cfg := config.OutcomeConfig{
		MatchWindowSeconds: 6 * 3600,
		FeedbackLogCap:     1000,
		OutcomeLogCap:      2000,
	}
	return &matcherFixture{m: NewMatcher(cfg, fb, ev, nil), feedbackPath: fb, outcomePath: ev}
}

func (f *matcherFixture) addFeedback(t *testing.T, row advice.FeedbackRow) {
	t.Helper()
	require.NoError(t, storage.AppendLine(f.feedbackPath, row, 0))
}

func (f *matcherFixture) addEvent(t *testing.T, ev advice.OutcomeEvent) {
	t.Helper()
	require.NoError(t, storage.AppendLine(f.outcomePath, ev, 0))
}

func TestMatchExplicitFeedbackInWindow(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-2 * time.Hour)

	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(1500 * time.Second),
		SessionID: "s1",
		Tool:      "Bash",
		AdviceIDs: []string{"a1"},
		Followed:  true,
		Helpful:   true,
	})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	assert.Equal(t, StatusActed, got.Status)
	assert.Equal(t, KindExplicit, got.Kind)
	require.NotNil(t, got.Feedback)
	assert.True(t, got.Feedback.Helpful)
}

func TestMatchExplicitNotFollowedIsSkipped(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-time.Hour)

	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(10 * time.Minute),
		SessionID: "s1",
		AdviceIDs: []string{"a1"},
		Followed:  false,
	})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	assert.Equal(t, StatusSkipped, got.Status)
	assert.Equal(t, KindExplicit, got.Kind)
}

func TestMatchFeedbackOutsideWindowUnresolved(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-10 * time.Hour)

	// 8h later is outside the 6h window.
	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(8 * time.Hour),
		SessionID: "s1",
		AdviceIDs: []string{"a1"},
		Followed:  true,
		Helpful:   true,
	})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	assert.Equal(t, StatusUnresolved, got.Status)
	assert.Equal(t, KindNone, got.Kind)
}

func TestMatchFeedbackBeforeEmissionIgnored(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-time.Hour)

	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(-time.Minute),
		SessionID: "s1",
		AdviceIDs: []string{"a1"},
		Followed:  true,
		Helpful:   true,
	})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	assert.Equal(t, StatusUnresolved, got.Status)
}

func TestMatchExplicitNewestWins(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-2 * time.Hour)

	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(5 * time.Minute),
		SessionID: "s1",
		AdviceIDs: []string{"a1"},
		Followed:  true,
		Helpful:   false,
	})
	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(20 * time.Minute),
		SessionID: "s1",
		AdviceIDs: []string{"a1"},
		Followed:  true,
		Helpful:   true,
	})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	require.NotNil(t, got.Feedback)
	assert.True(t, got.Feedback.Helpful, "the newest feedback row should win")
}

func TestMatchImplicitSameSessionTool(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-time.Hour)

	// Wrong tool and wrong session events must not match.
	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(time.Minute), SessionID: "s1", Tool: "Edit", Kind: "tests_passed"})
	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(time.Minute), SessionID: "s2", Tool: "Bash", Kind: "tests_passed"})
	// Earliest same-session same-tool event wins over a later one.
	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(3 * time.Minute), SessionID: "s1", Tool: "Bash", Kind: "error_resolved"})
	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(30 * time.Minute), SessionID: "s1", Tool: "Bash", Kind: "tests_failed"})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	assert.Equal(t, StatusActed, got.Status)
	assert.Equal(t, KindImplicit, got.Kind)
	require.NotNil(t, got.Event)
	assert.Equal(t, "error_resolved", got.Event.Kind)
}

func TestMatchExplicitBeatsImplicit(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-time.Hour)

	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(time.Minute), SessionID: "s1", Tool: "Bash", Kind: "tests_failed"})
	f.addFeedback(t, advice.FeedbackRow{
		CreatedAt: t0.Add(10 * time.Minute),
		SessionID: "s1",
		AdviceIDs: []string{"a1"},
		Followed:  true,
		Helpful:   true,
	})

	got := f.m.Match(Emission{AdviceID: "a1", SessionID: "s1", Tool: "Bash", CreatedAt: t0})
	assert.Equal(t, KindExplicit, got.Kind)
}

func TestLatestEvidenceFor(t *testing.T) {
	f := newMatcherFixture(t)
	t0 := time.Now().Add(-time.Hour)

	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0, SessionID: "s1", Tool: "Bash", Kind: "success", InsightKey: "ins-1"})
	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(time.Minute), SessionID: "s1", Tool: "Bash", Kind: "success", InsightKey: "ins-1"})
	f.addEvent(t, advice.OutcomeEvent{CreatedAt: t0.Add(2 * time.Minute), SessionID: "s1", Tool: "Bash", Kind: "success", InsightKey: "ins-2"})

	got := f.m.LatestEvidenceFor("ins-1")
	assert.True(t, got.Equal(t0.Add(time.Minute)))
	assert.True(t, f.m.LatestEvidenceFor("never").IsZero())
	assert.True(t, f.m.LatestEvidenceFor("").IsZero())
}
