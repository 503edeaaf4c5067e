// Package advice defines the core records that flow through the spark
// advisory pipeline: candidates handed in by external retrieval, gate
// decisions, cached advisory packets, and the evidence records the
// feedback loop consumes. All records are immutable after boundary
// validation; mutation happens by constructing new values.
package advice

import (
	"fmt"
	"time"
)

// Authority is the severity/visibility tier of a gate decision.
// Tiers are ordered: silent < whisper < note < warning < block.
type Authority int

const (
	AuthoritySilent Authority = iota
	AuthorityWhisper
	AuthorityNote
	AuthorityWarning
	AuthorityBlock
)

// String returns the wire name of the authority tier.
func (a Authority) String() string {
	switch a {
	case AuthorityWhisper:
		return "whisper"
	case AuthorityNote:
		return "note"
	case AuthorityWarning:
		return "warning"
	case AuthorityBlock:
		return "block"
	default:
		return "silent"
	}
}

// ParseAuthority maps a wire name back to an Authority.
// Unknown names parse as silent.
func ParseAuthority(s string) Authority {
	switch s {
	case "whisper":
		return AuthorityWhisper
	case "note":
		return AuthorityNote
	case "warning":
		return AuthorityWarning
	case "block":
		return AuthorityBlock
	default:
		return AuthoritySilent
	}
}

// MarshalJSON encodes the authority by wire name.
func (a Authority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a wire name; unknown names become silent.
func (a *Authority) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*a = ParseAuthority(s)
	return nil
}

// CandidateAdvice is a single ranked advisory candidate produced by an
// external retrieval collaborator. Scores are in [0,1].
type CandidateAdvice struct {
	AdviceID     string  `json:"advice_id"`
	InsightKey   string  `json:"insight_key"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"`
	ContextMatch float64 `json:"context_match"`
}

// Validate checks the candidate at the boundary where external
// collaborators hand data in.
func (c CandidateAdvice) Validate() error {
	if c.AdviceID == "" {
		return fmt.Errorf("candidate advice: empty advice_id")
	}
	if c.Text == "" {
		return fmt.Errorf("candidate advice %s: empty text", c.AdviceID)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("candidate advice %s: confidence %.3f out of [0,1]", c.AdviceID, c.Confidence)
	}
	if c.ContextMatch < 0 || c.ContextMatch > 1 {
		return fmt.Errorf("candidate advice %s: context_match %.3f out of [0,1]", c.AdviceID, c.ContextMatch)
	}
	return nil
}

// GateDecision is the per-candidate output of the admission gate.
/// Decisions are ephemeral: created per evaluation call and discarded
// once the winning advisory (if any) has been emitted.
type GateDecision struct {
	AdviceID      string    `json:"advice_id"`
	Authority     Authority `json:"authority"`
	Emit          bool      `json:"emit"`
	Reason        string    `json:"reason"`
	AdjustedScore float64   `json:"adjusted_score"`
	OriginalScore float64   `json:"original_score"`
}

// Lineage records where a cached packet came from and how trustworthy
// its derivation is. Quality is in [0,1].
type Lineage struct {
	Source  string  `json:"source"`
	Quality float64 `json:"quality"`
}

// AdvisoryPacket is a precomputed advisory bundle keyed by
// (project, session context, tool, intent family). Many packets may
// exist per key over time; the most recent one under TTL wins.
type AdvisoryPacket struct {
	PacketID          string            `json:"packet_id"`
	ProjectKey        string            `json:"project_key"`
	SessionContextKey string            `json:"session_context_key"`
	ToolName          string            `json:"tool_name"`
	IntentFamily      string            `json:"intent_family"`
	TaskPlane         string            `json:"task_plane"`
	AdvisoryText      string            `json:"advisory_text"`
	AdviceItems       []CandidateAdvice `json:"advice_items,omitempty"`
	Lineage           Lineage           `json:"lineage"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Validate checks the packet before it enters the cache.
func (p AdvisoryPacket) Validate() error {
	if p.ProjectKey == "" {
		return fmt.Errorf("advisory packet: empty project_key")
	}
	if p.ToolName == "" && p.IntentFamily == "" {
		return fmt.Errorf("advisory packet: needs at least one of tool_name, intent_family")
	}
	if p.AdvisoryText == "" && len(p.AdviceItems) == 0 {
		return fmt.Errorf("advisory packet: no advisory text and no advice items")
	}
	return nil
}

// PrefetchJob asks the worker to precompute packets for a predicted
// upcoming context. Jobs are queued externally and consumed at most
// once within the tracked processed-id window.
type PrefetchJob struct {
	JobID             string `json:"job_id"`
	SessionID         string `json:"session_id"`
	ProjectKey        string `json:"project_key"`
	IntentFamily      string `json:"intent_family"`
	TaskPlane         string `json:"task_plane"`
	SessionContextKey string `json:"session_context_key"`
}

// DedupRecord is one line of the capped cross-session dedup log.
type DedupRecord struct {
	TS       time.Time `json:"ts"`
	Tool     string    `json:"tool"`
	AdviceID string    `json:"advice_id"`
	TextSig  string    `json:"text_sig"`
}

// FeedbackRow is explicit user/agent feedback referencing emitted
// advice ids. This is the strongest evidence the action matcher sees.
type FeedbackRow struct {
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `json:"session_id"`
	Tool      string    `json:"tool"`
	AdviceIDs []string  `json:"advice_ids"`
	Followed  bool      `json:"followed"`
	Helpful   bool      `json:"helpful"`
	Note      string    `json:"note,omitempty"`
}

// OutcomeEvent is implicit evidence: something observable happened in
// a session after an advisory, without referencing it directly.
type OutcomeEvent struct {
	CreatedAt  time.Time `json:"created_at"`
	SessionID  string    `json:"session_id"`
	Tool       string    `json:"tool"`
	Kind       string    `json:"kind"`
	InsightKey string    `json:"insight_key,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// SourceBoost is the per-source ranking multiplier maintained by the
// auto-tuner. Boost always lies in [BoostMin, BoostMax].
type SourceBoost struct {
	Source        string  `json:"source"`
	Boost         float64 `json:"boost"`
	Effectiveness float64 `json:"effectiveness"`
	SampleCount   int     `json:"sample_count"`
}

// Boost bounds enforced by the tuner.
const (
	BoostMin = 0.2
	BoostMax = 2.0
)
