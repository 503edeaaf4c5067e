// Package tuner maintains per-source effectiveness statistics and
// retunes per-source ranking boosts in bounded steps. Boosts always
// lie in [advice.BoostMin, advice.BoostMax] and move by at most the
// configured step per run, so a burst of skewed evidence cannot whip
// the ranking around.
package tuner

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// SourceStats counts helpful vs total classified advisories per source.
type SourceStats struct {
	Helpful int `json:"helpful"`
	Total   int `json:"total"`
}

// Effectiveness is the helpful fraction, 0 when unsampled.
func (s SourceStats) Effectiveness() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Helpful) / float64(s.Total)
}

// Store persists boosts and stats as whole-file JSON, each rewritten
// atomically per mutation. Reads degrade to empty on missing/corrupt.
type Store struct {
	mu         sync.Mutex
	boostsPath string
	statsPath  string
	log        *zap.SugaredLogger
}

type boostsFile struct {
	Boosts    map[string]advice.SourceBoost `json:"boosts"`
	UpdatedAt time.Time                     `json:"updated_at,omitzero"`
}

type statsFile struct {
	Sources map[string]SourceStats `json:"sources"`
}

// NewStore creates a store over the given paths.
func NewStore(boostsPath, statsPath string, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{boostsPath: boostsPath, statsPath: statsPath, log: log}
}

// Boosts returns the current source→boost multiplier map for ranking.
// Unknown sources are absent; callers default them to 1.0.
func (s *Store) Boosts() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bf boostsFile
	storage.ReadJSON(s.boostsPath, &bf)
	out := make(map[string]float64, len(bf.Boosts))
	for src, b := range bf.Boosts {
		out[src] = b.Boost
	}
	return out
}

// SourceBoosts returns the full boost records.
func (s *Store) SourceBoosts() map[string]advice.SourceBoost {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bf boostsFile
	storage.ReadJSON(s.boostsPath, &bf)
	if bf.Boosts == nil {
		bf.Boosts = make(map[string]advice.SourceBoost)
	}
	return bf.Boosts
}

// saveBoosts rewrites the boost file. Caller holds the lock.
func (s *Store) saveBoosts(boosts map[string]advice.SourceBoost, now time.Time) {
	bf := boostsFile{Boosts: boosts, UpdatedAt: now}
	if err := storage.WriteJSONAtomic(s.boostsPath, bf); err != nil {
		s.log.Debugw("boosts write failed", "err", err)
	}
}

// RecordOutcome folds one classified advisory effect into the stats.
// Neutral effects count toward totals: an advisory that did nothing is
// evidence against its source too.
func (s *Store) RecordOutcome(source string, helpful bool) {
	if source == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var sf statsFile
	storage.ReadJSON(s.statsPath, &sf)
	if sf.Sources == nil {
		sf.Sources = make(map[string]SourceStats)
	}
	st := sf.Sources[source]
	st.Total++
	if helpful {
		st.Helpful++
	}
	sf.Sources[source] = st
	if err := storage.WriteJSONAtomic(s.statsPath, sf); err != nil {
		s.log.Debugw("stats write failed", "err", err)
	}
}

// Stats returns the per-source counters.
func (s *Store) Stats() map[string]SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sf statsFile
	storage.ReadJSON(s.statsPath, &sf)
	if sf.Sources == nil {
		sf.Sources = make(map[string]SourceStats)
	}
	return sf.Sources
}
