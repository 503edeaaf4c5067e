// Package packet implements the advisory packet cache: precomputed
// advisory bundles keyed by (project, session context, tool, intent
// family), persisted as a single JSON index rewritten atomically per
// mutation. Any read or parse failure degrades to "no packets" so a
// cold or corrupt cache is always a safe fallback to the live path.
package packet

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/advice"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/storage"
)

// Cache stores advisory packets with FIFO capacity eviction. It is
// safe for concurrent use within a process; across processes the
// whole-file atomic replace gives last-writer-wins semantics.
type Cache struct {
	mu    sync.Mutex
	path  string
	cfg   config.CacheConfig
	clock func() time.Time
	log   *zap.SugaredLogger
}

// index is the persisted form. Append order is age order: the oldest
// packet is always index 0.
type index struct {
	Packets []advice.AdvisoryPacket `json:"packets"`
}

// Status is a read-only, JSON-serializable snapshot for dashboards.
type Status struct {
	TotalPackets int       `json:"total_packets"`
	Capacity     int       `json:"capacity"`
	OldestAt     time.Time `json:"oldest_at,omitzero"`
	NewestAt     time.Time `json:"newest_at,omitzero"`
	ByTool       map[string]int `json:"by_tool,omitempty"`
}

// NewCache creates a cache over the given index path.
func NewCache(cfg config.CacheConfig, path string, log *zap.SugaredLogger, clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Cache{path: path, cfg: cfg, clock: clock, log: log}
}

// load reads the index, degrading to empty on any failure.
func (c *Cache) load() index {
	var idx index
	if !storage.ReadJSON(c.path, &idx) {
		return index{}
	}
	return idx
}

// LookupExact returns the newest packet matching all four key
// dimensions that is still under TTL.
func (c *Cache) LookupExact(project, sessionCtx, tool, intent string) (advice.AdvisoryPacket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.load()
	now := c.clock()
	var best advice.AdvisoryPacket
	found := false
	for _, p := range idx.Packets {
		if p.ProjectKey != project || p.SessionContextKey != sessionCtx ||
			p.ToolName != tool || p.IntentFamily != intent {
			continue
		}
		if c.expired(p, now) {
			continue
		}
		if !found || p.CreatedAt.After(best.CreatedAt) {
			best = p
			found = true
		}
	}
	if found {
		c.log.Debugw("cache hit", "kind", "exact", "tool", tool, "intent", intent, "packet", best.PacketID)
	}
	return best, found
}

// LookupRelaxed progressively loosens the key: first the intent family
// is dropped, then the tool. Candidates below the minimum lineage
// quality are rejected; among survivors the highest specificity score
// wins (tool match counts double an intent match), newest breaking
// ties.
func (c *Cache) LookupRelaxed(project, sessionCtx, tool, intent string) (advice.AdvisoryPacket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.load()
	now := c.clock()
	var best advice.AdvisoryPacket
	bestScore := -1
	for _, p := range idx.Packets {
		if p.ProjectKey != project || p.SessionContextKey != sessionCtx {
			continue
		}
		if c.expired(p, now) || p.Lineage.Quality < c.cfg.MinLineageQuality {
			continue
		}
		score := 0
		if p.ToolName == tool {
			score += 2
		}
		if p.IntentFamily == intent {
			score++
		}
		// score 0 = project/context-only fallback, the loosest tier.
		if score > bestScore || (score == bestScore && p.CreatedAt.After(best.CreatedAt)) {
			best = p
			bestScore = score
		}
	}
	if bestScore < 0 {
		return advice.AdvisoryPacket{}, false
	}
	c.log.Debugw("cache hit", "kind", "relaxed", "tool", tool, "intent", intent,
		"packet", best.PacketID, "score", bestScore)
	return best, true
}

// Save validates and appends a packet, evicting the oldest packets
// beyond capacity (FIFO, not LRU). It returns the packet id, or ""
// when the packet was invalid or could not be persisted.
func (c *Cache) Save(p advice.AdvisoryPacket) string {
	if err := p.Validate(); err != nil {
		c.log.Debugw("packet rejected", "err", err)
		return ""
	}
	if p.PacketID == "" {
		p.PacketID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.clock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.load()
	idx.Packets = append(idx.Packets, p)
	if c.cfg.Capacity > 0 && len(idx.Packets) > c.cfg.Capacity {
		evicted := len(idx.Packets) - c.cfg.Capacity
		idx.Packets = idx.Packets[evicted:]
		c.log.Debugw("evicted packets", "count", evicted)
	}
	if err := storage.WriteJSONAtomic(c.path, idx); err != nil {
		c.log.Debugw("packet index write failed", "err", err)
		return ""
	}
	return p.PacketID
}

// Status reports current cache contents without side effects.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.load()
	st := Status{
		TotalPackets: len(idx.Packets),
		Capacity:     c.cfg.Capacity,
		ByTool:       make(map[string]int),
	}
	for i, p := range idx.Packets {
		if i == 0 || p.CreatedAt.Before(st.OldestAt) {
			st.OldestAt = p.CreatedAt
		}
		if p.CreatedAt.After(st.NewestAt) {
			st.NewestAt = p.CreatedAt
		}
		st.ByTool[p.ToolName]++
	}
	return st
}

func (c *Cache) expired(p advice.AdvisoryPacket, now time.Time) bool {
	ttl := c.cfg.TTL()
	return ttl > 0 && now.Sub(p.CreatedAt) > ttl
}
