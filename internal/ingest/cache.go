package ingest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mschirtzinger/savewatch/internal/extract"
)

// TierResult is one committed extraction result. Immutable after commit.
type TierResult struct {
	Tier       extract.Tier
	Payload    *extract.Payload
	Generation uint64
	ComputedAt time.Time
	Duration   time.Duration
}

// Cache holds the latest committed result per tier.
//
// Readers load a slot with a single atomic pointer read and never block on
// writers. Writers serialize on a per-tier mutex that also guards the latest
// dispatched generation, which is what makes the commit rule enforceable:
// a result commits only while its generation is still the latest one handed
// out for that tier. A job that was superseded and finishes late is refused
// no matter how the process exits interleaved.
type Cache struct {
	mu     [extract.NumTiers]sync.Mutex
	latest [extract.NumTiers]uint64
	slots  [extract.NumTiers]atomic.Pointer[TierResult]
}

func NewCache() *Cache {
	return &Cache{}
}

// NextGeneration assigns the next dispatch generation for tier. Generations
// are monotonic and scoped per tier.
func (c *Cache) NextGeneration(tier extract.Tier) uint64 {
	c.mu[tier].Lock()
	defer c.mu[tier].Unlock()
	c.latest[tier]++
	return c.latest[tier]
}

// LatestGeneration returns the most recently dispatched generation for tier,
// or zero if nothing has been dispatched.
func (c *Cache) LatestGeneration(tier extract.Tier) uint64 {
	c.mu[tier].Lock()
	defer c.mu[tier].Unlock()
	return c.latest[tier]
}

// Commit installs payload as tier's current result if generation is still
// the latest dispatched for that tier, and returns ErrStaleResultDiscarded
// otherwise. The swap is a single pointer store; a reader sees either the
// old result or the new one, never a mix.
func (c *Cache) Commit(tier extract.Tier, generation uint64, payload *extract.Payload, took time.Duration) error {
	c.mu[tier].Lock()
	defer c.mu[tier].Unlock()

	if generation != c.latest[tier] {
		return fmt.Errorf("tier %s generation %d (latest %d): %w",
			tier, generation, c.latest[tier], ErrStaleResultDiscarded)
	}
	c.slots[tier].Store(&TierResult{
		Tier:       tier,
		Payload:    payload,
		Generation: generation,
		ComputedAt: time.Now(),
		Duration:   took,
	})
	return nil
}

// Result returns the latest committed result for tier. The second return is
// false if no result has ever committed for that tier.
func (c *Cache) Result(tier extract.Tier) (*TierResult, bool) {
	r := c.slots[tier].Load()
	return r, r != nil
}

// IsStale reports whether a derived artifact should be recomputed: true iff
// either counter has reached or exceeded its threshold. Exact equality
// counts as stale. Collaborators keeping their own derived artifacts apply
// the same test rather than inventing per-consumer freshness rules.
func IsStale(counters, thresholds [2]uint64) bool {
	return counters[0] >= thresholds[0] || counters[1] >= thresholds[1]
}
