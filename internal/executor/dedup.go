package executor

import (
	"context"
	"sync"
	"time"
)

// Dedup is the in-memory alert guard: it suppresses re-execution of an alert
// ID seen within a configurable time-to-live window. Membership check and
// insertion happen under one lock, so two concurrent deliveries of the same
// ID cannot both pass. Safe for concurrent use.
//
// The TTL bounds memory under sustained alert volume; Cleanup must be called
// periodically to drop expired entries.
type Dedup struct {
	seen map[string]time.Time // alertID -> last seen time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup that considers an alert a duplicate if its ID was
// seen within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Check returns true if alertID was seen within the TTL window. If it was
// not (or its entry expired), the ID is recorded and false is returned.
func (d *Dedup) Check(_ context.Context, alertID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if lastSeen, ok := d.seen[alertID]; ok {
		if now.Sub(lastSeen) < d.ttl {
			return true, nil
		}
	}

	d.seen[alertID] = now
	return false, nil
}

// Cleanup removes entries that have expired beyond the TTL.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
}

// Len returns the number of tracked alert IDs, expired entries included.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
