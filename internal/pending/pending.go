// Package pending tracks which track groups have an outstanding
// server-side enrichment request and for how long.
package pending

import (
	"sort"
	"sync"
	"time"
)

// Tracker maps group ids to the time their metadata was first
// requested. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	started map[int64]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{started: make(map[int64]time.Time)}
}

// Add records now as the request start for a group. Re-adding a group
// already present is a no-op and preserves the original request time,
// so expiry is measured from the first request. Returns true when the
// group was not present before.
func (t *Tracker) Add(group int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.started[group]; ok {
		return false
	}
	t.started[group] = now
	return true
}

// Remove drops a group, typically after its metadata patch has been
// applied.
func (t *Tracker) Remove(group int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.started, group)
}

// SweepExpired removes every group whose request started at or before
// now-ttl.
func (t *Tracker) SweepExpired(now time.Time, ttl time.Duration) {
	dropBefore := now.Add(-ttl)
	t.mu.Lock()
	defer t.mu.Unlock()
	for group, started := range t.started {
		if !started.After(dropBefore) {
			delete(t.started, group)
		}
	}
}

// IDs returns the pending group ids in ascending order.
func (t *Tracker) IDs() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int64, 0, len(t.started))
	for group := range t.started {
		ids = append(ids, group)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Empty reports whether no group is pending.
func (t *Tracker) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.started) == 0
}

// Len returns the number of pending groups.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.started)
}
