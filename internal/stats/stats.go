package stats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Persister stores a statistics snapshot.
type Persister interface {
	StoreRefreshStats(snapshot map[string]interface{}) error
}

// Stats tracks provider refresh statistics across runs.
type Stats struct {
	Runs              uint64
	DevicesPolled     uint64
	DevicesActive     uint64
	DevicesFailed     uint64
	DevicesSkipped    uint64
	BudgetExhaustions uint64

	// Timing
	PollTime    time.Duration
	LastRunTime time.Time

	persister Persister

	mu sync.RWMutex
}

// New creates a new Stats instance.
func New() *Stats {
	return &Stats{
		LastRunTime: time.Now(),
	}
}

// SetPersister sets the store used for periodic persistence.
func (s *Stats) SetPersister(p Persister) {
	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()
}

// IncrementRuns increments the completed runs counter.
func (s *Stats) IncrementRuns() {
	atomic.AddUint64(&s.Runs, 1)
	s.mu.Lock()
	s.LastRunTime = time.Now()
	s.mu.Unlock()
}

// IncrementDevicesPolled increments the polled devices counter.
func (s *Stats) IncrementDevicesPolled() {
	atomic.AddUint64(&s.DevicesPolled, 1)
}

// IncrementDevicesActive increments the active devices counter.
func (s *Stats) IncrementDevicesActive() {
	atomic.AddUint64(&s.DevicesActive, 1)
}

// IncrementDevicesFailed increments the failed devices counter.
func (s *Stats) IncrementDevicesFailed() {
	atomic.AddUint64(&s.DevicesFailed, 1)
}

// IncrementDevicesSkipped increments the skipped devices counter.
func (s *Stats) IncrementDevicesSkipped() {
	atomic.AddUint64(&s.DevicesSkipped, 1)
}

// IncrementBudgetExhaustions increments the budget exhaustion counter.
func (s *Stats) IncrementBudgetExhaustions() {
	atomic.AddUint64(&s.BudgetExhaustions, 1)
}

// AddPollTime adds to the total poll time.
func (s *Stats) AddPollTime(duration time.Duration) {
	s.mu.Lock()
	s.PollTime += duration
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics.
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"runs":               atomic.LoadUint64(&s.Runs),
		"devices_polled":     atomic.LoadUint64(&s.DevicesPolled),
		"devices_active":     atomic.LoadUint64(&s.DevicesActive),
		"devices_failed":     atomic.LoadUint64(&s.DevicesFailed),
		"devices_skipped":    atomic.LoadUint64(&s.DevicesSkipped),
		"budget_exhaustions": atomic.LoadUint64(&s.BudgetExhaustions),
		"poll_time":          s.PollTime,
		"last_run_time":      s.LastRunTime,
	}
}

// Persist stores the current statistics.
func (s *Stats) Persist() error {
	s.mu.RLock()
	p := s.persister
	s.mu.RUnlock()
	if p == nil {
		return fmt.Errorf("persister not set")
	}
	return p.StoreRefreshStats(s.GetStats())
}

// String returns a string representation of the statistics.
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Runs: %d\n"+
			"Devices Polled: %d\n"+
			"Devices Active: %d\n"+
			"Devices Failed: %d\n"+
			"Devices Skipped: %d\n"+
			"Budget Exhaustions: %d\n"+
			"Poll Time: %s\n"+
			"Last Run: %s",
		stats["runs"],
		stats["devices_polled"],
		stats["devices_active"],
		stats["devices_failed"],
		stats["devices_skipped"],
		stats["budget_exhaustions"],
		stats["poll_time"],
		stats["last_run_time"],
	)
}

// StartPersistence periodically persists statistics until the context
// is canceled, then persists one final snapshot.
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist final statistics: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist statistics: %v", err)
			}
		}
	}
}
