package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/flymap/trackd/internal/types"
)

// MockDevice creates a stale skylines device for testing.
func MockDevice(id, providerID string) *types.Device {
	return &types.Device{
		ID:         id,
		Provider:   "skylines",
		ProviderID: providerID,
		Updated:    0,
	}
}

// MockTrack creates a track with two samples starting at firstTs.
func MockTrack(group int64, index int, firstTs int64) *types.Track {
	return &types.Track{
		ID:    types.TrackID(group, index),
		Group: group,
		Index: index,
		Name:  fmt.Sprintf("pilot-%d", group),
		Ts:    []int64{firstTs, firstTs + 1000},
		Lat:   []float64{45.1, 45.2},
		Lon:   []float64{6.5, 6.6},
		Alt:   []float64{1000, 1010},
	}
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
