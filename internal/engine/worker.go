package engine

import (
	"github.com/flymap/trackd/internal/types"
)

// worker is the engine-owned enrichment channel. Jobs are processed
// off the caller's goroutine; results come back as track patches.
type worker struct {
	jobs chan *types.Track
}

func newWorker() *worker {
	return &worker{jobs: make(chan *types.Track, 128)}
}

func (w *worker) submit(track *types.Track) {
	w.jobs <- track
}

func (w *worker) close() {
	close(w.jobs)
}

// Enrich computes the client-side derived fields of a track: the
// vertical speed series and the altitude extremes.
func Enrich(track *types.Track) types.TrackPatch {
	patch := types.TrackPatch{}
	if len(track.Alt) == 0 {
		return patch
	}

	maxAlt, minAlt := track.Alt[0], track.Alt[0]
	for _, alt := range track.Alt[1:] {
		if alt > maxAlt {
			maxAlt = alt
		}
		if alt < minAlt {
			minAlt = alt
		}
	}
	maxInt, minInt := int(maxAlt), int(minAlt)
	patch.MaxAlt = &maxInt
	patch.MinAlt = &minInt

	n := len(track.Alt)
	if len(track.Ts) < n {
		n = len(track.Ts)
	}
	vz := make([]float64, n)
	for i := 1; i < n; i++ {
		dt := float64(track.Ts[i]-track.Ts[i-1]) / 1000
		if dt > 0 {
			vz[i] = (track.Alt[i] - track.Alt[i-1]) / dt
		}
	}
	if len(vz) > 1 {
		vz[0] = vz[1]
	}
	patch.VZ = vz

	return patch
}
