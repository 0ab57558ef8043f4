// Package trackstore holds the authoritative in-memory collection of
// loaded tracks on the viewer side.
package trackstore

import (
	"sort"
	"sync"

	"github.com/flymap/trackd/internal/types"
)

// Store keys tracks by their composite id and keeps them in natural
// order: ascending first-sample timestamp. The current-track cursor,
// when set, always refers to an id present in the store. Safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	tracks  map[string]*types.Track
	order   []string
	current string
}

// New creates an empty store.
func New() *Store {
	return &Store{tracks: make(map[string]*types.Track)}
}

// InsertMany adds tracks keyed by id. Callers must not insert an id
// twice; producers are expected to load each track at most once.
func (s *Store) InsertMany(tracks []*types.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, track := range tracks {
		s.tracks[track.ID] = track
		s.order = append(s.order, track.ID)
	}
	s.sortLocked()
}

// Patch merges non-nil patch fields into the track with the given id.
// Patching an unknown id is a no-op: enrichment results may arrive
// after their track was removed. Returns true when a track was
// patched.
func (s *Store) Patch(id string, patch types.TrackPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	track, ok := s.tracks[id]
	if !ok {
		return false
	}
	if patch.GroundAltitude != nil {
		track.GroundAltitude = patch.GroundAltitude
	}
	if patch.Airspaces != nil {
		track.Airspaces = patch.Airspaces
	}
	if patch.VZ != nil {
		track.VZ = patch.VZ
	}
	if patch.MaxAlt != nil {
		track.MaxAlt = *patch.MaxAlt
	}
	if patch.MinAlt != nil {
		track.MinAlt = *patch.MinAlt
	}
	if patch.PostProcessed != nil {
		track.PostProcessed = *patch.PostProcessed
	}
	return true
}

// RemoveByGroupIDs removes every track belonging to any of the given
// groups. When the current-track cursor pointed at a removed track it
// is reassigned to the first remaining id in natural order, or unset
// when the store becomes empty.
func (s *Store) RemoveByGroupIDs(groups []int64) {
	drop := make(map[int64]bool, len(groups))
	for _, g := range groups {
		drop[g] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if drop[s.tracks[id].Group] {
			delete(s.tracks, id)
		} else {
			kept = append(kept, id)
		}
	}
	s.order = kept

	if len(s.order) == 0 {
		s.current = ""
		return
	}
	if s.current != "" {
		if _, ok := s.tracks[s.current]; !ok {
			s.current = s.order[0]
		}
	}
}

// SelectNext advances the cursor to the next track in natural order,
// wrapping around after the last. A no-op when no current track is
// set or the store is empty.
func (s *Store) SelectNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" || len(s.order) == 0 {
		return
	}
	for i, id := range s.order {
		if id == s.current {
			s.current = s.order[(i+1)%len(s.order)]
			return
		}
	}
}

// SetCurrent points the cursor at the given id if it is present.
func (s *Store) SetCurrent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[id]; ok {
		s.current = id
	}
}

// Current returns the cursor, or "" when unset.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Get returns the track with the given id.
func (s *Store) Get(id string) (*types.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	track, ok := s.tracks[id]
	return track, ok
}

// IDs returns the track ids in natural order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// sortLocked re-sorts ids by first-sample timestamp, ties broken by id
// for determinism. Tracks without samples sort first.
func (s *Store) sortLocked() {
	firstTs := func(id string) int64 {
		if ts := s.tracks[id].Ts; len(ts) > 0 {
			return ts[0]
		}
		return 0
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		ti, tj := firstTs(s.order[i]), firstTs(s.order[j])
		if ti != tj {
			return ti < tj
		}
		return s.order[i] < s.order[j]
	})
}
