package types

import (
	"fmt"
	"strconv"
	"strings"
)

// GeoPoint represents a single telemetry sample. Timestamps are
// milliseconds since epoch. Immutable once produced by a decoder.
type GeoPoint struct {
	Ts        int64   `json:"ts"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Alt       int     `json:"alt"`
	Name      string  `json:"name"`
	Emergency bool    `json:"emergency"`
}

// Device represents one tracked entity as held by the provider side.
// Features holds the most recent decoded points as a serialized GeoJSON
// feature collection.
type Device struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	Updated    int64  `json:"updated"`
	Active     bool   `json:"active"`
	Features   string `json:"features"`
}

// DeviceUpdate is published after a device has been refreshed.
type DeviceUpdate struct {
	DeviceID  string `json:"device_id"`
	Provider  string `json:"provider"`
	Active    bool   `json:"active"`
	NumPoints int    `json:"num_points"`
	Updated   int64  `json:"updated"`
}

// Track represents one flight on the viewer side. A track belongs to a
// group (a batch of tracks loaded together) and is identified by its
// group id and its index within the group.
type Track struct {
	ID    string
	Group int64
	Index int
	Name  string

	// Sample series, aligned by index.
	Ts  []int64
	Lat []float64
	Lon []float64
	Alt []float64

	// Enrichment results, absent until patched in.
	GroundAltitude []int32
	Airspaces      *Airspaces
	VZ             []float64
	MaxAlt         int
	MinAlt         int

	// True when server-side post-processing has already completed.
	PostProcessed bool
}

// Airspaces holds the airspace crossings of one track.
type Airspaces struct {
	StartSec []int32  `json:"start_sec"`
	EndSec   []int32  `json:"end_sec"`
	Name     []string `json:"name"`
	Category []string `json:"category"`
	Top      []int32  `json:"top"`
	Bottom   []int32  `json:"bottom"`
}

// TrackPatch is a partial track update. Nil fields are left untouched
// when the patch is merged, so enrichment results can arrive in any
// order from the worker and from server metadata.
type TrackPatch struct {
	GroundAltitude []int32
	Airspaces      *Airspaces
	VZ             []float64
	MaxAlt         *int
	MinAlt         *int
	PostProcessed  *bool
}

// TrackID builds the composite track id from a group id and the track's
// index within the group.
func TrackID(group int64, index int) string {
	return fmt.Sprintf("%d-%d", group, index)
}

// GroupFromTrackID extracts the group id from a composite track id.
func GroupFromTrackID(id string) (int64, error) {
	sep := strings.IndexByte(id, '-')
	if sep <= 0 {
		return 0, fmt.Errorf("invalid track id %q", id)
	}
	group, err := strconv.ParseInt(id[:sep], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid track id %q: %w", id, err)
	}
	return group, nil
}
