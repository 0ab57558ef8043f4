package skylines

import (
	"math"
	"time"

	"github.com/flymap/trackd/internal/polyline"
	"github.com/flymap/trackd/internal/types"
)

const secondsInDay = 24 * 60 * 60

// Flight is one live flight as returned by the skylines API. The
// series are polyline delta-encoded: barogram_t holds seconds since
// midnight UTC of the day the track started, points holds lat/lon
// pairs scaled by 1e5 and barogram_h holds barometric heights.
type Flight struct {
	BarogramTime   string  `json:"barogram_t"`
	Points         string  `json:"points"`
	BarogramHeight string  `json:"barogram_h"`
	Geoid          float64 `json:"geoid"`
}

// Pilot is one pilot as returned by the skylines API.
type Pilot struct {
	Name string `json:"name"`
}

// LiveResponse is the body of the live endpoint.
type LiveResponse struct {
	Flights []Flight `json:"flights"`
	Pilots  []Pilot  `json:"pilots"`
}

// DecodeFlight decodes a flight into absolute-timestamped points,
// dropping samples older than maxAgeHours relative to now (inclusive
// bound). A malformed flight decodes to no points.
//
// The time series carries no date, only seconds since the midnight UTC
// preceding the track start. The start day is reconstructed against
// now: when the track's in-day offset is greater than now's in-day
// offset, the track is assumed to have started on the previous
// calendar day. This only holds for tracks no older than about 24h, so
// callers polling over long periods must pass a fresh now each cycle.
//
// DecodeFlight is pure and safe for concurrent use.
func DecodeFlight(flight Flight, name string, maxAgeHours int, now time.Time) []types.GeoPoint {
	seconds, err := polyline.DecodeDeltas(flight.BarogramTime, 1, 1)
	if err != nil {
		return nil
	}
	lonlat, err := polyline.DecodeDeltas(flight.Points, 2, 1e5)
	if err != nil {
		return nil
	}
	heights, err := polyline.DecodeDeltas(flight.BarogramHeight, 1, 1)
	if err != nil {
		return nil
	}
	if len(seconds) == 0 || len(lonlat) != 2*len(seconds) || len(heights) != len(seconds) {
		return nil
	}

	startSeconds := int64(seconds[0])
	startDaySeconds := startSeconds % secondsInDay
	// Current timestamp in seconds, rounded up like the reference
	// viewer does.
	nowSeconds := (now.UnixMilli() + 999) / 1000
	nowDaySeconds := nowSeconds % secondsInDay
	startedOnPreviousDay := startDaySeconds > nowDaySeconds
	startOfCurrentDay := nowSeconds - nowDaySeconds

	// Timestamp of the first fix.
	startTimestamp := startOfCurrentDay + startDaySeconds
	if startedOnPreviousDay {
		startTimestamp -= secondsInDay
	}

	var points []types.GeoPoint
	for i, s := range seconds {
		ts := startTimestamp + int64(s) - startSeconds
		if nowSeconds-ts > int64(maxAgeHours)*3600 {
			continue
		}
		points = append(points, types.GeoPoint{
			Ts:   ts * 1000,
			Lat:  math.Round(lonlat[2*i]*1e5) / 1e5,
			Lon:  math.Round(lonlat[2*i+1]*1e5) / 1e5,
			Alt:  int(math.Round(heights[i] + flight.Geoid)),
			Name: name,
		})
	}
	return points
}
