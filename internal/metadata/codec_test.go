package metadata

import (
	"reflect"
	"testing"

	"github.com/flymap/trackd/internal/types"
)

func TestMetaBatchRoundTrip(t *testing.T) {
	groups := []MetaGroup{
		{
			ID: 42,
			GroundAltitudes: []GroundAltitude{
				{Altitudes: []int32{900, 905, -12}},
				{Altitudes: []int32{1000}, HasErrors: true},
			},
			Airspaces: []*types.Airspaces{
				{
					StartSec: []int32{0, 120},
					EndSec:   []int32{60, 180},
					Name:     []string{"TMA Geneva", "R-45"},
					Category: []string{"C", "R"},
					Top:      []int32{5500, 3000},
					Bottom:   []int32{1500, 0},
				},
				{},
			},
		},
		{ID: 7},
	}

	decoded, err := DecodeMetaBatch(EncodeMetaBatch(groups))
	if err != nil {
		t.Fatalf("DecodeMetaBatch() unexpected error: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d groups, want 2", len(decoded))
	}

	if decoded[0].ID != 42 {
		t.Errorf("group 0 id = %d, want 42", decoded[0].ID)
	}
	if !reflect.DeepEqual(decoded[0].GroundAltitudes, groups[0].GroundAltitudes) {
		t.Errorf("ground altitudes = %+v, want %+v", decoded[0].GroundAltitudes, groups[0].GroundAltitudes)
	}
	if !reflect.DeepEqual(decoded[0].Airspaces, groups[0].Airspaces) {
		t.Errorf("airspaces = %+v, want %+v", decoded[0].Airspaces, groups[0].Airspaces)
	}

	// A group without series keeps nil slices so the engine can tell
	// "no data yet" apart from "empty data".
	if decoded[1].GroundAltitudes != nil || decoded[1].Airspaces != nil {
		t.Errorf("group 1 should have no series, got %+v", decoded[1])
	}
}

func TestDecodeMetaBatchEmpty(t *testing.T) {
	groups, err := DecodeMetaBatch(nil)
	if err != nil {
		t.Fatalf("DecodeMetaBatch(nil) unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected empty batch, got %d groups", len(groups))
	}
}

func TestDecodeMetaBatchTruncated(t *testing.T) {
	encoded := EncodeMetaBatch([]MetaGroup{{ID: 1}})
	if _, err := DecodeMetaBatch(encoded[:len(encoded)-1]); err == nil {
		t.Error("DecodeMetaBatch() expected error for truncated input")
	}
}

func TestTrackBatchRoundTrip(t *testing.T) {
	tracks := []*types.Track{
		{
			Group: 42,
			Index: 0,
			Name:  "pilot one",
			Ts:    []int64{1686391200000, 1686391210000},
			Lat:   []float64{45.12345, 45.12445},
			Lon:   []float64{6.54321, 6.54521},
			Alt:   []float64{1200, 1210},
		},
		{
			Group:         42,
			Index:         1,
			Ts:            []int64{1686391200000},
			Lat:           []float64{-33.4},
			Lon:           []float64{-70.6},
			Alt:           []float64{500},
			PostProcessed: true,
		},
	}

	decoded, err := DecodeTrackBatch(EncodeTrackBatch(tracks))
	if err != nil {
		t.Fatalf("DecodeTrackBatch() unexpected error: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d tracks, want 2", len(decoded))
	}

	if decoded[0].ID != "42-0" || decoded[1].ID != "42-1" {
		t.Errorf("derived ids = %q, %q; want 42-0, 42-1", decoded[0].ID, decoded[1].ID)
	}
	if decoded[0].Name != "pilot one" {
		t.Errorf("name = %q, want %q", decoded[0].Name, "pilot one")
	}
	if !reflect.DeepEqual(decoded[0].Ts, tracks[0].Ts) {
		t.Errorf("ts = %v, want %v", decoded[0].Ts, tracks[0].Ts)
	}
	if !reflect.DeepEqual(decoded[0].Lat, tracks[0].Lat) {
		t.Errorf("lat = %v, want %v", decoded[0].Lat, tracks[0].Lat)
	}
	if !reflect.DeepEqual(decoded[1].Lon, tracks[1].Lon) {
		t.Errorf("lon = %v, want %v", decoded[1].Lon, tracks[1].Lon)
	}
	if !decoded[1].PostProcessed {
		t.Error("track 1 should be post-processed")
	}
	if decoded[0].PostProcessed {
		t.Error("track 0 should not be post-processed")
	}
}
