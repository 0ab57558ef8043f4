package geojson

import (
	"encoding/json"
	"testing"

	"github.com/flymap/trackd/internal/types"
)

func TestEncodeFeaturesEmpty(t *testing.T) {
	encoded, err := EncodeFeatures(nil)
	if err != nil {
		t.Fatalf("EncodeFeatures() unexpected error: %v", err)
	}

	var fc FeatureCollection
	if err := json.Unmarshal([]byte(encoded), &fc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("type = %q, want FeatureCollection", fc.Type)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected no features, got %d", len(fc.Features))
	}
}

func TestEncodeFeatures(t *testing.T) {
	points := []types.GeoPoint{
		{Ts: 1000, Lat: 45.1, Lon: 6.5, Alt: 1200, Name: "pilot"},
		{Ts: 2000, Lat: 45.2, Lon: 6.6, Alt: 1250, Name: "pilot"},
	}

	encoded, err := EncodeFeatures(points)
	if err != nil {
		t.Fatalf("EncodeFeatures() unexpected error: %v", err)
	}

	var fc FeatureCollection
	if err := json.Unmarshal([]byte(encoded), &fc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	// One line feature plus one point feature per sample.
	if len(fc.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(fc.Features))
	}
	if fc.Features[0].Geometry.Type != "LineString" {
		t.Errorf("first feature geometry = %q, want LineString", fc.Features[0].Geometry.Type)
	}
	for i, f := range fc.Features[1:] {
		if f.Geometry.Type != "Point" {
			t.Errorf("feature %d geometry = %q, want Point", i+1, f.Geometry.Type)
		}
		if f.Properties["name"] != "pilot" {
			t.Errorf("feature %d name = %v, want pilot", i+1, f.Properties["name"])
		}
	}
}
