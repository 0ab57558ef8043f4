// Package geojson renders decoded telemetry points into the serialized
// feature collection stored on a device record.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/flymap/trackd/internal/types"
)

// Feature is a single GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Geometry is a GeoJSON geometry. Coordinates are [lon, lat] pairs for
// a LineString and a single [lon, lat] pair for a Point.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// EncodeFeatures serializes points into a feature collection holding
// the full line plus one point feature per sample. An empty input
// yields an empty collection, not an error.
func EncodeFeatures(points []types.GeoPoint) (string, error) {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}

	if len(points) > 0 {
		line := make([][]float64, len(points))
		for i, p := range points {
			line[i] = []float64{p.Lon, p.Lat}
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: Geometry{Type: "LineString", Coordinates: line},
			Properties: map[string]any{
				"name": points[0].Name,
			},
		})
		for _, p := range points {
			fc.Features = append(fc.Features, Feature{
				Type:     "Feature",
				Geometry: Geometry{Type: "Point", Coordinates: []float64{p.Lon, p.Lat}},
				Properties: map[string]any{
					"ts":        p.Ts,
					"alt":       p.Alt,
					"name":      p.Name,
					"emergency": p.Emergency,
				},
			})
		}
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	return string(data), nil
}
