package dewater

import (
	"fmt"

	"github.com/ctessum/geom/encoding/geojson"
)

// Feature is a GeoJSON feature carrying one cell's elevation
type Feature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

// FeatureCollection is the wire form of a computed grid
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// NewFeatureCollection encodes cells as GeoJSON polygons with an
// "elevation" property
func NewFeatureCollection(cells []GridCell) (*FeatureCollection, error) {
	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*Feature, 0, len(cells)),
	}

	for i, c := range cells {
		g, err := geojson.ToGeoJSON(c.Polygon())
		if err != nil {
			return nil, fmt.Errorf("failed to encode cell %d: %w", i, err)
		}
		fc.Features = append(fc.Features, &Feature{
			Type:     "Feature",
			Geometry: g,
			Properties: map[string]any{
				"elevation": c.Elevation,
			},
		})
	}

	return fc, nil
}
