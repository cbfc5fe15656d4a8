// Package geo builds the polygon geometries submitted to the WorldPop
// service.
package geo

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const (
	// circleSegments is the number of equal angular steps around the
	// center; the ring carries one extra closing vertex.
	circleSegments = 32
	earthRadiusKm  = 6371.0

	// maxAbsLatitude rejects centers where the cos(latitude) term in the
	// longitude offset degenerates and the ring would wrap the pole.
	maxAbsLatitude = 89.9

	degPerRad = 180.0 / math.Pi
	radPerDeg = math.Pi / 180.0
)

// BuildCircle approximates a circle of radiusKm around (lat, lng) as a
// closed ring of circleSegments+1 [lng, lat] vertices, serialized as a
// GeoJSON FeatureCollection wrapping a single Polygon feature. A
// non-positive radius or a near-polar center is a caller error.
func BuildCircle(lat, lng, radiusKm float64) ([]byte, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("build circle: radius must be positive, got %g", radiusKm)
	}
	if math.Abs(lat) >= maxAbsLatitude {
		return nil, fmt.Errorf("build circle: latitude %g too close to a pole", lat)
	}

	angular := radiusKm / earthRadiusKm
	cosLat := math.Cos(lat * radPerDeg)

	coords := make([]float64, 0, (circleSegments+1)*2)
	for i := 0; i <= circleSegments; i++ {
		angle := 2 * math.Pi * float64(i) / circleSegments
		dLat := angular * math.Sin(angle)
		dLng := angular * math.Cos(angle) / cosLat
		coords = append(coords, lng+dLng*degPerRad, lat+dLat*degPerRad)
	}

	polygon := geom.NewPolygonFlat(geom.XY, coords, []int{len(coords)})

	fc := geojson.FeatureCollection{
		Features: []*geojson.Feature{{
			Geometry:   polygon,
			Properties: map[string]interface{}{},
		}},
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("build circle: %w", err)
	}
	return data, nil
}
