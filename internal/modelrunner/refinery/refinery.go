// Package refinery attaches geodetic coordinates, polygon geometry, and
// bounding boxes to raw detections, then de-duplicates overlapping
// detections via NMS or Soft-NMS.
package refinery

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/imagery"
)

const radPerDeg = 3.14159265358979323846 / 180
const degPerRad = 180 / 3.14159265358979323846

// Refine runs the full FeatureRefinery pipeline over raw detections: geodetic
// corner conversion, polygon/bbox/center attachment, then feature selection
// (NONE/NMS/SOFT_NMS) to suppress seam duplicates.
func Refine(sm imagery.SensorModel, elev imagery.ElevationGrid, features []*geojson.Feature, opts common.FeatureSelectionOptions) ([]*geojson.Feature, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	geodetic := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		refined, ok := attachGeodeticFields(sm, elev, f)
		if !ok {
			continue
		}
		geodetic = append(geodetic, refined)
	}

	return Deduplicate(geodetic, opts)
}

// Deduplicate applies NMS/Soft-NMS/NONE to features that already carry
// geometry and bounds_imcoords (e.g. the per-region results an
// ImageProcessor merges across regions), without recomputing geodetic
// fields.
func Deduplicate(features []*geojson.Feature, opts common.FeatureSelectionOptions) ([]*geojson.Feature, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Algorithm {
	case common.SelectionNMS:
		return nms(features, opts), nil
	case common.SelectionSoftNMS:
		return softNMS(features, opts), nil
	default:
		return features, nil
	}
}

// attachGeodeticFields converts a feature's bounds_imcoords corners through
// the sensor model and sets geometry/bbox/center per the refinery contract.
// Degenerate (zero-area) polygons are dropped.
func attachGeodeticFields(sm imagery.SensorModel, elev imagery.ElevationGrid, f *geojson.Feature) (*geojson.Feature, bool) {
	bounds, ok := BoundsImcoords(f)
	if !ok {
		return nil, false
	}
	x0, y0, x1, y1 := bounds[0], bounds[1], bounds[2], bounds[3]

	corners := []imagery.ImageCoordinate{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}
	ring := make(orb.Ring, 0, len(corners)+1)
	for _, c := range corners {
		lon, lat := toDegrees(sm, elev, c)
		ring = append(ring, orb.Point{lon, lat})
	}
	ring = append(ring, ring[0])
	polygon := orb.Polygon{ring}

	if planar.Area(polygon) == 0 {
		return nil, false
	}

	refined := geojson.NewFeature(polygon)
	refined.Properties = f.Properties
	if refined.Properties == nil {
		refined.Properties = geojson.Properties{}
	}
	refined.BBox = geojson.NewBBox(polygon)

	minLon, minLat, maxLon, maxLat := ring[0][0], ring[0][1], ring[0][0], ring[0][1]
	for _, p := range ring {
		if p[0] < minLon {
			minLon = p[0]
		}
		if p[0] > maxLon {
			maxLon = p[0]
		}
		if p[1] < minLat {
			minLat = p[1]
		}
		if p[1] > maxLat {
			maxLat = p[1]
		}
	}
	refined.Properties["center_latitude"] = (minLat + maxLat) / 2
	refined.Properties["center_longitude"] = (minLon + maxLon) / 2
	refined.Properties["bounds_imcoords"] = []float64{x0, y0, x1, y1}

	return refined, true
}

// toDegrees converts an image coordinate to lon/lat degrees via the sensor
// model. elev is accepted for future terrain-correction use (nudging the
// image coordinate before projection); SensorModel.ImageToWorld does not
// take an elevation input, so elev is not consulted yet.
func toDegrees(sm imagery.SensorModel, elev imagery.ElevationGrid, c imagery.ImageCoordinate) (lon, lat float64) {
	world := sm.ImageToWorld(c)
	return world.LonRad * degPerRad, world.LatRad * degPerRad
}

// BoundsImcoords extracts a feature's tile/region-space bounding box
// (x0, y0, x1, y1) from its bounds_imcoords property, tolerating the
// []float64 a detector sets directly and the []any a JSON round trip
// produces.
func BoundsImcoords(f *geojson.Feature) ([4]float64, bool) {
	raw, ok := f.Properties["bounds_imcoords"]
	if !ok {
		return [4]float64{}, false
	}
	switch v := raw.(type) {
	case []float64:
		if len(v) != 4 {
			return [4]float64{}, false
		}
		return [4]float64{v[0], v[1], v[2], v[3]}, true
	case [4]float64:
		return v, true
	case []any:
		if len(v) != 4 {
			return [4]float64{}, false
		}
		var out [4]float64
		for i, x := range v {
			f, ok := x.(float64)
			if !ok {
				return [4]float64{}, false
			}
			out[i] = f
		}
		return out, true
	default:
		return [4]float64{}, false
	}
}

func detectionScore(f *geojson.Feature) float64 {
	if raw, ok := f.Properties["detection_score"]; ok {
		if v, ok := raw.(float64); ok {
			return v
		}
	}
	return 0
}

// sortByScoreDescThenID sorts features by detection_score descending, then
// by feature ID ascending, making de-duplication order-independent of the
// unspecified write order tiles produce (§5 ordering guarantee).
func sortByScoreDescThenID(features []*geojson.Feature) {
	sort.SliceStable(features, func(i, j int) bool {
		si, sj := detectionScore(features[i]), detectionScore(features[j])
		if si != sj {
			return si > sj
		}
		idi, _ := features[i].ID.(string)
		idj, _ := features[j].ID.(string)
		return idi < idj
	})
}
