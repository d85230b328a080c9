package refinery

import (
	"testing"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/imagery"
)

func rawFeature(x0, y0, x1, y1, score float64) *geojson.Feature {
	f := geojson.NewFeature(nil)
	f.Properties = geojson.Properties{
		"bounds_imcoords": []float64{x0, y0, x1, y1},
		"detection_score": score,
	}
	return f
}

func testSensorModel() imagery.SensorModel {
	return imagery.LinearSensorModel{DegreesPerPixel: 0.0001}
}

func TestRefineSetsGeometryBBoxAndCenter(t *testing.T) {
	features := []*geojson.Feature{rawFeature(10, 10, 50, 50, 0.9)}
	refined, err := Refine(testSensorModel(), nil, features, common.FeatureSelectionOptions{Algorithm: common.SelectionNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refined) != 1 {
		t.Fatalf("got %d features, want 1", len(refined))
	}
	f := refined[0]
	if f.Geometry.GeoJSONType() != "Polygon" {
		t.Errorf("got geometry type %s, want Polygon", f.Geometry.GeoJSONType())
	}
	if len(f.BBox) != 4 {
		t.Errorf("got bbox %v, want 4 values", f.BBox)
	}
	if _, ok := f.Properties["center_latitude"]; !ok {
		t.Error("expected center_latitude to be set")
	}
	if _, ok := f.Properties["center_longitude"]; !ok {
		t.Error("expected center_longitude to be set")
	}
}

func TestRefineNoneIsIdentityModuloAddedFields(t *testing.T) {
	features := []*geojson.Feature{
		rawFeature(0, 0, 10, 10, 0.5),
		rawFeature(100, 100, 110, 110, 0.8),
	}
	refined, err := Refine(testSensorModel(), nil, features, common.FeatureSelectionOptions{Algorithm: common.SelectionNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refined) != len(features) {
		t.Fatalf("got %d features, want %d (NONE must not drop anything)", len(refined), len(features))
	}
}

func TestRefineNMSIsIdempotent(t *testing.T) {
	features := []*geojson.Feature{
		rawFeature(0, 0, 100, 100, 0.9),
		rawFeature(5, 5, 105, 105, 0.8),
		rawFeature(500, 500, 600, 600, 0.7),
	}
	opts := common.FeatureSelectionOptions{Algorithm: common.SelectionNMS, IoUThreshold: 0.3, SkipBoxThreshold: 0.0001}

	once, err := Refine(testSensorModel(), nil, features, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	twice, err := Refine(testSensorModel(), nil, once, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(once) != len(twice) {
		t.Fatalf("NMS not idempotent: got %d features then %d", len(once), len(twice))
	}
}

func TestRefineNMSDropsOverlappingLowerScore(t *testing.T) {
	features := []*geojson.Feature{
		rawFeature(0, 0, 100, 100, 0.9),
		rawFeature(5, 5, 105, 105, 0.8),
	}
	opts := common.FeatureSelectionOptions{Algorithm: common.SelectionNMS, IoUThreshold: 0.3, SkipBoxThreshold: 0.0001}

	kept, err := Refine(testSensorModel(), nil, features, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("got %d kept features, want 1 (heavily overlapping lower-score box suppressed)", len(kept))
	}
}

func TestRefineSoftNMSKeepsDistantBoxes(t *testing.T) {
	features := []*geojson.Feature{
		rawFeature(0, 0, 100, 100, 0.9),
		rawFeature(1000, 1000, 1100, 1100, 0.8),
	}
	opts := common.FeatureSelectionOptions{Algorithm: common.SelectionSoftNMS, SkipBoxThreshold: 0.0001, Sigma: 0.1}

	kept, err := Refine(testSensorModel(), nil, features, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 2 {
		t.Fatalf("got %d kept features, want 2 (non-overlapping boxes should both survive)", len(kept))
	}
}
