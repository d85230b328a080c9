package region

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/api"
	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/imagery"
	"github.com/mumuon/modelrunner/internal/modelrunner/tileworker"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

type fakeDetector struct {
	failOnTileContaining string
}

func (d *fakeDetector) Name() string                {
	return "fake"
}
func (d *fakeDetector) Mode() common.ModelInvokeMode {
	return common.InvokeModeHTTPEndpoint
}
func (d *fakeDetector) ErrorCount() int64 {
	return 0
}

func (d *fakeDetector) FindFeatures(ctx context.Context, tileBytes []byte) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if d.failOnTileContaining != "" && strings.Contains(string(tileBytes), d.failOnTileContaining) {
		return fc
	}
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties = geojson.Properties{
		"bounds_imcoords": []float64{0, 0, 10, 10},
		"detection_score": 0.9,
	}
	fc.Append(f)
	return fc
}

func regionRequest() *api.RegionRequest {
	return &api.RegionRequest{
		RegionID:    "region-1",
		ImageID:     "image-1",
		ImageURL:    "s3://bucket/image-1.ntf",
		TileSize:    tiling.Extent{Col: 100, Row: 100},
		TileOverlap: tiling.Extent{Col: 10, Row: 10},
		TileFormat:  common.TileFormatNITF,
		RegionBounds: &tiling.Bounds{
			Extent: tiling.Extent{Col: 200, Row: 200},
		},
	}
}

func TestProcessorProcessSucceeds(t *testing.T) {
	p := &Processor{
		Factory:  &imagery.FakeTileFactory{Extent: tiling.Extent{Col: 200, Row: 200}},
		Detector: &fakeDetector{},
		Pool:     tileworker.NewPool(2, nil),
	}

	result, err := p.Process(context.Background(), regionRequest(), common.DefaultFeatureSelectionOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != common.StatusSuccess {
		t.Errorf("got status %v, want SUCCESS", result.Status)
	}
	if result.FailedTiles != 0 {
		t.Errorf("got %d failed tiles, want 0", result.FailedTiles)
	}
	if len(result.Features) == 0 {
		t.Error("expected refined features to be non-empty")
	}
}

func TestProcessorProcessTagsFeaturesWithRegionFrame(t *testing.T) {
	p := &Processor{
		Factory:  &imagery.FakeTileFactory{Extent: tiling.Extent{Col: 200, Row: 200}},
		Detector: &fakeDetector{},
		Pool:     tileworker.NewPool(2, nil),
	}

	result, err := p.Process(context.Background(), regionRequest(), common.DefaultFeatureSelectionOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seenOrigins := map[string]bool{}
	for _, f := range result.Features {
		if got := f.Properties["image_id"]; got != "image-1" {
			t.Errorf("got image_id %v, want image-1", got)
		}
		origin, ok := f.Properties["tile_origin"].([]int)
		if !ok || len(origin) != 2 {
			t.Fatalf("tile_origin missing or malformed: %v", f.Properties["tile_origin"])
		}
		bounds, ok := f.Properties["bounds_imcoords"].([]float64)
		if !ok || len(bounds) != 4 {
			t.Fatalf("bounds_imcoords missing or malformed: %v", f.Properties["bounds_imcoords"])
		}
		// Every tile's detector returns the same tile-local box; once offset
		// by the crop origin, features from distinct tiles must land at
		// distinct region-frame positions.
		seenOrigins[fmt.Sprintf("%v", origin)] = true
		if bounds[0] != float64(origin[1]) || bounds[1] != float64(origin[0]) {
			t.Errorf("bounds %v not offset by tile origin %v", bounds, origin)
		}
	}
	if len(seenOrigins) < 2 {
		t.Errorf("expected features tagged with at least 2 distinct tile origins, got %d", len(seenOrigins))
	}
}

func TestProcessorProcessRejectsInvalidRequest(t *testing.T) {
	p := &Processor{
		Factory:  &imagery.FakeTileFactory{},
		Detector: &fakeDetector{},
		Pool:     tileworker.NewPool(2, nil),
	}
	req := regionRequest()
	req.RegionBounds = nil

	_, err := p.Process(context.Background(), req, common.DefaultFeatureSelectionOptions())
	var target *common.InvalidRegionRequestError
	if !errors.As(err, &target) {
		t.Fatalf("expected InvalidRegionRequestError, got %v", err)
	}
}

func TestProcessorProcessReturnsUnreadableImageError(t *testing.T) {
	p := &Processor{
		Factory:  &imagery.FakeTileFactory{OpenErr: context.DeadlineExceeded},
		Detector: &fakeDetector{},
		Pool:     tileworker.NewPool(2, nil),
	}

	_, err := p.Process(context.Background(), regionRequest(), common.DefaultFeatureSelectionOptions())
	var target *common.UnreadableImageError
	if !errors.As(err, &target) {
		t.Fatalf("expected UnreadableImageError, got %v", err)
	}
}
