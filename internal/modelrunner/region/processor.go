// Package region implements RegionProcessor: the per-region tile
// generation, detection, and refinement pipeline, generalizing the
// tile-service's phase-sequenced TileService.ProcessJobWithOptions.
package region

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/api"
	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/database"
	"github.com/mumuon/modelrunner/internal/modelrunner/imagery"
	"github.com/mumuon/modelrunner/internal/modelrunner/inference"
	"github.com/mumuon/modelrunner/internal/modelrunner/logging"
	"github.com/mumuon/modelrunner/internal/modelrunner/refinery"
	"github.com/mumuon/modelrunner/internal/modelrunner/tileworker"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// Result is the outcome of processing one RegionRequest: the refined
// feature set plus the tile counters the caller persists and reports.
type Result struct {
	RegionID       string
	Status         common.RequestStatus
	Features       []*geojson.Feature
	SucceededTiles int
	FailedTiles    int
	TotalTiles     int
	Duration       time.Duration
}

// Processor runs the RegionProcessor sequence: validate, tile, allocate the
// RegionRequestItem, dispatch, refine, and finalize counters. It does not
// publish a region status event; it derives the region status and returns
// it in the Result.
type Processor struct {
	Factory     imagery.TileFactory
	Detector    inference.Detector
	RegionTable *database.RegionTable
	Pool        *tileworker.Pool
}

// Process validates the request, tiles the region, dispatches crops to the
// worker pool, refines the staged features, and persists final counters.
func (p *Processor) Process(ctx context.Context, req *api.RegionRequest, selection common.FeatureSelectionOptions) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(logging.WithRegion(ctx, req.RegionID))

	if !req.IsValid() {
		return nil, &common.InvalidRegionRequestError{Reason: "image_id and region_bounds are required"}
	}

	crops, err := tiling.GenerateCrops(*req.RegionBounds, req.TileSize, req.TileOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to generate crops: %w", err)
	}

	item := &database.RegionRequestItem{
		ImageID:    req.ImageID,
		RegionID:   req.RegionID,
		TotalTiles: len(crops),
	}
	if p.RegionTable != nil {
		if err := p.RegionTable.CreateRegionRequestItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to allocate region request item: %w", err)
		}
	}

	handle, err := p.Factory.Open(ctx, req.ImageURL)
	if err != nil {
		return nil, &common.UnreadableImageError{URL: req.ImageURL, Err: err}
	}
	sensorModel, err := p.Factory.SensorModel(ctx, handle)
	if err != nil {
		return nil, &common.UnreadableImageError{URL: req.ImageURL, Err: err}
	}

	raw, outcomes := p.Pool.Run(ctx, crops, func(ctx context.Context, index int, crop tiling.Crop) ([]*geojson.Feature, error) {
		tileBytes, err := p.Factory.ExtractTile(ctx, handle, crop, req.TileFormat)
		if err != nil {
			return nil, fmt.Errorf("failed to extract tile %d: %w", index, err)
		}
		fc := p.Detector.FindFeatures(ctx, tileBytes)
		for _, f := range fc.Features {
			tagTileOrigin(f, req.ImageID, crop)
		}
		return fc.Features, nil
	})

	succeeded, failed := 0, 0
	for i, outcome := range outcomes {
		key := fmt.Sprintf("%d", i)
		if outcome.Err == nil {
			succeeded++
			if p.RegionTable != nil {
				if err := p.RegionTable.RecordTileOutcome(ctx, req.ImageID, req.RegionID, key, true); err != nil {
					logger.Warn("failed to record tile success", "tile_index", i, "error", err)
				}
			}
		} else {
			failed++
			logger.Warn("tile failed", "tile_index", i, "error", outcome.Err)
			if p.RegionTable != nil {
				if err := p.RegionTable.RecordTileOutcome(ctx, req.ImageID, req.RegionID, key, false); err != nil {
					logger.Warn("failed to record tile failure", "tile_index", i, "error", err)
				}
			}
		}
	}

	refined, err := refinery.Refine(sensorModel, nil, raw, selection)
	if err != nil {
		return nil, fmt.Errorf("feature refinement failed: %w", err)
	}

	duration := time.Since(start)
	if p.RegionTable != nil {
		if err := p.RegionTable.FinalizeRegion(ctx, req.ImageID, req.RegionID, duration); err != nil {
			logger.Warn("failed to finalize region counters", "error", err)
		}
	}

	status := common.StatusSuccess
	switch {
	case succeeded == 0:
		status = common.StatusFailed
	case failed > 0:
		status = common.StatusPartial
	}

	logger.Info("region processed", "status", status, "succeeded_tiles", succeeded, "failed_tiles", failed, "total_tiles", len(crops))

	return &Result{
		RegionID:       req.RegionID,
		Status:         status,
		Features:       refined,
		SucceededTiles: succeeded,
		FailedTiles:    failed,
		TotalTiles:     len(crops),
		Duration:       duration,
	}, nil
}

// tagTileOrigin moves a detector's tile-local bounds_imcoords into the
// region's pixel coordinate frame by offsetting by the crop's origin, and
// stamps image_id and tile_origin so seam-duplicate NMS (refinery.Refine)
// compares bounds that are actually comparable across tiles.
func tagTileOrigin(f *geojson.Feature, imageID string, crop tiling.Crop) {
	bounds, ok := refinery.BoundsImcoords(f)
	if !ok {
		return
	}
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	originX, originY := float64(crop.Origin.Col), float64(crop.Origin.Row)
	f.Properties["bounds_imcoords"] = []float64{
		bounds[0] + originX,
		bounds[1] + originY,
		bounds[2] + originX,
		bounds[3] + originY,
	}
	f.Properties["image_id"] = imageID
	f.Properties["tile_origin"] = []int{crop.Origin.Row, crop.Origin.Col}
}
