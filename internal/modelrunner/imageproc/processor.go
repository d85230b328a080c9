// Package imageproc implements ImageProcessor: turns an ImageRequest into
// one or more RegionRequests, tracks their outcomes against the JobItem,
// and materializes the final ImageResult once every region has reported.
// Generalizes the tile-service's region/goroutine fan-out idiom from
// main.go's batch-region command into per-region dispatch with conditional
// JobItem counters.
package imageproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/api"
	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/database"
	"github.com/mumuon/modelrunner/internal/modelrunner/imagery"
	"github.com/mumuon/modelrunner/internal/modelrunner/logging"
	"github.com/mumuon/modelrunner/internal/modelrunner/refinery"
	"github.com/mumuon/modelrunner/internal/modelrunner/region"
	"github.com/mumuon/modelrunner/internal/modelrunner/sink"
	"github.com/mumuon/modelrunner/internal/modelrunner/status"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// RegionRunner processes one region request; Processor passes
// region.Processor.Process as its production implementation and a fake in
// tests.
type RegionRunner interface {
	Process(ctx context.Context, req *api.RegionRequest, selection common.FeatureSelectionOptions) (*region.Result, error)
}

// Processor drives the whole-image sequence (spec.md §4.7): persist
// JobItem, derive regions, dispatch and collect RegionProcessor outcomes,
// conditionally update JobItem counters, and materialize the final
// ImageResult once the image is terminal.
type Processor struct {
	Factory       imagery.TileFactory
	RegionRunner  RegionRunner
	JobTable      *database.JobTable
	ImageMonitor  *status.ImageStatusMonitor
	RegionSize    tiling.Extent // zero means "whole image as one region"
	MaxConcurrent int
	Sinks         []sink.Sink
}

// Process runs an ImageRequest end to end.
func (p *Processor) Process(ctx context.Context, req *api.ImageRequest) error {
	start := time.Now()
	req.ApplyDefaults()
	if !req.IsValid() {
		return &common.InvalidRegionRequestError{Reason: "image request failed validation"}
	}

	jobID := uuid.NewString()
	ctx = logging.WithJob(ctx, logging.FromContext(ctx), jobID, req.ImageID)
	logger := logging.FromContext(ctx)

	if p.JobTable != nil {
		if err := p.JobTable.CreateJobItem(ctx, jobID, req.ImageID); err != nil {
			return fmt.Errorf("failed to create job item: %w", err)
		}
	}

	handle, err := p.Factory.Open(ctx, req.ImageURL)
	if err != nil {
		return &common.UnreadableImageError{URL: req.ImageURL, Err: err}
	}

	regionRequests, err := p.deriveRegions(ctx, req, handle)
	if err != nil {
		return fmt.Errorf("failed to derive regions: %w", err)
	}

	if p.JobTable != nil {
		if err := p.JobTable.SetRegionCount(ctx, req.ImageID, len(regionRequests)); err != nil {
			return fmt.Errorf("failed to set region count: %w", err)
		}
	}

	concurrency := p.MaxConcurrent
	if concurrency <= 0 {
		concurrency = len(regionRequests)
	}

	var mu sync.Mutex
	var allFeatures []*geojson.Feature
	var regionSuccess, regionError int
	var recordErr error
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, rr := range regionRequests {
		wg.Add(1)
		sem <- struct{}{}
		go func(rr *api.RegionRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := p.RegionRunner.Process(ctx, rr, req.FeatureSelectionOptions)
			succeeded := err == nil && result.Status != common.StatusFailed

			if p.JobTable != nil {
				if jerr := p.JobTable.RecordRegionOutcomeWithRetry(ctx, req.ImageID, rr.RegionID, succeeded, 3); jerr != nil {
					logger.Warn("failed to record region outcome", "region_id", rr.RegionID, "error", jerr)
					mu.Lock()
					if recordErr == nil {
						recordErr = jerr
					}
					mu.Unlock()
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("region processing failed", "region_id", rr.RegionID, "error", err)
				regionError++
				return
			}
			if succeeded {
				regionSuccess++
			} else {
				regionError++
			}
			allFeatures = append(allFeatures, result.Features...)
		}(rr)
	}
	wg.Wait()

	if recordErr != nil {
		return fmt.Errorf("failed to record region outcome: %w", recordErr)
	}

	final, rerr := refinery.Deduplicate(allFeatures, req.FeatureSelectionOptions)
	if rerr != nil {
		final = allFeatures
	}

	for _, s := range p.Sinks {
		if _, werr := s.Write(ctx, req.ImageID, final); werr != nil {
			logger.Error("sink write failed", "sink", s.String(), "error", werr)
		}
	}

	imageStatus := imageStatus(regionSuccess, regionError, len(regionRequests))
	duration := time.Since(start)
	if p.JobTable != nil {
		if err := p.JobTable.SetJobStatus(ctx, req.ImageID, string(imageStatus), duration); err != nil {
			logger.Warn("failed to set terminal job status", "error", err)
		}
	}
	if p.ImageMonitor != nil && p.JobTable != nil {
		item, err := p.JobTable.GetJobItem(ctx, req.ImageID)
		if err == nil {
			item.ProcessingDuration = duration
			if perr := p.ImageMonitor.ProcessEvent(ctx, item, imageStatus, "image processing complete"); perr != nil {
				logger.Warn("failed to publish terminal status", "error", perr)
			}
		}
	}

	logger.Info("image processed", "status", imageStatus, "region_success", regionSuccess, "region_error", regionError, "feature_count", len(final))
	return nil
}

// imageStatus mirrors ImageStatusMonitor.GetStatus's derivation for the
// freshly-collected counters, since the JobItem read immediately after
// SetJobStatus may race a concurrent reader in a multi-worker deployment.
func imageStatus(regionSuccess, regionError, regionCount int) common.RequestStatus {
	if regionSuccess+regionError != regionCount {
		return common.StatusInProgress
	}
	if regionError == 0 {
		return common.StatusSuccess
	}
	if regionSuccess == 0 {
		return common.StatusFailed
	}
	return common.StatusPartial
}

// deriveRegions determines the image's regions from its extent and the
// configured region size. When RegionSize is unset, the whole image is
// treated as a single region (spec.md §4.7 step 2).
func (p *Processor) deriveRegions(ctx context.Context, req *api.ImageRequest, handle imagery.ImageHandle) ([]*api.RegionRequest, error) {
	extentProvider, ok := p.Factory.(imagery.Extent)
	if !ok {
		bounds := tiling.Bounds{}
		rr := api.NewRegionRequest(req, uuid.NewString(), bounds)
		return []*api.RegionRequest{&rr}, nil
	}

	imageExtent, err := extentProvider.ImageExtent(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to determine image extent: %w", err)
	}

	regionSize := p.RegionSize
	if regionSize == (tiling.Extent{}) {
		rr := api.NewRegionRequest(req, uuid.NewString(), tiling.Bounds{Extent: imageExtent})
		return []*api.RegionRequest{&rr}, nil
	}

	grid, err := tiling.GenerateCrops(tiling.Bounds{Extent: imageExtent}, regionSize, tiling.Extent{})
	if err != nil {
		return nil, fmt.Errorf("failed to lay out region grid: %w", err)
	}

	requests := make([]*api.RegionRequest, 0, len(grid))
	for _, crop := range grid {
		bounds := tiling.Bounds{Origin: crop.Origin, Extent: crop.Extent}
		rr := api.NewRegionRequest(req, uuid.NewString(), bounds)
		requests = append(requests, &rr)
	}
	return requests, nil
}
