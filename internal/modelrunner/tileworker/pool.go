// Package tileworker runs a bounded-concurrency pool of workers draining a
// region's crops, generalizing the tile-service's parallel upload worker
// pool (s3.go's UploadDirectory) from file uploads to tile processing.
package tileworker

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// DefaultWorkers picks runtime.NumCPU(), clamped to [1, 32].
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 32 {
		return 32
	}
	return n
}

// Outcome reports one crop's processing result. A tile failure never
// aborts the region; it is recorded and the pool continues.
type Outcome struct {
	Index int
	Err   error
}

// ProcessFunc extracts, detects, and refine-tags a single crop, returning
// the features it contributed.
type ProcessFunc func(ctx context.Context, index int, crop tiling.Crop) ([]*geojson.Feature, error)

// Pool drains crops across a fixed number of workers via a bounded channel
// (capacity 4*workers), matching the teacher's workChan sizing convention.
type Pool struct {
	Workers int
	logger  *slog.Logger
}

// NewPool builds a Pool with the given worker count, defaulting to
// DefaultWorkers() when workers <= 0.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{Workers: workers, logger: logger}
}

type indexedCrop struct {
	index int
	crop  tiling.Crop
}

// Run processes every crop, returning the union of all contributed features
// (order unspecified, per spec.md's ordering-independence guarantee) and one
// Outcome per crop.
func (p *Pool) Run(ctx context.Context, crops []tiling.Crop, process ProcessFunc) ([]*geojson.Feature, []Outcome) {
	work := make(chan indexedCrop, 4*p.Workers)
	outcomes := make([]Outcome, len(crops))
	for i := range outcomes {
		outcomes[i] = Outcome{Index: i, Err: context.Canceled}
	}

	var mu sync.Mutex
	var features []*geojson.Feature
	var wg sync.WaitGroup

	for w := 0; w < p.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				found, err := process(ctx, item.index, item.crop)
				if err != nil {
					p.logger.Error("tile processing failed", "crop_index", item.index, "error", err)
				}
				outcomes[item.index] = Outcome{Index: item.index, Err: err}

				if len(found) > 0 {
					mu.Lock()
					features = append(features, found...)
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for i, crop := range crops {
			select {
			case <-ctx.Done():
				return
			case work <- indexedCrop{index: i, crop: crop}:
			}
		}
	}()

	wg.Wait()
	return features, outcomes
}
