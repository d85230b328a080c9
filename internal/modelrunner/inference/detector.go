// Package inference dispatches tile bytes to an inference endpoint and
// returns a GeoJSON FeatureCollection, tracking per-instance error counts.
// A Detector never raises to its caller: a single tile failure must not
// abort the region it belongs to.
package inference

import (
	"context"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// Detector submits a tile to an inference endpoint.
type Detector interface {
	Name() string
	Mode() common.ModelInvokeMode
	FindFeatures(ctx context.Context, tileBytes []byte) *geojson.FeatureCollection
	ErrorCount() int64
}

// errorCounter is embedded by every Detector implementation so error
// accounting is uniform.
type errorCounter struct {
	count int64
}

func (c *errorCounter) ErrorCount() int64 {
	return atomic.LoadInt64(&c.count)
}

func (c *errorCounter) incrementError() {
	atomic.AddInt64(&c.count, 1)
}

func emptyFeatureCollection() *geojson.FeatureCollection {
	return geojson.NewFeatureCollection()
}
