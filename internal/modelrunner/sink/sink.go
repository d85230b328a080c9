// Package sink delivers a finished image's feature collection to its
// configured outputs: S3-compatible object storage (aggregate) or a
// streaming collaborator (out of process, contract-only here).
package sink

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Mode mirrors a sink descriptor's delivery mode.
type Mode string

const (
	ModeAggregate Mode = "AGGREGATE"
	ModeStreaming Mode = "STREAMING"
)

// Sink is the terminal consumer of a merged ImageResult feature collection.
// Write reports whether delivery succeeded; sinks are expected to be
// idempotent on imageID so at-least-once delivery never double-applies.
type Sink interface {
	Name() string
	Mode() Mode
	Write(ctx context.Context, imageID string, features []*geojson.Feature) (bool, error)
	fmt.Stringer
}

func describe(name string, mode Mode) string {
	return fmt.Sprintf("%s %s", name, mode)
}

func toFeatureCollection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return fc
}
