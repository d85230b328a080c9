package tileworker

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

func crops(n int) []tiling.Crop {
	out := make([]tiling.Crop, n)
	for i := range out {
		out[i] = tiling.Crop{Origin: tiling.Point{Row: i, Col: i}}
	}
	return out
}

func TestPoolRunCollectsAllFeatures(t *testing.T) {
	pool := NewPool(4, nil)
	features, outcomes := pool.Run(context.Background(), crops(10), func(ctx context.Context, index int, crop tiling.Crop) ([]*geojson.Feature, error) {
		return []*geojson.Feature{geojson.NewFeature(orb.Point{0, 0})}, nil
	})

	if len(features) != 10 {
		t.Errorf("got %d features, want 10", len(features))
	}
	if len(outcomes) != 10 {
		t.Fatalf("got %d outcomes, want 10", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Err != nil {
			t.Errorf("outcome %d: unexpected error %v", i, o.Err)
		}
	}
}

func TestPoolRunIsolatesFailures(t *testing.T) {
	pool := NewPool(2, nil)
	boom := errors.New("boom")
	_, outcomes := pool.Run(context.Background(), crops(4), func(ctx context.Context, index int, crop tiling.Crop) ([]*geojson.Feature, error) {
		if index == 2 {
			return nil, boom
		}
		return []*geojson.Feature{geojson.NewFeature(orb.Point{0, 0})}, nil
	})

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 3 {
		t.Errorf("got %d failed / %d succeeded, want 1 / 3", failed, succeeded)
	}
	if outcomes[2].Err != boom {
		t.Errorf("outcome 2 error = %v, want %v", outcomes[2].Err, boom)
	}
}

func TestDefaultWorkersClampedToAtLeastOne(t *testing.T) {
	if DefaultWorkers() < 1 {
		t.Error("DefaultWorkers must be at least 1")
	}
	if DefaultWorkers() > 32 {
		t.Error("DefaultWorkers must be clamped to at most 32")
	}
}
