package imagery

import (
	"context"
	"fmt"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// LinearSensorModel is a sensor model good enough for tests: it maps image
// coordinates to geodetic coordinates by an affine transform anchored at an
// origin, DegreesPerPixel degrees per pixel along each axis. Production
// sensor models (RPC, projective, from image TREs) are supplied by the real
// GDAL-backed driver, out of this module's scope.
type LinearSensorModel struct {
	OriginLonRad, OriginLatRad float64
	DegreesPerPixel            float64
}

func (m LinearSensorModel) ImageToWorld(c ImageCoordinate) GeodeticWorldCoordinate {
	const radPerDeg = 3.14159265358979323846 / 180
	return GeodeticWorldCoordinate{
		LonRad: m.OriginLonRad + c.X*m.DegreesPerPixel*radPerDeg,
		LatRad: m.OriginLatRad - c.Y*m.DegreesPerPixel*radPerDeg,
		ElevM:  0,
	}
}

func (m LinearSensorModel) WorldToImage(w GeodeticWorldCoordinate) ImageCoordinate {
	const degPerRad = 180 / 3.14159265358979323846
	return ImageCoordinate{
		X: (w.LonRad*degPerRad - m.OriginLonRad*degPerRad) / m.DegreesPerPixel,
		Y: (m.OriginLatRad*degPerRad - w.LatRad*degPerRad) / m.DegreesPerPixel,
	}
}

// FakeHandle is the ImageHandle returned by FakeTileFactory.
type FakeHandle struct {
	url    string
	extent tiling.Extent
}

func (h *FakeHandle) URL() string { return h.url }

// FakeTileFactory is an in-memory TileFactory double for tests: it never
// touches disk, returns placeholder tile bytes that spell out the crop's
// origin, extent and format, and a configurable sensor model.
type FakeTileFactory struct {
	Extent     tiling.Extent
	Model      SensorModel
	Elevation  ElevationGrid
	OpenErr    error
	ExtractErr error
}

func (f *FakeTileFactory) Open(ctx context.Context, url string) (ImageHandle, error) {
	if f.OpenErr != nil {
		return nil, &common.UnreadableImageError{URL: url, Err: f.OpenErr}
	}
	return &FakeHandle{url: url, extent: f.Extent}, nil
}

func (f *FakeTileFactory) ExtractTile(ctx context.Context, handle ImageHandle, bounds tiling.Crop, format common.TileFormat) ([]byte, error) {
	if f.ExtractErr != nil {
		return nil, &common.UnreadableImageError{URL: handle.URL(), Err: f.ExtractErr}
	}
	return []byte(fmt.Sprintf("tile:%d,%d:%dx%d:%s", bounds.Origin.Row, bounds.Origin.Col, bounds.Extent.Row, bounds.Extent.Col, format)), nil
}

func (f *FakeTileFactory) SensorModel(ctx context.Context, handle ImageHandle) (SensorModel, error) {
	if f.Model != nil {
		return f.Model, nil
	}
	return LinearSensorModel{DegreesPerPixel: 0.0001}, nil
}

func (f *FakeTileFactory) ElevationTile(ctx context.Context, handle ImageHandle, path string) (ElevationGrid, SensorModel, error) {
	model, err := f.SensorModel(ctx, handle)
	if err != nil {
		return nil, nil, err
	}
	return f.Elevation, model, nil
}

func (f *FakeTileFactory) ImageExtent(ctx context.Context, handle ImageHandle) (tiling.Extent, error) {
	h := handle.(*FakeHandle)
	return h.extent, nil
}
