// Package imagery abstracts the raster driver boundary: opening an image,
// extracting tile bytes, and converting between image and geodetic
// coordinates via a sensor model. The concrete driver (GDAL or similar) is
// an external collaborator; this package defines the contract plus a test
// double.
package imagery

import (
	"context"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// GeodeticWorldCoordinate is a (longitude, latitude, elevation) triple in
// radians/radians/meters, matching the sensor model convention used by the
// source's photogrammetry package.
type GeodeticWorldCoordinate struct {
	LonRad float64
	LatRad float64
	ElevM  float64
}

// ImageCoordinate is a floating-point pixel coordinate, (x=col, y=row).
type ImageCoordinate struct {
	X, Y float64
}

// SensorModel converts between image and geodetic coordinates. It is
// immutable after construction and safe to share read-only across every
// TileWorker processing the same image.
type SensorModel interface {
	WorldToImage(GeodeticWorldCoordinate) ImageCoordinate
	ImageToWorld(ImageCoordinate) GeodeticWorldCoordinate
}

// ElevationGrid samples elevation in meters at an image coordinate. A nil
// ElevationGrid means "no DEM available"; callers fall back to 0.
type ElevationGrid interface {
	ElevationAt(ImageCoordinate) (float64, bool)
}

// ImageHandle is an opaque reference to an opened image, valid for the
// lifetime of the ImageProcessor that opened it.
type ImageHandle interface {
	URL() string
}

// TileFactory opens images, extracts tile bytes, and yields sensor models
// and elevation grids.
type TileFactory interface {
	Open(ctx context.Context, url string) (ImageHandle, error)
	ExtractTile(ctx context.Context, handle ImageHandle, bounds tiling.Crop, format common.TileFormat) ([]byte, error)
	SensorModel(ctx context.Context, handle ImageHandle) (SensorModel, error)
	ElevationTile(ctx context.Context, handle ImageHandle, path string) (ElevationGrid, SensorModel, error)
}

// Extent returns the full pixel extent of an opened image. ImageProcessor
// uses it to derive the image's regions: a single whole-image region when
// no region size is configured, otherwise a grid of that size.
type Extent interface {
	ImageExtent(ctx context.Context, handle ImageHandle) (tiling.Extent, error)
}
