// Package api defines the inbound request types: the JobQueue message
// (ImageRequest) and the per-region work unit an ImageProcessor derives
// from it (RegionRequest).
package api

import (
	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// DefaultTileSize and DefaultTileOverlap are applied when a request omits
// them.
var (
	DefaultTileSize    = tiling.Extent{Col: 1024, Row: 1024}
	DefaultTileOverlap = tiling.Extent{Col: 50, Row: 50}
)

const DefaultTileFormat = common.TileFormatNITF

// SinkDescriptor names a configured output sink and its delivery mode.
type SinkDescriptor struct {
	Type   string         `json:"type"`
	Mode   string         `json:"mode"`
	Config map[string]any `json:"config"`
}

// ImageRequest is the JobQueue inbound message: one whole image to process.
type ImageRequest struct {
	ImageID                 string                         `json:"image_id"`
	ImageURL                string                         `json:"image_url"`
	TileSize                tiling.Extent                  `json:"tile_size"`
	TileOverlap             tiling.Extent                  `json:"tile_overlap"`
	TileFormat              common.TileFormat              `json:"tile_format"`
	ModelName               string                         `json:"model_name"`
	ModelInvokeMode         common.ModelInvokeMode         `json:"model_invoke_mode"`
	ExecutionRole           string                         `json:"execution_role,omitempty"`
	FeatureSelectionOptions common.FeatureSelectionOptions `json:"feature_selection_options"`
	Outputs                 []SinkDescriptor               `json:"outputs"`
	Classification          *common.Classification         `json:"classification,omitempty"`
}

// ApplyDefaults fills unset optional fields the way a newly queued request
// is expected to arrive.
func (r *ImageRequest) ApplyDefaults() {
	if r.TileSize == (tiling.Extent{}) {
		r.TileSize = DefaultTileSize
	}
	if r.TileOverlap == (tiling.Extent{}) {
		r.TileOverlap = DefaultTileOverlap
	}
	if r.TileFormat == "" {
		r.TileFormat = DefaultTileFormat
	}
	if r.FeatureSelectionOptions == (common.FeatureSelectionOptions{}) {
		r.FeatureSelectionOptions = common.DefaultFeatureSelectionOptions()
	}
}

// IsValid reports whether the request is well-formed enough to process:
// image_id non-empty, model_invoke_mode set, and tile_size strictly greater
// than tile_overlap componentwise.
func (r *ImageRequest) IsValid() bool {
	if r.ImageID == "" {
		return false
	}
	if r.ModelInvokeMode == "" || r.ModelInvokeMode == common.InvokeModeNone {
		return false
	}
	if r.TileSize.Col <= r.TileOverlap.Col || r.TileSize.Row <= r.TileOverlap.Row {
		return false
	}
	return true
}

// RegionRequest is one region of an image, created by ImageProcessor and
// handed to a RegionProcessor.
type RegionRequest struct {
	RegionID        string                 `json:"region_id"`
	ImageID         string                 `json:"image_id"`
	ImageURL        string                 `json:"image_url"`
	TileSize        tiling.Extent          `json:"tile_size"`
	TileOverlap     tiling.Extent          `json:"tile_overlap"`
	TileFormat      common.TileFormat      `json:"tile_format"`
	RegionBounds    *tiling.Bounds         `json:"region_bounds"`
	ModelName       string                 `json:"model_name"`
	ModelInvokeMode common.ModelInvokeMode `json:"model_invoke_mode"`
	ExecutionRole   string                 `json:"execution_role,omitempty"`
}

// NewRegionRequest builds a RegionRequest from an ImageRequest, copying
// tile_size/tile_overlap/tile_format and the model fields from the image
// request.
func NewRegionRequest(image *ImageRequest, regionID string, bounds tiling.Bounds) RegionRequest {
	return RegionRequest{
		RegionID:        regionID,
		ImageID:         image.ImageID,
		ImageURL:        image.ImageURL,
		TileSize:        image.TileSize,
		TileOverlap:     image.TileOverlap,
		TileFormat:      image.TileFormat,
		RegionBounds:    &bounds,
		ModelName:       image.ModelName,
		ModelInvokeMode: image.ModelInvokeMode,
		ExecutionRole:   image.ExecutionRole,
	}
}

// IsValid reports whether the region request is well-formed: image_id
// non-empty and region_bounds present.
func (r *RegionRequest) IsValid() bool {
	return r.ImageID != "" && r.RegionBounds != nil
}
