// Package tiling produces the ordered set of tile crops covering an image
// region given a crop size and neighbor overlap.
package tiling

import "github.com/mumuon/modelrunner/internal/modelrunner/common"

// Point is an integer (row, col) image coordinate.
type Point struct {
	Row, Col int
}

// Extent is a crop or region's size, with Col paired with the column axis
// and Row paired with the row axis — the axis each value clips along when a
// crop falls off the trailing edge of a region.
type Extent struct {
	Col, Row int
}

// Bounds is a region's origin and extent.
type Bounds struct {
	Origin Point
	Extent Extent
}

// Crop is one tile: its origin plus the (possibly clipped) extent actually
// covered.
type Crop struct {
	Origin Point
	Extent Extent
}

// GenerateCrops returns every crop covering bounds in row-major order (row
// slowest, column fastest). Stride is cropSize - overlap, axis by axis. The
// final crop on each axis is clipped to the region extent rather than
// re-anchored: for an axis of length L at stride s with crop size c, crops
// start at 0, s, 2s, ... k*s where k*s < L, and the last one has length
// min(c, L - k*s).
//
// Returns an InvalidConfigError if overlap >= cropSize on either axis.
func GenerateCrops(bounds Bounds, cropSize Extent, overlap Extent) ([]Crop, error) {
	if overlap.Col >= cropSize.Col {
		return nil, &common.InvalidConfigError{Reason: "overlap must be less than crop size along the column axis"}
	}
	if overlap.Row >= cropSize.Row {
		return nil, &common.InvalidConfigError{Reason: "overlap must be less than crop size along the row axis"}
	}

	strideCol := cropSize.Col - overlap.Col
	strideRow := cropSize.Row - overlap.Row

	colStarts := axisStarts(bounds.Extent.Col, strideCol)
	rowStarts := axisStarts(bounds.Extent.Row, strideRow)

	crops := make([]Crop, 0, len(rowStarts)*len(colStarts))
	for _, r := range rowStarts {
		rowExtent := cropSize.Row
		if remaining := bounds.Extent.Row - r; remaining < rowExtent {
			rowExtent = remaining
		}
		for _, c := range colStarts {
			colExtent := cropSize.Col
			if remaining := bounds.Extent.Col - c; remaining < colExtent {
				colExtent = remaining
			}
			crops = append(crops, Crop{
				Origin: Point{Row: bounds.Origin.Row + r, Col: bounds.Origin.Col + c},
				Extent: Extent{Col: colExtent, Row: rowExtent},
			})
		}
	}
	return crops, nil
}

// axisStarts returns the stride-spaced offsets 0, stride, 2*stride, ...
// that fall strictly before length.
func axisStarts(length, stride int) []int {
	if length <= 0 {
		return nil
	}
	var starts []int
	for offset := 0; offset < length; offset += stride {
		starts = append(starts, offset)
	}
	return starts
}
