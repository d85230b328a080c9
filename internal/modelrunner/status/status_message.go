// Package status derives JobItem/RegionRequestItem progress into
// RequestStatus values and publishes StatusMessage notifications.
package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// Point is a [row, col] image-coordinate pair.
type Point [2]int

// StatusMessage is the notification payload published on a status
// transition. Fields besides Status and JobID are optional and AsDict omits
// them when unset: an empty ImageID or RegionID, a nil ProcessingDuration
// (a pointer, so a zero duration is still reported), or nil FailedTiles.
type StatusMessage struct {
	Status             common.RequestStatus
	JobID              string
	ImageID            string
	RegionID           string
	ProcessingDuration *time.Duration
	FailedTiles        []FailedTile
}

// FailedTile is the bounding pair of [row, col] points for one failed tile.
type FailedTile []Point

// AsDict returns only the fields that were actually set, status and job_id
// are always present.
func (m StatusMessage) AsDict() map[string]any {
	out := map[string]any{
		"status": m.Status,
		"job_id": m.JobID,
	}
	if m.ImageID != "" {
		out["image_id"] = m.ImageID
	}
	if m.RegionID != "" {
		out["region_id"] = m.RegionID
	}
	if m.ProcessingDuration != nil {
		out["processing_duration"] = int64(m.ProcessingDuration.Seconds())
	}
	if m.FailedTiles != nil {
		out["failed_tiles"] = m.FailedTiles
	}
	return out
}

// AsDictStrValues is AsDict with every value rendered as a string,
// failed_tiles rendered as a 1-indexed list of single-key dicts for
// downstream consumers that expect the original wire format.
func (m StatusMessage) AsDictStrValues() map[string]string {
	out := map[string]string{
		"status": string(m.Status),
		"job_id": m.JobID,
	}
	if m.ImageID != "" {
		out["image_id"] = m.ImageID
	}
	if m.RegionID != "" {
		out["region_id"] = m.RegionID
	}
	if m.ProcessingDuration != nil {
		out["processing_duration"] = strconv.FormatInt(int64(m.ProcessingDuration.Seconds()), 10)
	}
	if m.FailedTiles != nil {
		out["failed_tiles"] = formatFailedTiles(m.FailedTiles)
	}
	return out
}

func formatPoint(p Point) string {
	return fmt.Sprintf("[%d, %d]", p[0], p[1])
}

func formatPoints(points FailedTile) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = formatPoint(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFailedTiles(tiles []FailedTile) string {
	parts := make([]string, len(tiles))
	for i, t := range tiles {
		parts[i] = fmt.Sprintf("{'%d': %s}", i+1, formatPoints(t))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
