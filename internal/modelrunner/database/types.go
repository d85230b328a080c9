// Package database persists JobItem and RegionRequestItem state in
// Postgres, generalizing the tile-service's single-table Database wrapper
// into two keyed tables with conditional (compare-and-set) counter updates.
package database

import "time"

// JobItem tracks one ImageRequest's progress across its regions.
//
// Invariant: RegionSuccess + RegionError <= RegionCount, always.
type JobItem struct {
	JobID              string
	ImageID            string
	ProcessingDuration time.Duration
	RegionCount        int
	RegionSuccess      int
	RegionError        int
	Status             string
}

// Terminal reports whether every region has reported an outcome.
func (j *JobItem) Terminal() bool {
	return j.RegionSuccess+j.RegionError == j.RegionCount
}

// RegionRequestItem tracks one RegionRequest's tile-level progress.
//
// Invariant: SucceededTileCount + FailedTileCount <= TotalTiles, always.
type RegionRequestItem struct {
	JobID              string
	ImageID            string
	RegionID           string
	ProcessingDuration time.Duration
	TotalTiles         int
	SucceededTileCount int
	SucceededTiles     []string
	FailedTileCount    int
	FailedTiles        []string
}

// Terminal reports whether every tile in the region has reported an outcome.
func (r *RegionRequestItem) Terminal() bool {
	return r.SucceededTileCount+r.FailedTileCount == r.TotalTiles
}
