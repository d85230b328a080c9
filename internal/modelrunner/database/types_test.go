package database

import "testing"

func TestJobItemTerminal(t *testing.T) {
	cases := []struct {
		item JobItem
		want bool
	}{
		{JobItem{RegionCount: 5, RegionSuccess: 5, RegionError: 0}, true},
		{JobItem{RegionCount: 5, RegionSuccess: 3, RegionError: 2}, true},
		{JobItem{RegionCount: 5, RegionSuccess: 2, RegionError: 1}, false},
	}
	for _, c := range cases {
		if got := c.item.Terminal(); got != c.want {
			t.Errorf("JobItem%+v.Terminal() = %v, want %v", c.item, got, c.want)
		}
	}
}

func TestRegionRequestItemTerminal(t *testing.T) {
	cases := []struct {
		item RegionRequestItem
		want bool
	}{
		{RegionRequestItem{TotalTiles: 4, SucceededTileCount: 4, FailedTileCount: 0}, true},
		{RegionRequestItem{TotalTiles: 4, SucceededTileCount: 2, FailedTileCount: 2}, true},
		{RegionRequestItem{TotalTiles: 4, SucceededTileCount: 1, FailedTileCount: 1}, false},
	}
	for _, c := range cases {
		if got := c.item.Terminal(); got != c.want {
			t.Errorf("RegionRequestItem%+v.Terminal() = %v, want %v", c.item, got, c.want)
		}
	}
}
