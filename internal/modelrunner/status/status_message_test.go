package status

import (
	"reflect"
	"testing"
	"time"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

func durationPtr(seconds int64) *time.Duration {
	d := time.Duration(seconds) * time.Second
	return &d
}

func TestStatusMessageAsDict(t *testing.T) {
	msg := StatusMessage{
		Status:             common.StatusSuccess,
		JobID:              "1234",
		ImageID:            "image-5678",
		RegionID:           "region-9999",
		ProcessingDuration: durationPtr(1234),
		FailedTiles: []FailedTile{
			{{1, 2}, {3, 4}},
			{{5, 6}, {7, 8}},
		},
	}

	got := msg.AsDict()
	want := map[string]any{
		"status":              common.StatusSuccess,
		"job_id":              "1234",
		"image_id":            "image-5678",
		"region_id":           "region-9999",
		"processing_duration": int64(1234),
		"failed_tiles": []FailedTile{
			{{1, 2}, {3, 4}},
			{{5, 6}, {7, 8}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStatusMessageAsDictOmitsUnsetFields(t *testing.T) {
	msg := StatusMessage{Status: common.StatusFailed, JobID: "5678"}
	got := msg.AsDict()
	want := map[string]any{"status": common.StatusFailed, "job_id": "5678"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStatusMessageAsDictStrValues(t *testing.T) {
	msg := StatusMessage{
		Status:             common.StatusSuccess,
		JobID:              "1234",
		ImageID:            "image-5678",
		RegionID:           "region-9999",
		ProcessingDuration: durationPtr(1234),
		FailedTiles: []FailedTile{
			{{1, 2}, {3, 4}},
			{{5, 6}, {7, 8}},
		},
	}

	got := msg.AsDictStrValues()
	want := map[string]string{
		"status":              "SUCCESS",
		"job_id":              "1234",
		"image_id":            "image-5678",
		"region_id":           "region-9999",
		"processing_duration": "1234",
		"failed_tiles":        "[{'1': [[1, 2], [3, 4]]}, {'2': [[5, 6], [7, 8]]}]",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStatusMessageAsDictStrValuesSingleFailedTile(t *testing.T) {
	msg := StatusMessage{
		Status:      common.StatusFailed,
		JobID:       "5678",
		FailedTiles: []FailedTile{{{1, 2}, {3, 4}}},
	}
	got := msg.AsDictStrValues()["failed_tiles"]
	want := "[{'1': [[1, 2], [3, 4]]}]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
