package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/database"
)

type fakePublisher struct {
	topic   string
	message StatusMessage
	calls   int
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, message StatusMessage) error {
	p.topic = topic
	p.message = message
	p.calls++
	return nil
}

func TestImageStatusMonitorProcessEventPublishes(t *testing.T) {
	pub := &fakePublisher{}
	monitor := NewImageStatusMonitor(pub, "image-status")
	item := &database.JobItem{JobID: "test-job", ImageID: "test-image", ProcessingDuration: 1000 * time.Second, RegionSuccess: 5, RegionError: 0, RegionCount: 5}

	if err := monitor.ProcessEvent(context.Background(), item, common.StatusSuccess, "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("got %d publish calls, want 1", pub.calls)
	}
	if pub.topic != "image-status" {
		t.Errorf("got topic %q, want image-status", pub.topic)
	}
}

func TestImageStatusMonitorProcessEventRejectsMissingJobID(t *testing.T) {
	monitor := NewImageStatusMonitor(&fakePublisher{}, "image-status")
	item := &database.JobItem{ImageID: "test-image", RegionSuccess: 0, RegionError: 5, RegionCount: 5}

	err := monitor.ProcessEvent(context.Background(), item, common.StatusFailed, "failed")
	var target *common.StatusMonitorError
	if !errors.As(err, &target) {
		t.Fatalf("expected StatusMonitorError, got %v", err)
	}
}

func TestImageStatusMonitorGetStatus(t *testing.T) {
	monitor := NewImageStatusMonitor(&fakePublisher{}, "image-status")
	cases := []struct {
		item database.JobItem
		want common.RequestStatus
	}{
		{database.JobItem{RegionCount: 5, RegionSuccess: 5, RegionError: 0}, common.StatusSuccess},
		{database.JobItem{RegionCount: 5, RegionSuccess: 3, RegionError: 2}, common.StatusPartial},
		{database.JobItem{RegionCount: 5, RegionSuccess: 0, RegionError: 5}, common.StatusFailed},
		{database.JobItem{RegionCount: 5, RegionSuccess: 2, RegionError: 1}, common.StatusInProgress},
	}
	for _, c := range cases {
		if got := monitor.GetStatus(&c.item); got != c.want {
			t.Errorf("GetStatus(%+v) = %v, want %v", c.item, got, c.want)
		}
	}
}

func TestRegionStatusMonitorGetStatus(t *testing.T) {
	monitor := NewRegionStatusMonitor(&fakePublisher{}, "region-status")
	cases := []struct {
		item database.RegionRequestItem
		want common.RequestStatus
	}{
		{database.RegionRequestItem{TotalTiles: 10, FailedTileCount: 0}, common.StatusSuccess},
		{database.RegionRequestItem{TotalTiles: 10, FailedTileCount: 3}, common.StatusPartial},
		{database.RegionRequestItem{TotalTiles: 10, FailedTileCount: 10}, common.StatusFailed},
	}
	for _, c := range cases {
		if got := monitor.GetStatus(&c.item); got != c.want {
			t.Errorf("GetStatus(%+v) = %v, want %v", c.item, got, c.want)
		}
	}
}

func TestRegionStatusMonitorProcessEventRejectsMissingJobID(t *testing.T) {
	monitor := NewRegionStatusMonitor(&fakePublisher{}, "region-status")
	item := &database.RegionRequestItem{ImageID: "test-image", RegionID: "test-region", TotalTiles: 10}

	err := monitor.ProcessEvent(context.Background(), item, common.StatusFailed, "failed")
	var target *common.StatusMonitorError
	if !errors.As(err, &target) {
		t.Fatalf("expected StatusMonitorError, got %v", err)
	}
}
