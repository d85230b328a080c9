package status

import (
	"context"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/database"
)

// Publisher delivers a StatusMessage to a notification topic. A real
// deployment wires an HTTP webhook; tests use an in-memory fake.
type Publisher interface {
	Publish(ctx context.Context, topic string, message StatusMessage) error
}

// ImageStatusMonitor derives RequestStatus from a JobItem's region counters
// and publishes transitions to the image status topic.
type ImageStatusMonitor struct {
	publisher Publisher
	topic     string
}

func NewImageStatusMonitor(publisher Publisher, topic string) *ImageStatusMonitor {
	return &ImageStatusMonitor{publisher: publisher, topic: topic}
}

// ProcessEvent validates the job item carries the fields a notification
// requires, then publishes.
func (m *ImageStatusMonitor) ProcessEvent(ctx context.Context, item *database.JobItem, status common.RequestStatus, message string) error {
	if item.JobID == "" {
		return &common.StatusMonitorError{Reason: "job_id is required"}
	}
	if item.ProcessingDuration <= 0 {
		return &common.StatusMonitorError{Reason: "processing_duration is required"}
	}

	duration := item.ProcessingDuration
	return m.publisher.Publish(ctx, m.topic, StatusMessage{
		Status:             status,
		JobID:              item.JobID,
		ImageID:            item.ImageID,
		ProcessingDuration: &duration,
	})
}

// GetStatus derives the image-level RequestStatus from region counters:
// IN_PROGRESS while regions remain outstanding, else SUCCESS/FAILED/PARTIAL
// by how many of the completed regions failed.
func (m *ImageStatusMonitor) GetStatus(item *database.JobItem) common.RequestStatus {
	if item.RegionSuccess+item.RegionError != item.RegionCount {
		return common.StatusInProgress
	}
	if item.RegionError == 0 {
		return common.StatusSuccess
	}
	if item.RegionSuccess == 0 {
		return common.StatusFailed
	}
	return common.StatusPartial
}

// RegionStatusMonitor derives RequestStatus from a RegionRequestItem's tile
// counters and publishes transitions to the region status topic.
type RegionStatusMonitor struct {
	publisher Publisher
	topic     string
}

func NewRegionStatusMonitor(publisher Publisher, topic string) *RegionStatusMonitor {
	return &RegionStatusMonitor{publisher: publisher, topic: topic}
}

func (m *RegionStatusMonitor) ProcessEvent(ctx context.Context, item *database.RegionRequestItem, status common.RequestStatus, message string) error {
	if item.JobID == "" {
		return &common.StatusMonitorError{Reason: "job_id is required"}
	}
	if item.ProcessingDuration <= 0 {
		return &common.StatusMonitorError{Reason: "processing_duration is required"}
	}

	duration := item.ProcessingDuration
	return m.publisher.Publish(ctx, m.topic, StatusMessage{
		Status:             status,
		JobID:              item.JobID,
		ImageID:            item.ImageID,
		RegionID:           item.RegionID,
		ProcessingDuration: &duration,
	})
}

// GetStatus derives the region-level RequestStatus purely from tile
// failures: a region is owned by a single processor so there is no
// IN_PROGRESS state to report once get_status is called.
func (m *RegionStatusMonitor) GetStatus(item *database.RegionRequestItem) common.RequestStatus {
	if item.FailedTileCount == 0 {
		return common.StatusSuccess
	}
	if item.FailedTileCount == item.TotalTiles {
		return common.StatusFailed
	}
	return common.StatusPartial
}
