package entities

import (
	"time"

	"github.com/google/uuid"
)

// SegmentationEventType represents the type of segmentation event
type SegmentationEventType string

const (
	SegmentationEventCompleted SegmentationEventType = "segmentation.completed"
)

// SegmentationEvent is published when a run finishes.
type SegmentationEvent struct {
	ID            string                `json:"id"`
	Type          SegmentationEventType `json:"type"`
	RunID         string                `json:"run_id"`
	ModelVersion  string                `json:"model_version"`
	Customers     int                   `json:"customers"`
	SegmentCounts map[SegmentLabel]int  `json:"segment_counts"`
	Timestamp     time.Time             `json:"timestamp"`
}

// NewSegmentationCompletedEvent creates the completion event for a run.
func NewSegmentationCompletedEvent(run *SegmentationRun) *SegmentationEvent {
	return &SegmentationEvent{
		ID:            uuid.New().String(),
		Type:          SegmentationEventCompleted,
		RunID:         run.ID,
		ModelVersion:  run.ModelVersion,
		Customers:     len(run.Customers),
		SegmentCounts: run.SegmentCounts(),
		Timestamp:     time.Now().UTC(),
	}
}
