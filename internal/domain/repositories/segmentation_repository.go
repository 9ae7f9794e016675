package repositories

import (
	"context"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
)

// SegmentationRepository persists completed segmentation runs
type SegmentationRepository interface {
	// SaveRun stores the run and all of its customers atomically
	SaveRun(ctx context.Context, run *entities.SegmentationRun) error

	// GetRun retrieves a run with its customers
	GetRun(ctx context.Context, id string) (*entities.SegmentationRun, error)
}
