package repository

import (
	"context"

	"mediaforge/models"
)

// Recorder persists per-file conversion outcomes for later inspection.
type Recorder interface {
	RecordResult(ctx context.Context, batchID string, result models.ConversionResult) error
}
