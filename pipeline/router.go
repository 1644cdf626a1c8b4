package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"mediaforge/converter"
	"mediaforge/models"
	"mediaforge/options"
)

// Lane is the converter category a file is routed to.
type Lane int

const (
	LaneRaster Lane = iota
	LaneVector
	LaneSpecialty
)

func (l Lane) String() string {
	switch l {
	case LaneVector:
		return "vector"
	case LaneSpecialty:
		return "specialty"
	default:
		return "raster"
	}
}

// RouterConfig carries the construction-time toggles for routing; there is
// deliberately no environment lookup at call sites.
type RouterConfig struct {
	// PreferSpecialty allows routing to the specialty converter at all.
	PreferSpecialty bool
}

// Router partitions a batch into disjoint processing lanes by extension.
type Router struct {
	cfg       RouterConfig
	specialty converter.Capability
	logger    *zap.Logger
}

func NewRouter(cfg RouterConfig, specialty converter.Capability, logger *zap.Logger) *Router {
	return &Router{cfg: cfg, specialty: specialty, logger: logger}
}

// Route assigns one lane per input file, index-aligned with files. Vector
// sources always take the vector lane. Specialty extensions take the
// specialty lane only when the capability probe, run once for the whole
// batch, succeeds and both the router config and the caller allow it;
// otherwise they quietly fall back to raster.
func (r *Router) Route(ctx context.Context, files []models.UploadedFile, opts options.Options) []Lane {
	specialtyWanted := r.cfg.PreferSpecialty && opts.UseMagick && r.specialty != nil

	specialtyUp := false
	if specialtyWanted && batchHasSpecialty(files) {
		specialtyUp = r.specialty.IsAvailable(ctx)
		if !specialtyUp {
			r.logger.Warn("Specialty converter unavailable, routing specialty formats to raster lane")
		}
	}

	lanes := make([]Lane, len(files))
	for i, f := range files {
		ext := strings.ToLower(filepath.Ext(f.OriginalName))
		switch {
		case ext == ".svg":
			lanes[i] = LaneVector
		case converter.SpecialtyExtensions[ext] && specialtyUp:
			lanes[i] = LaneSpecialty
		default:
			lanes[i] = LaneRaster
		}
	}
	return lanes
}

func batchHasSpecialty(files []models.UploadedFile) bool {
	for _, f := range files {
		if converter.IsSpecialtyExtension(f.OriginalName) {
			return true
		}
	}
	return false
}
