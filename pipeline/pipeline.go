package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/security"
)

var (
	ErrNoFiles      = errors.New("no files to process")
	ErrTooManyFiles = errors.New("too many files in batch")
)

// BatchConverter transforms one staged file into a result; it owns deletion
// of the staged input.
type BatchConverter interface {
	Convert(ctx context.Context, file models.UploadedFile, opts options.Options) models.ConversionResult
}

// SpecialtyConverter additionally reports capability failures, which tell
// the pipeline to downgrade the rest of the specialty lane.
type SpecialtyConverter interface {
	Convert(ctx context.Context, file models.UploadedFile, opts options.Options) (models.ConversionResult, error)
}

// Pipeline coordinates validation, routing, conversion, and aggregation for
// a batch. Files are processed sequentially, so the result order always
// reflects the input order.
type Pipeline struct {
	router    *Router
	raster    BatchConverter
	vector    BatchConverter
	specialty SpecialtyConverter
	video     BatchConverter
	maxFiles  int
	logger    *zap.Logger
}

func New(router *Router, raster, vector BatchConverter, specialty SpecialtyConverter, video BatchConverter, maxFiles int, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		router:    router,
		raster:    raster,
		vector:    vector,
		specialty: specialty,
		video:     video,
		maxFiles:  maxFiles,
		logger:    logger,
	}
}

// ProcessBatch converts every file in the batch. Input-level problems are
// returned as an error before any conversion starts; everything file-scoped
// becomes a result entry. One file's failure never aborts its siblings.
func (p *Pipeline) ProcessBatch(ctx context.Context, files []models.UploadedFile, opts options.Options) ([]models.ConversionResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if p.maxFiles > 0 && len(files) > p.maxFiles {
		return nil, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyFiles, len(files), p.maxFiles)
	}

	p.logger.Info("Processing batch", zap.Int("files", len(files)))

	results := make([]models.ConversionResult, len(files))

	// Content validation runs up front so spoofed files never reach a
	// converter; a rejected file still consumes its staged copy.
	valid := make([]bool, len(files))
	for i, f := range files {
		res, err := security.ValidateContent(f.Path, models.CategoryImage)
		switch {
		case err != nil:
			results[i] = models.ErrorResult(f.OriginalName, err)
			os.Remove(f.Path)
		case !res.Valid:
			results[i] = models.ErrorResult(f.OriginalName, errors.New(res.Reason))
			os.Remove(f.Path)
		default:
			valid[i] = true
		}
	}

	lanes := p.router.Route(ctx, files, opts)

	// Once a specialty invocation fails at the capability level, the rest
	// of that lane downgrades to raster. The file that hit the failure
	// keeps its error result and is not retried; its staged copy is
	// already consumed.
	specialtyDown := false

	for i, f := range files {
		if !valid[i] {
			continue
		}

		lane := lanes[i]
		if lane == LaneSpecialty && specialtyDown {
			lane = LaneRaster
		}

		switch lane {
		case LaneVector:
			results[i] = p.vector.Convert(ctx, f, opts)
		case LaneSpecialty:
			res, err := p.specialty.Convert(ctx, f, opts)
			results[i] = res
			if err != nil {
				specialtyDown = true
				p.logger.Warn("Specialty converter failed mid-batch, downgrading remaining files to raster lane",
					zap.String("file", f.OriginalName),
					zap.Error(err),
				)
			}
		default:
			results[i] = p.raster.Convert(ctx, f, opts)
		}
	}

	succeeded := 0
	for _, res := range results {
		if res.Status == models.StatusSuccess {
			succeeded++
		}
	}
	p.logger.Info("Batch completed",
		zap.Int("files", len(files)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(files)-succeeded),
	)

	return results, nil
}

// ProcessSingle runs the video lane for one upload.
func (p *Pipeline) ProcessSingle(ctx context.Context, file models.UploadedFile, opts options.Options) models.ConversionResult {
	res, err := security.ValidateContent(file.Path, models.CategoryVideo)
	switch {
	case err != nil:
		os.Remove(file.Path)
		return models.ErrorResult(file.OriginalName, err)
	case !res.Valid:
		os.Remove(file.Path)
		return models.ErrorResult(file.OriginalName, errors.New(res.Reason))
	}

	return p.video.Convert(ctx, file, opts)
}
