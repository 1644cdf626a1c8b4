package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"github.com/tdewolff/minify/v2"
	minsvg "github.com/tdewolff/minify/v2/svg"
	"go.uber.org/zap"

	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/security"
)

// Rasterization oversampling factor. Vector sources are rendered above
// their natural size and downsampled so curves stay clean.
const svgOversample = 2

// Fallback canvas when the source declares no usable viewBox.
const svgDefaultSize = 512

var (
	viewBoxAttrRe = regexp.MustCompile(`(?i)\s+viewBox\s*=\s*("[^"]*"|'[^']*')`)
	idAttrRe      = regexp.MustCompile(`\s+id\s*=\s*["']([^"']+)["']`)
	urlRefRe      = regexp.MustCompile(`url\(#([^)]+)\)`)
	hrefRefRe     = regexp.MustCompile(`(?:xlink:)?href\s*=\s*["']#([^"']+)["']`)
)

// Vector handles SVG sources. When the target set includes "svg" the file
// is optimized in place; raster targets are rasterized independently. Both
// outputs can come out of one pass over the same upload, so the staged
// input is only deleted once neither path needs it.
type Vector struct {
	logger *zap.Logger
}

func NewVector(logger *zap.Logger) *Vector {
	return &Vector{logger: logger}
}

func (c *Vector) Convert(ctx context.Context, file models.UploadedFile, opts options.Options) models.ConversionResult {
	defer os.Remove(file.Path)

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return models.ErrorResult(file.OriginalName, fmt.Errorf("read svg: %w", err))
	}

	originalSize := int64(len(data))
	dir := filepath.Dir(file.Path)
	base := baseName(file.OriginalName)

	hasSVG := false
	var rasterTargets []string
	for _, format := range opts.Formats {
		switch {
		case format == "svg":
			hasSVG = true
		case IsRasterFormat(format):
			rasterTargets = append(rasterTargets, format)
		}
	}

	var processed []models.ProcessedFile

	if hasSVG {
		optimized, err := OptimizeSVG(data, opts)
		if err != nil {
			c.logger.Error("Failed to optimize SVG",
				zap.String("file", file.OriginalName),
				zap.Error(err),
			)
			return models.ErrorResult(file.OriginalName, fmt.Errorf("optimize svg: %w", err))
		}

		outName := security.GenerateSecureFilename(base + ".svg")
		outPath := filepath.Join(dir, outName)
		if err := os.WriteFile(outPath, optimized, 0o644); err != nil {
			return models.ErrorResult(file.OriginalName, fmt.Errorf("write optimized svg: %w", err))
		}

		outSize := int64(len(optimized))
		processed = append(processed, models.ProcessedFile{
			Format:   "svg",
			Filename: outName,
			Size:     outSize,
			Savings:  models.Savings(originalSize, outSize),
		})
	}

	if len(rasterTargets) > 0 {
		img, err := rasterizeSVG(data)
		if err != nil {
			c.logger.Error("Failed to rasterize SVG",
				zap.String("file", file.OriginalName),
				zap.Error(err),
			)
			return models.ErrorResult(file.OriginalName, fmt.Errorf("%w: %v", ErrCorruptSource, err))
		}

		resized := applyResize(img, opts)
		for _, format := range rasterTargets {
			if ctx.Err() != nil {
				return models.ErrorResult(file.OriginalName, ctx.Err())
			}

			outName := security.GenerateSecureFilename(base + "." + format)
			outPath := filepath.Join(dir, outName)
			if err := encodeToFile(outPath, resized, format, opts.Quality); err != nil {
				return models.ErrorResult(file.OriginalName, err)
			}

			outSize := statSize(outPath, 0)
			processed = append(processed, models.ProcessedFile{
				Format:   format,
				Filename: outName,
				Size:     outSize,
				Savings:  models.Savings(originalSize, outSize),
			})
		}
	}

	c.logger.Info("Vector conversion completed",
		zap.String("file", file.OriginalName),
		zap.Bool("optimized", hasSVG),
		zap.Int("raster_outputs", len(rasterTargets)),
	)

	return models.ConversionResult{
		Name:           file.OriginalName,
		OriginalSize:   originalSize,
		ProcessedFiles: processed,
		Status:         models.StatusSuccess,
	}
}

// OptimizeSVG re-emits an SVG with reduced coordinate precision and, per
// options, its viewBox removed and unreferenced identifiers stripped. The
// operation is idempotent: optimizing an already-optimized document yields
// no further reduction.
func OptimizeSVG(data []byte, opts options.Options) ([]byte, error) {
	if !opts.KeepViewBox {
		data = viewBoxAttrRe.ReplaceAll(data, nil)
	}
	if opts.CleanupIDs {
		data = cleanupIdentifiers(data)
	}

	m := minify.New()
	m.Add("image/svg+xml", &minsvg.Minifier{Precision: opts.Precision})

	out, err := m.Bytes("image/svg+xml", data)
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	return out, nil
}

// cleanupIdentifiers drops id attributes that nothing in the document
// references via url(#...) or href="#...".
func cleanupIdentifiers(data []byte) []byte {
	referenced := make(map[string]bool)
	for _, match := range urlRefRe.FindAllSubmatch(data, -1) {
		referenced[string(match[1])] = true
	}
	for _, match := range hrefRefRe.FindAllSubmatch(data, -1) {
		referenced[string(match[1])] = true
	}

	return idAttrRe.ReplaceAllFunc(data, func(attr []byte) []byte {
		id := idAttrRe.FindSubmatch(attr)[1]
		if referenced[string(id)] {
			return attr
		}
		return nil
	})
}

// rasterizeSVG renders the document at svgOversample times its natural size
// and downsamples back, returning an image at the natural dimensions.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = svgDefaultSize, svgDefaultSize
	}

	rw, rh := w*svgOversample, h*svgOversample
	icon.SetTarget(0, 0, float64(rw), float64(rh))

	img := image.NewRGBA(image.Rect(0, 0, rw, rh))
	scanner := rasterx.NewScannerGV(rw, rh, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(rw, rh, scanner), 1)

	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}
