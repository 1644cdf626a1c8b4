package converter

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for every binary format the raster lane accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/security"
)

// Raster converts binary image uploads into each requested raster target.
type Raster struct {
	logger *zap.Logger
}

func NewRaster(logger *zap.Logger) *Raster {
	return &Raster{logger: logger}
}

// Convert produces one artifact per requested raster format. A failure
// decoding or encoding this file yields a single error result; siblings in
// the batch are unaffected. The staged input is deleted on the way out.
func (c *Raster) Convert(ctx context.Context, file models.UploadedFile, opts options.Options) models.ConversionResult {
	defer os.Remove(file.Path)

	originalSize := statSize(file.Path, file.Size)

	src, err := decodeImage(file.Path)
	if err != nil {
		c.logger.Error("Failed to decode image",
			zap.String("file", file.OriginalName),
			zap.Error(err),
		)
		return models.ErrorResult(file.OriginalName, fmt.Errorf("%w: %v", ErrCorruptSource, err))
	}

	resized := applyResize(src, opts)
	dir := filepath.Dir(file.Path)
	base := baseName(file.OriginalName)

	processed := make([]models.ProcessedFile, 0, len(opts.Formats))
	for _, format := range opts.Formats {
		if ctx.Err() != nil {
			return models.ErrorResult(file.OriginalName, ctx.Err())
		}
		// The vector format only makes sense for vector sources.
		if format == "svg" {
			continue
		}

		outName := security.GenerateSecureFilename(base + "." + format)
		outPath := filepath.Join(dir, outName)

		if err := encodeToFile(outPath, resized, format, opts.Quality); err != nil {
			c.logger.Error("Failed to encode image",
				zap.String("file", file.OriginalName),
				zap.String("format", format),
				zap.Error(err),
			)
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

	c.logger.Info("Raster conversion completed",
		zap.String("file", file.OriginalName),
		zap.Int("outputs", len(processed)),
	)

	return models.ConversionResult{
		Name:           file.OriginalName,
		OriginalSize:   originalSize,
		ProcessedFiles: processed,
		Status:         models.StatusSuccess,
	}
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// applyResize implements the shared resize policy. Percent mode scales to
// exact rounded dimensions; absolute mode honors the crop policy: cover
// crops to fill both dimensions anchored at center, none fits inside the
// bounding box without upscaling.
func applyResize(src image.Image, opts options.Options) image.Image {
	if opts.ResizeMode == options.ResizeModeAbsolute && (opts.Width > 0 || opts.Height > 0) {
		w, h := opts.Width, opts.Height

		if opts.Crop == options.CropCover {
			if w == 0 {
				w = src.Bounds().Dx()
			}
			if h == 0 {
				h = src.Bounds().Dy()
			}
			return imaging.Fill(src, w, h, imaging.Center, imaging.Lanczos)
		}

		if w > 0 && h > 0 {
			return imaging.Fit(src, w, h, imaging.Lanczos)
		}
		// Single dimension: scale preserving aspect ratio.
		return imaging.Resize(src, w, h, imaging.Lanczos)
	}

	if opts.Resize != 100 {
		bounds := src.Bounds()
		w := int(math.Round(float64(bounds.Dx()) * float64(opts.Resize) / 100))
		h := int(math.Round(float64(bounds.Dy()) * float64(opts.Resize) / 100))
		return imaging.Resize(src, w, h, imaging.Lanczos)
	}

	return src
}

func baseName(filename string) string {
	sanitized := security.SanitizeFilename(filename)
	return strings.TrimSuffix(sanitized, filepath.Ext(sanitized))
}

func statSize(path string, fallback int64) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return fallback
}
