package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/security"
)

// Capability is a runtime probe for an optional external converter. The
// router queries it once per batch and caches the answer for that batch.
type Capability interface {
	IsAvailable(ctx context.Context) bool
}

// SpecialtyExtensions are the formats routed through ImageMagick when it is
// available: formats the raster lane handles poorly or not at all.
var SpecialtyExtensions = map[string]bool{
	".tiff": true, ".tif": true,
	".psd":  true,
	".eps":  true,
	".ai":   true,
	".pdf":  true,
	".heic": true, ".heif": true,
}

// IsSpecialtyExtension reports whether a filename belongs to the specialty lane.
func IsSpecialtyExtension(filename string) bool {
	return SpecialtyExtensions[extOf(filename)]
}

// Magick shells out to an ImageMagick binary for specialty formats.
type Magick struct {
	binary string
	logger *zap.Logger
}

func NewMagick(binary string, logger *zap.Logger) *Magick {
	if binary == "" {
		binary = "convert"
	}
	return &Magick{binary: binary, logger: logger}
}

func (m *Magick) IsAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath(m.binary); err != nil {
		return false
	}
	return exec.CommandContext(ctx, m.binary, "-version").Run() == nil
}

// Convert transforms one specialty file into each requested raster target.
// A corrupt input surfaces only in the returned result; a non-nil error
// additionally signals that the capability itself failed mid-invocation,
// telling the pipeline to downgrade the rest of the lane.
func (m *Magick) Convert(ctx context.Context, file models.UploadedFile, opts options.Options) (models.ConversionResult, error) {
	defer os.Remove(file.Path)

	originalSize := statSize(file.Path, file.Size)
	dir := filepath.Dir(file.Path)
	base := baseName(file.OriginalName)

	var processed []models.ProcessedFile
	for _, format := range opts.Formats {
		if format == "svg" {
			continue
		}

		outName := security.GenerateSecureFilename(base + "." + format)
		outPath := filepath.Join(dir, outName)

		args := magickArgs(file.Path, outPath, opts)
		cmd := exec.CommandContext(ctx, m.binary, args...)

		if out, err := cmd.CombinedOutput(); err != nil {
			convErr := fmt.Errorf("imagemagick: %v: %s", err, bytes.TrimSpace(out))
			m.logger.Error("ImageMagick conversion failed",
				zap.String("file", file.OriginalName),
				zap.String("format", format),
				zap.Error(convErr),
			)
			// An exit status means this particular input was rejected; any
			// other failure means the binary itself is gone or broken.
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return models.ErrorResult(file.OriginalName, convErr), nil
			}
			return models.ErrorResult(file.OriginalName, convErr), convErr
		}

		outSize := statSize(outPath, 0)
		processed = append(processed, models.ProcessedFile{
			Format:   format,
			Filename: outName,
			Size:     outSize,
			Savings:  models.Savings(originalSize, outSize),
		})
	}

	m.logger.Info("Specialty conversion completed",
		zap.String("file", file.OriginalName),
		zap.Int("outputs", len(processed)),
	)

	return models.ConversionResult{
		Name:           file.OriginalName,
		OriginalSize:   originalSize,
		ProcessedFiles: processed,
		Status:         models.StatusSuccess,
	}, nil
}

func magickArgs(inPath, outPath string, opts options.Options) []string {
	args := []string{inPath}

	if opts.ResizeMode == options.ResizeModeAbsolute && (opts.Width > 0 || opts.Height > 0) {
		geometry := absoluteGeometry(opts.Width, opts.Height)
		if opts.Crop == options.CropCover && opts.Width > 0 && opts.Height > 0 {
			args = append(args,
				"-resize", geometry+"^",
				"-gravity", "center",
				"-extent", geometry,
			)
		} else {
			args = append(args, "-resize", geometry)
		}
	} else if opts.Resize != 100 {
		args = append(args, "-resize", strconv.Itoa(opts.Resize)+"%")
	}

	args = append(args, "-quality", strconv.Itoa(opts.Quality), outPath)
	return args
}

func absoluteGeometry(w, h int) string {
	switch {
	case w > 0 && h > 0:
		return fmt.Sprintf("%dx%d", w, h)
	case w > 0:
		return strconv.Itoa(w)
	default:
		return "x" + strconv.Itoa(h)
	}
}

func extOf(filename string) string {
	return filepath.Ext(security.SanitizeFilename(filename))
}
