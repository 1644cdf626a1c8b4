package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/floostack/transcoder/ffmpeg"
	"go.uber.org/zap"

	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/security"
)

// Caller-facing preset names mapped onto ffmpeg encoder presets.
var ffmpegPresets = map[string]string{
	"web":     "medium",
	"quality": "slow",
	"fast":    "veryfast",
}

// Container format passed to ffmpeg -f; differs from the extension for some
// targets.
var containerFormats = map[string]string{
	"mp4":  "mp4",
	"webm": "webm",
	"mov":  "mov",
	"mkv":  "matroska",
	"gif":  "gif",
}

// Video transcodes a single upload into exactly one output: format,
// bitrate, preset, resize, and audio handling arrive as one configuration.
type Video struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *zap.Logger
}

func NewVideo(ffmpegBin, ffprobeBin string, logger *zap.Logger) *Video {
	return &Video{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

// Convert runs the transcode to completion or failure; a started encode is
// not interrupted mid-flight. The staged input is deleted on the way out.
func (c *Video) Convert(ctx context.Context, file models.UploadedFile, opts options.Options) models.ConversionResult {
	defer os.Remove(file.Path)

	originalSize := statSize(file.Path, file.Size)
	format := opts.Format
	if format == "" {
		format = "mp4"
	}

	outName := security.GenerateSecureFilename(baseName(file.OriginalName) + "." + format)
	outPath := filepath.Join(filepath.Dir(file.Path), outName)

	c.probeSource(file)

	ffOpts := &ffmpeg.Options{}
	overwrite := true
	ffOpts.Overwrite = &overwrite

	if container, ok := containerFormats[format]; ok {
		ffOpts.OutputFormat = &container
	}
	if opts.Bitrate != "" {
		bitrate := opts.Bitrate
		ffOpts.VideoBitRate = &bitrate
	}
	if preset, ok := ffmpegPresets[opts.Preset]; ok && format != "gif" {
		ffOpts.Preset = &preset
	}
	if !opts.Audio || format == "gif" {
		skip := true
		ffOpts.SkipAudio = &skip
	}
	if filter := scaleFilter(opts); filter != "" {
		ffOpts.VideoFilter = &filter
	}

	trans := ffmpeg.
		New(&ffmpeg.Config{
			ProgressEnabled: true,
			FfmpegBinPath:   c.ffmpegBin,
			FfprobeBinPath:  c.ffprobeBin,
		}).
		Input(file.Path).
		Output(outPath)

	progress, err := trans.Start(ffOpts)
	if err != nil {
		c.logger.Error("Transcode failed to start",
			zap.String("file", file.OriginalName),
			zap.Error(err),
		)
		return models.ErrorResult(file.OriginalName, fmt.Errorf("transcode: %w", err))
	}

	for p := range progress {
		c.logger.Debug("Transcode progress",
			zap.String("file", file.OriginalName),
			zap.Float64("progress", p.GetProgress()),
			zap.String("speed", p.GetSpeed()),
		)
	}

	outSize := statSize(outPath, 0)
	if outSize == 0 {
		return models.ErrorResult(file.OriginalName, fmt.Errorf("transcode produced no output for %s", file.OriginalName))
	}

	c.logger.Info("Video conversion completed",
		zap.String("file", file.OriginalName),
		zap.String("format", format),
		zap.Int64("original_size", originalSize),
		zap.Int64("output_size", outSize),
	)

	return models.ConversionResult{
		Name:         file.OriginalName,
		OriginalSize: originalSize,
		ProcessedFiles: []models.ProcessedFile{{
			Format:   format,
			Filename: outName,
			Size:     outSize,
			Savings:  models.Savings(originalSize, outSize),
		}},
		Status: models.StatusSuccess,
	}
}

// probeSource logs source stream dimensions via ffprobe; failures here are
// informational only.
func (c *Video) probeSource(file models.UploadedFile) {
	meta, err := ffmpeg.
		New(&ffmpeg.Config{FfmpegBinPath: c.ffmpegBin, FfprobeBinPath: c.ffprobeBin}).
		Input(file.Path).
		GetMetadata()
	if err != nil {
		c.logger.Warn("Failed to probe video",
			zap.String("file", file.OriginalName),
			zap.Error(err),
		)
		return
	}

	for _, stream := range meta.GetStreams() {
		if stream.GetWidth() > 0 {
			c.logger.Info("Probed video source",
				zap.String("file", file.OriginalName),
				zap.Int("width", stream.GetWidth()),
				zap.Int("height", stream.GetHeight()),
				zap.String("codec", stream.GetCodecName()),
			)
			return
		}
	}
}

// scaleFilter renders the shared resize policy as an ffmpeg -vf expression.
// Dimensions are forced even because common encoders reject odd sizes.
func scaleFilter(opts options.Options) string {
	if opts.ResizeMode == options.ResizeModeAbsolute && (opts.Width > 0 || opts.Height > 0) {
		w, h := opts.Width, opts.Height
		if opts.Crop == options.CropCover && w > 0 && h > 0 {
			return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
		}
		switch {
		case w > 0 && h > 0:
			return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h)
		case w > 0:
			return fmt.Sprintf("scale=%d:-2", w)
		default:
			return fmt.Sprintf("scale=-2:%d", h)
		}
	}

	if opts.Resize != 100 {
		return fmt.Sprintf("scale=trunc(iw*%d/200)*2:trunc(ih*%d/200)*2", opts.Resize, opts.Resize)
	}
	return ""
}
