package options

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mediaforge/models"
)

type ResizeMode string

const (
	ResizeModePercent  ResizeMode = "percent"
	ResizeModeAbsolute ResizeMode = "absolute"
)

type CropMode string

const (
	CropNone  CropMode = "none"
	CropCover CropMode = "cover"
)

// Options is the canonical, bounded configuration produced by Validate.
// Exactly one resize mode is active, Formats is never empty, and every
// numeric field sits inside its clamped range.
type Options struct {
	Quality    int
	Resize     int
	ResizeMode ResizeMode
	Width      int
	Height     int
	Crop       CropMode

	// Image
	Formats   []string
	UseMagick bool

	// Vector
	Precision   int
	KeepViewBox bool
	CleanupIDs  bool

	// Video
	Format  string
	Bitrate string
	Preset  string
	Audio   bool
}

// Result accumulates validation outcomes: every recognized field is checked
// independently, offending fields are reported together, and Sanitized only
// reflects the fields that passed.
type Result struct {
	Valid     bool
	Sanitized Options
	Errors    []string
}

var imageFormats = map[string]bool{
	"webp": true, "avif": true, "jpg": true, "jpeg": true, "png": true, "svg": true,
}

var videoFormats = map[string]bool{
	"mp4": true, "webm": true, "mov": true, "mkv": true, "gif": true,
}

var videoPresets = map[string]bool{
	"web": true, "quality": true, "fast": true,
}

var bitrateRe = regexp.MustCompile(`^\d+[KMGkmg]?$`)

// Defaults returns the canonical configuration with no caller overrides.
func Defaults(category models.Category) Options {
	opts := Options{
		Quality:     80,
		Resize:      100,
		ResizeMode:  ResizeModePercent,
		Crop:        CropNone,
		UseMagick:   true,
		Precision:   2,
		KeepViewBox: true,
		CleanupIDs:  true,
	}
	switch category {
	case models.CategoryVideo:
		opts.Format = "mp4"
		opts.Preset = "web"
		opts.Audio = true
	default:
		opts.Formats = []string{"webp"}
	}
	return opts
}

// Validate turns an arbitrary options payload into a bounded canonical
// configuration. It is not fail-fast: every recognized field is validated
// on its own and all failures are collected. Callers must not proceed to
// conversion unless Valid is true.
func Validate(raw map[string]any, category models.Category) Result {
	if raw == nil {
		return Result{Errors: []string{"options must be a non-null object"}}
	}

	opts := Defaults(category)
	var errs []string

	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if v, ok := raw["quality"]; ok {
		if q, err := intValue(v); err != nil || q < 1 || q > 100 {
			fail("quality must be a number between 1 and 100")
		} else {
			opts.Quality = q
		}
	}

	if v, ok := raw["resize"]; ok {
		if r, err := intValue(v); err != nil || r < 1 || r > 200 {
			fail("resize percentage must be between 1 and 200")
		} else {
			opts.Resize = r
		}
	}

	if v, ok := raw["resizeMode"]; ok {
		mode, _ := v.(string)
		switch ResizeMode(mode) {
		case ResizeModePercent, ResizeModeAbsolute:
			opts.ResizeMode = ResizeMode(mode)
		default:
			fail("resize mode must be %q or %q", ResizeModePercent, ResizeModeAbsolute)
		}
	}

	if v, ok := raw["width"]; ok && v != nil {
		if w, err := intValue(v); err != nil || w < 1 || w > 10000 {
			fail("width must be between 1 and 10000")
		} else {
			opts.Width = w
		}
	}

	if v, ok := raw["height"]; ok && v != nil {
		if h, err := intValue(v); err != nil || h < 1 || h > 10000 {
			fail("height must be between 1 and 10000")
		} else {
			opts.Height = h
		}
	}

	if v, ok := raw["crop"]; ok {
		mode, _ := v.(string)
		switch CropMode(mode) {
		case CropNone, CropCover:
			opts.Crop = CropMode(mode)
		default:
			fail("crop mode must be %q or %q", CropNone, CropCover)
		}
	}

	switch category {
	case models.CategoryImage:
		validateImage(raw, &opts, fail)
	case models.CategoryVideo:
		validateVideo(raw, &opts, fail)
	}

	return Result{
		Valid:     len(errs) == 0,
		Sanitized: opts,
		Errors:    errs,
	}
}

func validateImage(raw map[string]any, opts *Options, fail func(string, ...any)) {
	if v, ok := raw["formats"]; ok {
		formats, err := stringSlice(v)
		switch {
		case err != nil:
			fail("formats must be an array of strings")
		case len(formats) == 0:
			fail("formats must not be empty")
		default:
			var invalid []string
			for _, f := range formats {
				if !imageFormats[f] {
					invalid = append(invalid, f)
				}
			}
			if len(invalid) > 0 {
				fail("invalid formats: %s", strings.Join(invalid, ", "))
			} else {
				opts.Formats = formats
			}
		}
	}

	if v, ok := raw["useImageMagick"]; ok {
		if b, isBool := v.(bool); isBool {
			opts.UseMagick = b
		} else {
			fail("useImageMagick must be a boolean")
		}
	}

	if v, ok := raw["precision"]; ok {
		if p, err := intValue(v); err != nil || p < 0 || p > 5 {
			fail("precision must be a number between 0 and 5")
		} else {
			opts.Precision = p
		}
	}

	if v, ok := raw["keepViewBox"]; ok {
		if b, isBool := v.(bool); isBool {
			opts.KeepViewBox = b
		} else {
			fail("keepViewBox must be a boolean")
		}
	}

	if v, ok := raw["cleanupIDs"]; ok {
		if b, isBool := v.(bool); isBool {
			opts.CleanupIDs = b
		} else {
			fail("cleanupIDs must be a boolean")
		}
	}
}

func validateVideo(raw map[string]any, opts *Options, fail func(string, ...any)) {
	if v, ok := raw["format"]; ok {
		format, _ := v.(string)
		if !videoFormats[format] {
			fail("invalid video format: %v", v)
		} else {
			opts.Format = format
		}
	}

	if v, ok := raw["bitrate"]; ok {
		bitrate, _ := v.(string)
		if !bitrateRe.MatchString(bitrate) {
			fail("invalid bitrate format")
		} else {
			opts.Bitrate = bitrate
		}
	}

	if v, ok := raw["preset"]; ok {
		preset, _ := v.(string)
		if !videoPresets[preset] {
			fail("invalid preset: %v", v)
		} else {
			opts.Preset = preset
		}
	}

	if v, ok := raw["audio"]; ok {
		if b, isBool := v.(bool); isBool {
			opts.Audio = b
		} else {
			fail("audio must be a boolean")
		}
	}
}

// intValue coerces the numeric shapes a decoded payload can carry. JSON
// numbers arrive as float64; fractional values are rejected rather than
// silently truncated.
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func stringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("not a string: %v", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not an array: %v", v)
	}
}
