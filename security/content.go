package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"mediaforge/models"
)

// ContentResult is the outcome of inspecting a staged file's actual bytes.
// An I/O failure while reading the file is reported as an error from
// ValidateContent instead, distinct from a well-formed rejection.
type ContentResult struct {
	Valid        bool
	DetectedType string
	Reason       string
}

var allowedImageMIMEs = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/avif",
	"image/bmp",
	"image/tiff",
}

// Specialty formats are admitted only under their own extensions: they
// route to the external converter, which rejects corrupt inputs itself.
var specialtyImageMIMEs = []string{
	"application/pdf",
	"image/vnd.adobe.photoshop",
	"application/postscript",
	"image/heic",
	"image/heif",
}

var specialtyImageExtensions = map[string]bool{
	".tiff": true, ".tif": true, ".psd": true, ".eps": true,
	".ai": true, ".pdf": true, ".heic": true, ".heif": true,
}

var allowedVideoMIMEs = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"video/x-matroska",
	"video/x-msvideo",
	"video/x-flv",
	"video/x-ms-wmv",
	"video/x-m4v",
}

var allowedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".avif": true, ".bmp": true, ".tiff": true, ".tif": true, ".svg": true,
	".psd": true, ".eps": true, ".ai": true, ".pdf": true, ".heic": true, ".heif": true,
}

var allowedVideoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true,
	".avi": true, ".flv": true, ".wmv": true, ".m4v": true,
}

// Constructs that make an SVG unsafe to process or serve.
var svgDangerousPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)<script[\s>]`), "embedded script element"},
	{regexp.MustCompile(`(?i)javascript:`), "javascript: URI"},
	{regexp.MustCompile(`(?i)\bon\w+\s*=`), "inline event handler attribute"},
	{regexp.MustCompile(`(?i)<foreignobject`), "foreignObject element"},
}

var xlinkHrefRe = regexp.MustCompile(`(?i)xlink:href\s*=\s*["']([^"']*)["']`)

// ValidateContent confirms that the bytes at path match the claimed
// category. SVG candidates are inspected as text and never signature
// sniffed; everything else goes through magic-number detection against the
// per-category allow-list. Files carrying a specialty extension widen the
// image allow-list with the matching document formats, so a real PDF or
// PSD passes here and meets its converter. A non-nil error means the file
// could not be read, not that it was rejected.
func ValidateContent(path string, category models.Category) (*ContentResult, error) {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return validateSVG(path, category)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect content type of %s: %w", filepath.Base(path), err)
	}

	var allowed []string
	switch category {
	case models.CategoryImage:
		allowed = allowedImageMIMEs
		if specialtyImageExtensions[strings.ToLower(filepath.Ext(path))] {
			allowed = append(append([]string(nil), allowed...), specialtyImageMIMEs...)
		}
	case models.CategoryVideo:
		allowed = allowedVideoMIMEs
	default:
		return &ContentResult{
			DetectedType: mtype.String(),
			Reason:       fmt.Sprintf("unknown validation category %q", category),
		}, nil
	}

	for _, mime := range allowed {
		if mtype.Is(mime) {
			return &ContentResult{Valid: true, DetectedType: mtype.String()}, nil
		}
	}

	return &ContentResult{
		DetectedType: mtype.String(),
		Reason:       fmt.Sprintf("file type %s is not an allowed %s format", mtype.String(), category),
	}, nil
}

func validateSVG(path string, category models.Category) (*ContentResult, error) {
	if category != models.CategoryImage {
		return &ContentResult{
			DetectedType: "svg",
			Reason:       "SVG files are only allowed for image processing",
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read svg %s: %w", filepath.Base(path), err)
	}

	content := string(data)
	trimmed := strings.ToLower(strings.TrimSpace(content))
	if !strings.HasPrefix(trimmed, "<?xml") && !strings.Contains(trimmed, "<svg") {
		return &ContentResult{Reason: "invalid SVG file format"}, nil
	}

	for _, p := range svgDangerousPatterns {
		if p.re.MatchString(content) {
			return &ContentResult{
				DetectedType: "svg",
				Reason:       "SVG contains potentially dangerous content: " + p.reason,
			}, nil
		}
	}

	// Fragment references (#id) are fine, anything external is not.
	for _, match := range xlinkHrefRe.FindAllStringSubmatch(content, -1) {
		if !strings.HasPrefix(match[1], "#") {
			return &ContentResult{
				DetectedType: "svg",
				Reason:       "SVG contains potentially dangerous content: external xlink:href reference",
			}, nil
		}
	}

	return &ContentResult{Valid: true, DetectedType: "image/svg+xml"}, nil
}

// ValidateExtension is the weaker extension-only gate used for early
// rejection before signature or content inspection runs.
func ValidateExtension(filename string, category models.Category) error {
	ext := strings.ToLower(filepath.Ext(filename))

	switch category {
	case models.CategoryImage:
		if !allowedImageExtensions[ext] {
			return fmt.Errorf("extension %q is not an allowed image extension", ext)
		}
	case models.CategoryVideo:
		if !allowedVideoExtensions[ext] {
			return fmt.Errorf("extension %q is not an allowed video extension", ext)
		}
	default:
		return fmt.Errorf("unknown validation category %q", category)
	}
	return nil
}
