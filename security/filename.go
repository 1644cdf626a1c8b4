package security

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Base names longer than this are truncated (extension excluded).
const maxBaseNameLength = 200

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	invalidCharRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	extCharRe     = regexp.MustCompile(`[^a-z0-9]`)
)

// SanitizeFilename repairs an arbitrary caller-supplied filename into one
// safe for filesystem use. It never fails: emptied input falls back to
// "unnamed", an emptied base name to "file". The extension is preserved
// lower-cased, the base name restricted to [A-Za-z0-9_-].
func SanitizeFilename(name string) string {
	if name == "" {
		return "unnamed"
	}

	name = strings.ReplaceAll(name, "\x00", "")
	// Treat both separator conventions as paths regardless of host OS.
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)

	ext := strings.ToLower(filepath.Ext(name))
	ext = extCharRe.ReplaceAllString(ext, "")
	if ext != "" {
		ext = "." + ext
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ReplaceAll(base, "..", "")
	base = strings.Trim(base, " .")
	base = whitespaceRe.ReplaceAllString(base, "_")
	base = invalidCharRe.ReplaceAllString(base, "")

	if base == "" {
		base = "file"
	}
	if len(base) > maxBaseNameLength {
		base = base[:maxBaseNameLength]
	}

	return base + ext
}

// IsPathTraversalSafe reports whether a filename can be joined onto a
// directory without escaping it. Unlike SanitizeFilename, which repairs,
// this check rejects: any traversal sequence, separator, null byte,
// absolute path, or directory component fails it.
func IsPathTraversalSafe(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsRune(name, 0) {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	if filepath.IsAbs(name) {
		return false
	}
	return filepath.Base(name) == name
}

// IsWithinDirectory reports whether path resolves inside dir.
func IsWithinDirectory(path, dir string) bool {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	resolvedDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return resolved == resolvedDir ||
		strings.HasPrefix(resolved, resolvedDir+string(filepath.Separator))
}

// GenerateSecureFilename derives a collision-resistant artifact name from an
// original filename: sanitized base, millisecond timestamp, random suffix.
func GenerateSecureFilename(original string) string {
	sanitized := SanitizeFilename(original)
	ext := filepath.Ext(sanitized)
	base := strings.TrimSuffix(sanitized, ext)

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return base + "-" + time.Now().UTC().Format("20060102150405") + "-" + suffix + ext
}
