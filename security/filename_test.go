package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "photo.jpg", "photo.jpg"},
		{"uppercase extension lowered", "photo.JPG", "photo.jpg"},
		{"spaces become underscores", "my holiday photo.png", "my_holiday_photo.png"},
		{"path components stripped", "/etc/passwd", "passwd"},
		{"windows path stripped", `C:\Users\me\photo.png`, "photo.png"},
		{"traversal removed", "../../secret.png", "secret.png"},
		{"null bytes removed", "pho\x00to.png", "photo.png"},
		{"special characters removed", "ph@o#t$o!.png", "photo.png"},
		{"empty input", "", "unnamed"},
		{"only special characters", "@#$%.png", "file.png"},
		{"trailing dots trimmed", "photo...png", "photo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilenameTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".png"
	got := SanitizeFilename(long)

	if len(got) > 200+len(".png") {
		t.Errorf("sanitized name length = %d, want at most %d", len(got), 200+len(".png"))
	}
	if !strings.HasSuffix(got, ".png") {
		t.Errorf("sanitized name %q lost its extension", got)
	}
}

func TestIsPathTraversalSafe(t *testing.T) {
	tests := []struct {
		input string
		safe  bool
	}{
		{"photo.jpg", true},
		{"photo-20250101-abc123.webp", true},
		{"", false},
		{"../photo.jpg", false},
		{"..", false},
		{"dir/photo.jpg", false},
		{`dir\photo.jpg`, false},
		{"/etc/passwd", false},
		{"pho\x00to.jpg", false},
	}

	for _, tt := range tests {
		if got := IsPathTraversalSafe(tt.input); got != tt.safe {
			t.Errorf("IsPathTraversalSafe(%q) = %v, want %v", tt.input, got, tt.safe)
		}
	}
}

func TestIsWithinDirectory(t *testing.T) {
	if !IsWithinDirectory("/data/uploads/photo.jpg", "/data/uploads") {
		t.Error("expected path inside directory to pass")
	}
	if IsWithinDirectory("/data/uploads/../secret", "/data/uploads") {
		t.Error("expected escaping path to fail")
	}
	if IsWithinDirectory("/data/uploads-other/photo.jpg", "/data/uploads") {
		t.Error("expected sibling prefix directory to fail")
	}
}

func TestGenerateSecureFilename(t *testing.T) {
	name := GenerateSecureFilename("My Photo.PNG")

	if !strings.HasPrefix(name, "My_Photo-") {
		t.Errorf("generated name %q missing sanitized base prefix", name)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("generated name %q missing lowered extension", name)
	}
	if !IsPathTraversalSafe(name) {
		t.Errorf("generated name %q failed the traversal gate", name)
	}

	other := GenerateSecureFilename("My Photo.PNG")
	if name == other {
		t.Error("expected two generated names to differ")
	}
}
