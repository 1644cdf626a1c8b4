package security

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaforge/models"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return path
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestValidateContentAcceptsRealImage(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "real.png")

	res, err := ValidateContent(path, models.CategoryImage)
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, got rejection: %s", res.Reason)
	}
	if res.DetectedType != "image/png" {
		t.Errorf("detected type = %q, want image/png", res.DetectedType)
	}
}

const minimalPDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n"

func TestValidateContentAcceptsSpecialtyFormats(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "doc.pdf", minimalPDF)

	res, err := ValidateContent(path, models.CategoryImage)
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected a real PDF under .pdf to pass: %s", res.Reason)
	}
	if res.DetectedType != "application/pdf" {
		t.Errorf("detected type = %q, want application/pdf", res.DetectedType)
	}
}

func TestValidateContentRejectsSpecialtyUnderCoreExtension(t *testing.T) {
	// The widened allow-list is tied to the extension: PDF bytes hiding
	// behind .jpg stay rejected.
	path := writeTestFile(t, t.TempDir(), "doc.jpg", minimalPDF)

	res, err := ValidateContent(path, models.CategoryImage)
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if res.Valid {
		t.Fatal("expected PDF bytes under .jpg to be rejected")
	}
}

func TestValidateContentRejectsSpoofedExtension(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "fake.png", "this is not an image at all")

	res, err := ValidateContent(path, models.CategoryImage)
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if res.Valid {
		t.Fatal("expected spoofed file to be rejected")
	}
}

func TestValidateContentRejectsImageAsVideo(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "real.png")

	res, err := ValidateContent(path, models.CategoryVideo)
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if res.Valid {
		t.Fatal("expected image content to fail video validation")
	}
}

func TestValidateContentMissingFile(t *testing.T) {
	_, err := ValidateContent(filepath.Join(t.TempDir(), "gone.png"), models.CategoryImage)
	if err == nil {
		t.Fatal("expected an error for an unreadable file")
	}
}

func TestValidateContentSVG(t *testing.T) {
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{
			"clean svg",
			`<svg xmlns="http://www.w3.org/2000/svg"><rect width="10" height="10"/></svg>`,
			true,
		},
		{
			"xml prolog",
			`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`,
			true,
		},
		{
			"fragment reference allowed",
			`<svg xmlns="http://www.w3.org/2000/svg"><use xlink:href="#shape"/></svg>`,
			true,
		},
		{
			"script element",
			`<svg><script>alert(1)</script></svg>`,
			false,
		},
		{
			"event handler",
			`<svg onload="alert(1)"><rect/></svg>`,
			false,
		},
		{
			"javascript uri",
			`<svg><a href="javascript:alert(1)"><rect/></a></svg>`,
			false,
		},
		{
			"foreignObject",
			`<svg><foreignObject><body/></foreignObject></svg>`,
			false,
		},
		{
			"external xlink reference",
			`<svg><use xlink:href="http://evil.example/x.svg#a"/></svg>`,
			false,
		},
		{
			"not an svg at all",
			`hello world`,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestFile(t, t.TempDir(), "test.svg", tt.content)

			res, err := ValidateContent(path, models.CategoryImage)
			if err != nil {
				t.Fatalf("ValidateContent: %v", err)
			}
			if res.Valid != tt.valid {
				t.Errorf("valid = %v, want %v (reason: %s)", res.Valid, tt.valid, res.Reason)
			}
		})
	}
}

func TestValidateContentSVGRejectedForVideo(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "test.svg", `<svg xmlns="http://www.w3.org/2000/svg"/>`)

	res, err := ValidateContent(path, models.CategoryVideo)
	if err != nil {
		t.Fatalf("ValidateContent: %v", err)
	}
	if res.Valid {
		t.Fatal("expected SVG to be rejected for video category")
	}
}

func TestValidateExtension(t *testing.T) {
	if err := ValidateExtension("photo.jpg", models.CategoryImage); err != nil {
		t.Errorf("expected .jpg to pass image gate: %v", err)
	}
	if err := ValidateExtension("design.psd", models.CategoryImage); err != nil {
		t.Errorf("expected .psd to pass image gate: %v", err)
	}
	if err := ValidateExtension("clip.mp4", models.CategoryVideo); err != nil {
		t.Errorf("expected .mp4 to pass video gate: %v", err)
	}
	if err := ValidateExtension("script.sh", models.CategoryImage); err == nil {
		t.Error("expected .sh to fail image gate")
	}
	if err := ValidateExtension("photo.jpg", models.CategoryVideo); err == nil {
		t.Error("expected .jpg to fail video gate")
	}
	if !strings.Contains(ValidateExtension("x.exe", models.CategoryImage).Error(), ".exe") {
		t.Error("expected rejection to name the offending extension")
	}
}
