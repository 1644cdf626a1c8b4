package models

import "math"

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ProcessedFile is one produced artifact for one target format.
type ProcessedFile struct {
	Format   string  `json:"format"`
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Savings  float64 `json:"savings"`
}

// ConversionResult is the per-source-file outcome of a conversion pass.
// Status == StatusError implies ProcessedFiles may be empty.
type ConversionResult struct {
	Name           string          `json:"name"`
	OriginalSize   int64           `json:"originalSize,omitempty"`
	ProcessedFiles []ProcessedFile `json:"processedFiles,omitempty"`
	Status         Status          `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// Savings reports the percent size reduction from original to output,
// rounded to two decimals and floored at 0 when the output is not smaller.
func Savings(original, output int64) float64 {
	if original <= 0 || output >= original {
		return 0
	}
	pct := float64(original-output) / float64(original) * 100
	return math.Round(pct*100) / 100
}

func ErrorResult(name string, err error) ConversionResult {
	return ConversionResult{
		Name:   name,
		Status: StatusError,
		Error:  err.Error(),
	}
}
