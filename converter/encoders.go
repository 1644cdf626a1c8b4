package converter

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/Kagami/go-avif"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// EncodeFunc writes img to w in one target format at the given quality
// (1-100). Lossless formats interpret quality as compression effort.
type EncodeFunc func(w io.Writer, img image.Image, quality int) error

// encoders is the single registration point for raster target formats. Its
// keys must stay aligned with the option validator's image format allow-list
// (minus "svg", which only the vector lane emits).
var encoders = map[string]EncodeFunc{
	"jpg":  encodeJPEG,
	"jpeg": encodeJPEG,
	"png":  encodePNG,
	"webp": encodeWebP,
	"avif": encodeAVIF,
}

// IsRasterFormat reports whether the raster lane can emit the given target.
func IsRasterFormat(format string) bool {
	_, ok := encoders[format]
	return ok
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

func encodePNG(w io.Writer, img image.Image, _ int) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
}

func encodeAVIF(w io.Writer, img image.Image, quality int) error {
	// go-avif quality runs 0 (best) to 63 (worst).
	q := 63 - int(math.Round(float64(quality)*63/100))
	return avif.Encode(w, img, &avif.Options{Quality: q, Speed: 8})
}

// encodeToFile writes img to path in the requested format, removing the
// partial output on failure.
func encodeToFile(path string, img image.Image, format string, quality int) error {
	enc, ok := encoders[format]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output %s: %w", path, err)
	}

	if err := enc(f, img, quality); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("flush output %s: %w", path, err)
	}
	return nil
}
