package converter

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported target format")
	ErrCorruptSource     = errors.New("source file could not be decoded")
)
