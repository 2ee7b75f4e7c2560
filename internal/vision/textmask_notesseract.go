//go:build !tesseract

package vision

import "errors"

// TesseractAvailable reports whether the OCR text-mask backend is compiled in.
const TesseractAvailable = false

// ErrTesseractUnavailable is returned when the binary was built without
// the tesseract build tag.
var ErrTesseractUnavailable = errors.New("built without tesseract support (use -tags tesseract)")

// NewTesseractMasker is unavailable in this build.
func NewTesseractMasker(string) (TextMasker, error) {
	return nil, ErrTesseractUnavailable
}
