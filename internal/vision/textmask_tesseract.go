//go:build tesseract

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractAvailable reports whether the OCR text-mask backend is compiled in.
const TesseractAvailable = true

// tesseractMasker suppresses word boxes reported by Tesseract.
type tesseractMasker struct {
	language string
	mu       sync.Mutex
	client   *gosseract.Client
}

// NewTesseractMasker creates an OCR-backed text masker.
func NewTesseractMasker(language string) (TextMasker, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set tesseract language: %w", err)
	}
	return &tesseractMasker{language: language, client: client}, nil
}

func (m *tesseractMasker) Mask(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	mask := fullMask(b.Dx(), b.Dy())

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return mask
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return mask
	}
	boxes, err := m.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return mask
	}
	for _, box := range boxes {
		r := box.Box.Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
		if r.Empty() {
			continue
		}
		suppressWindow(mask, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	}
	return mask
}
