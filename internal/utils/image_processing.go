package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToGray converts any image into an 8-bit grayscale image anchored at (0,0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		for x := range b.Dx() {
			out.Pix[y*out.Stride+x] = row[x*4]
		}
	}
	return out
}

// ToNRGBA returns the image as *image.NRGBA anchored at (0,0).
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// ResizeToHeight scales img so its height equals h, preserving aspect ratio.
func ResizeToHeight(img image.Image, h int) *image.NRGBA {
	if h <= 0 || img.Bounds().Dy() == h {
		return ToNRGBA(img)
	}
	return imaging.Resize(img, 0, h, imaging.Lanczos)
}

// ValidateImage rejects nil or zero-area images.
func ValidateImage(img image.Image) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &ImageProcessingError{
			Operation: "validate",
			Err:       fmt.Errorf("image has zero area: %dx%d", b.Dx(), b.Dy()),
		}
	}
	return nil
}
