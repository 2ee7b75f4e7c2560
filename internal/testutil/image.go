package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{160, 120}
	MediumSize = ImageSize{320, 240}
	LargeSize  = ImageSize{640, 480}
)

// Shape names understood by ShapeImage.
const (
	ShapeRectangle = "rectangle"
	ShapeCircle    = "circle"
	ShapeTriangle  = "triangle"
	ShapeStar      = "star"
	ShapeCross     = "cross"
)

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// ShapeImage draws one filled, logo-like shape centred on a plain background.
// The shape spans roughly 60% of the shorter side.
func ShapeImage(kind string, size ImageSize, fg, bg color.Color) *image.RGBA {
	img := CreateTestImage(size.Width, size.Height, bg)
	cx, cy := float64(size.Width)/2, float64(size.Height)/2
	r := 0.3 * math.Min(float64(size.Width), float64(size.Height))

	var poly [][2]float64
	switch kind {
	case ShapeRectangle:
		poly = [][2]float64{{cx - 1.4*r, cy - r}, {cx + 1.4*r, cy - r}, {cx + 1.4*r, cy + r}, {cx - 1.4*r, cy + r}}
	case ShapeTriangle:
		poly = regularPolygon(cx, cy, r, 3, -math.Pi/2)
	case ShapeStar:
		poly = starPolygon(cx, cy, r, r*0.45, 5)
	case ShapeCross:
		a, b := r, r/3
		poly = [][2]float64{
			{cx - b, cy - a}, {cx + b, cy - a}, {cx + b, cy - b}, {cx + a, cy - b},
			{cx + a, cy + b}, {cx + b, cy + b}, {cx + b, cy + a}, {cx - b, cy + a},
			{cx - b, cy + b}, {cx - a, cy + b}, {cx - a, cy - b}, {cx - b, cy - b},
		}
	default:
		poly = regularPolygon(cx, cy, r, 64, 0)
	}
	fillPolygon(img, poly, fg)
	return img
}

func regularPolygon(cx, cy, r float64, n int, phase float64) [][2]float64 {
	pts := make([][2]float64, n)
	for i := range n {
		a := phase + 2*math.Pi*float64(i)/float64(n)
		pts[i] = [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	return pts
}

func starPolygon(cx, cy, outer, inner float64, points int) [][2]float64 {
	pts := make([][2]float64, 0, 2*points)
	for i := range 2 * points {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := -math.Pi/2 + math.Pi*float64(i)/float64(points)
		pts = append(pts, [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	return pts
}

// fillPolygon fills pixels whose centres lie inside the polygon (even-odd).
func fillPolygon(img *image.RGBA, poly [][2]float64, col color.Color) {
	b := img.Bounds()
	n := len(poly)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		py := float64(y) + 0.5
		for x := b.Min.X; x < b.Max.X; x++ {
			px := float64(x) + 0.5
			inside := false
			for i, j := 0, n-1; i < n; j, i = i, i+1 {
				ai, aj := poly[i], poly[j]
				if (ai[1] > py) != (aj[1] > py) {
					xc := ai[0] + (py-ai[1])*(aj[0]-ai[0])/(aj[1]-ai[1])
					if px < xc {
						inside = !inside
					}
				}
			}
			if inside {
				img.Set(x, y, col)
			}
		}
	}
}

// TexturedImage renders a deterministic scene of overlapping rectangles in
// varied colours. Rich in corners, it produces stable keypoints.
func TexturedImage(size ImageSize, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := CreateTestImage(size.Width, size.Height, color.RGBA{200, 190, 170, 255})
	for range 60 {
		w := 8 + rng.Intn(size.Width/5)
		h := 8 + rng.Intn(size.Height/5)
		x := rng.Intn(size.Width - w)
		y := rng.Intn(size.Height - h)
		c := color.RGBA{
			R: uint8(rng.Intn(256)), //nolint:gosec // G115: bounded by Intn
			G: uint8(rng.Intn(256)), //nolint:gosec // G115: bounded by Intn
			B: uint8(rng.Intn(256)), //nolint:gosec // G115: bounded by Intn
			A: 255,
		}
		draw.Draw(img, image.Rect(x, y, x+w, y+h), &image.Uniform{c}, image.Point{}, draw.Src)
	}
	return img
}

// Shift translates img by (dx, dy), filling exposed pixels with fill.
func Shift(img image.Image, dx, dy int, fill color.Color) *image.RGBA {
	b := img.Bounds()
	out := CreateTestImage(b.Dx(), b.Dy(), fill)
	draw.Draw(out, image.Rect(dx, dy, dx+b.Dx(), dy+b.Dy()), img, b.Min, draw.Src)
	return out
}

// Rotate rotates img counter-clockwise by angle degrees, keeping its size.
func Rotate(img image.Image, angle float64, fill color.Color) *image.NRGBA {
	b := img.Bounds()
	rotated := imaging.Rotate(img, angle, fill)
	return imaging.CropCenter(rotated, b.Dx(), b.Dy())
}

// TextImage renders a few lines of text with the basic font.
func TextImage(size ImageSize, lines ...string) *image.RGBA {
	img := CreateTestImage(size.Width, size.Height, color.White)
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{color.Black}, Face: face}
	lineHeight := face.Metrics().Height.Ceil()
	startY := (size.Height - len(lines)*lineHeight) / 2
	for i, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		drawer.Dot = fixed.P((size.Width-w)/2, startY+(i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, WriteImage(img, path))
}

// WriteImage saves an image as PNG, creating parent directories (non-testing version).
func WriteImage(img image.Image, path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return file.Close()
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1.Size() != bounds2.Size() {
		return false
	}

	var totalDiff float64
	var pixelCount float64
	for y := range bounds1.Dy() {
		for x := range bounds1.Dx() {
			r1, g1, b1, a1 := img1.At(bounds1.Min.X+x, bounds1.Min.Y+y).RGBA()
			r2, g2, b2, a2 := img2.At(bounds2.Min.X+x, bounds2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (avgDiff / maxDiff) <= tolerance
}
