package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/testutil"
	"github.com/MeKo-Tech/sif/internal/utils"
)

func grayRect(w, h int, r image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return g
}

func countOn(g *image.Gray) int {
	n := 0
	for _, v := range g.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

func TestCannyFindsRectangleBoundary(t *testing.T) {
	g := grayRect(80, 60, image.Rect(20, 15, 60, 45))
	edges := Canny(g, 1.4, 80, 160)

	require.Positive(t, countOn(edges))
	assert.Zero(t, edges.GrayAt(40, 30).Y, "flat interior has no edges")
	assert.Zero(t, edges.GrayAt(5, 5).Y, "flat background has no edges")

	near := false
	for dx := -2; dx <= 2; dx++ {
		if edges.GrayAt(20+dx, 30).Y != 0 {
			near = true
		}
	}
	assert.True(t, near, "left side of the rectangle produces an edge")
}

func TestCannyFlatAndTinyImages(t *testing.T) {
	assert.Zero(t, countOn(Canny(image.NewGray(image.Rect(0, 0, 30, 30)), 1.4, 80, 160)))
	assert.Zero(t, countOn(Canny(image.NewGray(image.Rect(0, 0, 2, 2)), 1.4, 80, 160)))
}

func TestExternalContoursOfShape(t *testing.T) {
	img := testutil.ShapeImage(testutil.ShapeRectangle, testutil.SmallSize, color.White, color.Black)
	d := NewDefault(DefaultOptions())
	edges := d.ExtractEdges(utils.ToGray(img), 80, 160)
	contours := d.ExtractContours(edges)
	require.NotEmpty(t, contours)

	largest := 0.0
	for _, c := range contours {
		largest = max(largest, d.ContourArea(c))
	}
	// Rectangle is 2.8r x 2r with r = 0.3*120.
	assert.InDelta(t, 100.8*72, largest, 100.8*72*0.15)
}
