package vision

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// ColorHistogram builds a bins³ HSV histogram (H over [0,360), S and V over
// [0,1]) and L2-normalises it. Index order is h-major: (h*bins+s)*bins+v.
func ColorHistogram(img image.Image, bins int) Histogram {
	if img == nil || bins <= 0 {
		return nil
	}
	src := utils.ToNRGBA(img)
	b := src.Bounds()
	hist := make(Histogram, bins*bins*bins)

	bin := func(v, span float64) int {
		i := int(v / span * float64(bins))
		return max(0, min(bins-1, i))
	}

	for y := range b.Dy() {
		row := src.Pix[y*src.Stride:]
		for x := range b.Dx() {
			p := row[x*4:]
			c := colorful.Color{
				R: float64(p[0]) / 255,
				G: float64(p[1]) / 255,
				B: float64(p[2]) / 255,
			}
			h, s, v := c.Hsv()
			hist[(bin(h, 360)*bins+bin(s, 1))*bins+bin(v, 1)]++
		}
	}

	var norm float64
	for _, v := range hist {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range hist {
			hist[i] /= norm
		}
	}
	return hist
}

// HistogramCorrelation is the Pearson correlation of two histograms, in
// [-1,1]. When either side has zero variance the result is 1 for identical
// histograms and 0 otherwise. Histograms of different length score 0.
func HistogramCorrelation(a, b Histogram) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	var sa, sb float64
	for i := range n {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/float64(n), sb/float64(n)

	var num, da, db float64
	for i := range n {
		xa, xb := a[i]-ma, b[i]-mb
		num += xa * xb
		da += xa * xa
		db += xb * xb
	}
	if da == 0 || db == 0 {
		if identical(a, b) {
			return 1
		}
		return 0
	}
	r := num / math.Sqrt(da*db)
	return math.Max(-1, math.Min(1, r))
}

func identical(a, b Histogram) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
