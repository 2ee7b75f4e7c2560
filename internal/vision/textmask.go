package vision

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"

	"github.com/MeKo-Tech/sif/internal/mempool"
)

// TextMasker produces a keep/suppress mask for text-like regions:
// 255 keeps a pixel, 0 suppresses it.
type TextMasker interface {
	Mask(gray *image.Gray) *image.Gray
}

// Sliding windows sized for typical printed text lines.
var textWindows = []struct{ w, h int }{
	{100, 30},
	{150, 40},
	{200, 50},
	{80, 25},
}

const (
	textEdgeLevel  = 100
	textMinDensity = 0.05
	textMaxDensity = 0.4
	textPeak       = 0.2
)

// heuristicTextMasker marks windows with medium edge density whose edge
// runs are predominantly horizontal.
type heuristicTextMasker struct {
	minConfidence float64
	maxCoverage   float64
}

func (m *heuristicTextMasker) Mask(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := fullMask(w, h)
	if w == 0 || h == 0 {
		return mask
	}

	edges := segment.Threshold(effect.Sobel(gray), textEdgeLevel)
	on := mempool.GetBool(w * h)
	defer mempool.PutBool(on)
	for y := range h {
		for x := range w {
			on[y*w+x] = edges.Pix[y*edges.Stride+x] != 0
		}
	}
	integral := integralCount(on, w, h)

	suppressed := 0
	for _, ws := range textWindows {
		if ws.w > w || ws.h > h {
			continue
		}
		stepX, stepY := ws.w/2, ws.h/2
		for y := 0; y <= h-ws.h; y += stepY {
			for x := 0; x <= w-ws.w; x += stepX {
				count := windowCount(integral, w, x, y, ws.w, ws.h)
				density := float64(count) / float64(ws.w*ws.h)
				if density < textMinDensity || density > textMaxDensity {
					continue
				}
				score := horizontalScore(on, w, x, y, ws.w, ws.h)
				confidence := score * (1 - math.Abs(density-textPeak)/textPeak)
				if confidence < m.minConfidence {
					continue
				}
				suppressed += suppressWindow(mask, x, y, ws.w, ws.h)
			}
		}
	}

	if float64(suppressed) > m.maxCoverage*float64(w*h) {
		return fullMask(w, h)
	}
	return mask
}

func fullMask(w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}
	return mask
}

// integralCount returns a (w+1)x(h+1) summed-area table of set pixels.
func integralCount(on []bool, w, h int) []int {
	s := make([]int, (w+1)*(h+1))
	for y := range h {
		rowSum := 0
		for x := range w {
			if on[y*w+x] {
				rowSum++
			}
			s[(y+1)*(w+1)+x+1] = s[y*(w+1)+x+1] + rowSum
		}
	}
	return s
}

func windowCount(s []int, w, x, y, ww, wh int) int {
	stride := w + 1
	return s[(y+wh)*stride+x+ww] - s[y*stride+x+ww] - s[(y+wh)*stride+x] + s[y*stride+x]
}

// horizontalScore is the share of horizontal edge runs among all runs.
func horizontalScore(on []bool, w, x, y, ww, wh int) float64 {
	hRuns, vRuns := 0, 0
	for row := y; row < y+wh; row++ {
		inRun := false
		for col := x; col < x+ww; col++ {
			if on[row*w+col] {
				if !inRun {
					hRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}
	for col := x; col < x+ww; col++ {
		inRun := false
		for row := y; row < y+wh; row++ {
			if on[row*w+col] {
				if !inRun {
					vRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}
	if hRuns+vRuns == 0 {
		return 0
	}
	return float64(hRuns) / float64(hRuns+vRuns)
}

// suppressWindow zeroes the window and returns how many pixels changed.
func suppressWindow(mask *image.Gray, x, y, w, h int) int {
	n := 0
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			i := row*mask.Stride + col
			if mask.Pix[i] != 0 {
				mask.Pix[i] = 0
				n++
			}
		}
	}
	return n
}
