package vision

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"

	"github.com/MeKo-Tech/sif/internal/mempool"
)

const (
	tan22 = 0.41421356237309503 // tan(22.5°)
	tan67 = 2.414213562373095   // tan(67.5°)
)

// Canny returns a binary edge map (255 = edge) computed with Gaussian
// smoothing, Sobel gradients (L1 magnitude), non-maximum suppression and
// hysteresis thresholding. Thresholds are in raw Sobel units, matching
// the 0..255 intensity scale of the input.
func Canny(gray *image.Gray, sigma, low, high float64) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}
	if low > high {
		low, high = high, low
	}

	smooth := smoothed(gray, sigma)
	gx, gy, mag := sobel(smooth, w, h)
	thin := suppressNonMaxima(gx, gy, mag, w, h)
	mempool.PutFloat64Multiple([][]float64{smooth, gx, gy, mag})
	hysteresis(thin, w, h, low, high, out)
	mempool.PutFloat64(thin)
	return out
}

// smoothed returns the blurred intensities as a flat float slice.
func smoothed(gray *image.Gray, sigma float64) []float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	vals := make([]float64, w*h)
	if sigma <= 0 {
		for y := range h {
			for x := range w {
				vals[y*w+x] = float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return vals
	}
	blurred := blur.Gaussian(gray, sigma)
	bb := blurred.Bounds()
	for y := range h {
		row := blurred.Pix[y*blurred.Stride:]
		for x := range w {
			if x < bb.Dx() && y < bb.Dy() {
				vals[y*w+x] = float64(row[x*4])
			}
		}
	}
	return vals
}

// sobel computes 3x3 Sobel derivatives and their L1 magnitude.
// Border pixels are left at zero. The buffers come from mempool.
func sobel(v []float64, w, h int) ([]float64, []float64, []float64) {
	bufs := mempool.GetFloat64Multiple([]int{w * h, w * h, w * h})
	gx, gy, mag := bufs[0], bufs[1], bufs[2]
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			tl, tc, tr := v[i-w-1], v[i-w], v[i-w+1]
			ml, mr := v[i-1], v[i+1]
			bl, bc, br := v[i+w-1], v[i+w], v[i+w+1]
			sx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			sy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			gx[i], gy[i] = sx, sy
			mag[i] = math.Abs(sx) + math.Abs(sy)
		}
	}
	return gx, gy, mag
}

// suppressNonMaxima keeps magnitudes that are local maxima along the
// quantised gradient direction; all others become zero.
func suppressNonMaxima(gx, gy, mag []float64, w, h int) []float64 {
	out := mempool.GetFloat64(w * h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m == 0 {
				continue
			}
			ax, ay := math.Abs(gx[i]), math.Abs(gy[i])
			var n1, n2 float64
			switch {
			case ay <= ax*tan22:
				n1, n2 = mag[i-1], mag[i+1]
			case ay >= ax*tan67:
				n1, n2 = mag[i-w], mag[i+w]
			case gx[i]*gy[i] > 0:
				n1, n2 = mag[i-w-1], mag[i+w+1]
			default:
				n1, n2 = mag[i-w+1], mag[i+w-1]
			}
			if m > n1 && m >= n2 {
				out[i] = m
			}
		}
	}
	return out
}

// hysteresis marks strong pixels (> high) and grows them through weak
// pixels (> low) along 8-connected paths.
func hysteresis(thin []float64, w, h int, low, high float64, out *image.Gray) {
	stack := make([]int, 0, 256)
	for i, m := range thin {
		if m > high && out.Pix[(i/w)*out.Stride+i%w] == 0 {
			out.Pix[(i/w)*out.Stride+i%w] = 255
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cx, cy := c%w, c/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if thin[ni] > low && out.Pix[ny*out.Stride+nx] == 0 {
						out.Pix[ny*out.Stride+nx] = 255
						stack = append(stack, ni)
					}
				}
			}
		}
	}
}
