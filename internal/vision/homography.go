package vision

import (
	"math"
	"math/rand"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// RANSACOptions controls robust homography estimation.
type RANSACOptions struct {
	MaxIterations int
	Confidence    float64
	Seed          int64
}

const minHomographyPairs = 4

// FitHomography estimates a homography mapping src[i] to dst[i] with
// RANSAC over minimal 4-point solutions, then refits on all inliers by
// least squares. The mask flags pairs whose reprojection error is within
// threshold. ok is false when fewer than four pairs are given or no
// non-degenerate model exists.
func FitHomography(src, dst []utils.Point, threshold float64, opts RANSACOptions) (Homography, []bool, bool) {
	n := len(src)
	if n < minHomographyPairs || len(dst) != n {
		return Homography{}, nil, false
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 2000
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = 0.995
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var (
		bestH     Homography
		bestMask  []bool
		bestCount int
	)
	maxIter := opts.MaxIterations
	for iter := 0; iter < maxIter; iter++ {
		idx := samplePairs(rng, n)
		var p, q [4]utils.Point
		for k, i := range idx {
			p[k], q[k] = src[i], dst[i]
		}
		if degenerateSample(p) || degenerateSample(q) {
			continue
		}
		h, ok := computeHomography(p, q)
		if !ok {
			continue
		}
		mask, count := inliers(h, src, dst, threshold)
		if count > bestCount {
			bestH, bestMask, bestCount = h, mask, count
			maxIter = min(maxIter, adaptiveIterations(count, n, opts.Confidence, opts.MaxIterations))
		}
	}
	if bestCount < minHomographyPairs {
		return Homography{}, nil, false
	}

	if h, ok := refineHomography(src, dst, bestMask); ok {
		if mask, count := inliers(h, src, dst, threshold); count >= bestCount {
			bestH, bestMask = h, mask
		}
	}
	return bestH, bestMask, true
}

// samplePairs draws four distinct indices.
func samplePairs(rng *rand.Rand, n int) [4]int {
	var idx [4]int
	for k := 0; k < 4; {
		c := rng.Intn(n)
		dup := false
		for j := range k {
			if idx[j] == c {
				dup = true
				break
			}
		}
		if !dup {
			idx[k] = c
			k++
		}
	}
	return idx
}

// degenerateSample rejects samples with three (nearly) collinear points.
func degenerateSample(p [4]utils.Point) bool {
	for i := range 4 {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				a, b, c := p[i], p[j], p[k]
				area := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
				if math.Abs(area) < 1e-6 {
					return true
				}
			}
		}
	}
	return false
}

func adaptiveIterations(inlierCount, n int, confidence float64, maxIter int) int {
	ratio := float64(inlierCount) / float64(n)
	good := math.Pow(ratio, 4)
	if good >= 1 {
		return 1
	}
	if good <= 0 {
		return maxIter
	}
	k := math.Log(1-confidence) / math.Log(1-good)
	if math.IsNaN(k) || k > float64(maxIter) {
		return maxIter
	}
	return int(math.Ceil(k))
}

func inliers(h Homography, src, dst []utils.Point, threshold float64) ([]bool, int) {
	mask := make([]bool, len(src))
	count := 0
	t2 := threshold * threshold
	for i := range src {
		x, y := applyHomography(h, src[i].X, src[i].Y)
		dx, dy := x-dst[i].X, y-dst[i].Y
		if dx*dx+dy*dy <= t2 {
			mask[i] = true
			count++
		}
	}
	return mask, count
}

// computeHomography computes H mapping p[i] -> q[i] from exactly four pairs.
func computeHomography(p, q [4]utils.Point) (Homography, bool) {
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		r := 2 * i
		fillRows(&a, &b, r, p[i], q[i])
	}
	h, ok := solve8x8(a, b)
	if !ok {
		return Homography{}, false
	}
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// fillRows writes the two DLT equations of one correspondence with h22 = 1:
//
//	x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
//	y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
func fillRows(a *[8][8]float64, b *[8]float64, r int, p, q utils.Point) {
	X, Y := p.X, p.Y
	x, y := q.X, q.Y
	a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
	b[r] = x
	a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
	b[r+1] = y
}

// refineHomography solves the normal equations of the DLT system over
// every inlier pair.
func refineHomography(src, dst []utils.Point, mask []bool) (Homography, bool) {
	var ata [8][8]float64
	var atb [8]float64
	count := 0
	for i := range src {
		if !mask[i] {
			continue
		}
		count++
		var rows [8][8]float64
		var rhs [8]float64
		fillRows(&rows, &rhs, 0, src[i], dst[i])
		for r := range 2 {
			for j := range 8 {
				atb[j] += rows[r][j] * rhs[r]
				for k := range 8 {
					ata[j][k] += rows[r][j] * rows[r][k]
				}
			}
		}
	}
	if count <= minHomographyPairs {
		return Homography{}, false
	}
	h, ok := solve8x8(ata, atb)
	if !ok {
		return Homography{}, false
	}
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, false
		}
	}
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < 8; r++ {
			if v := math.Abs(a[r][col]); v > maxAbs {
				maxAbs, pivot = v, r
			}
		}
		if maxAbs < 1e-12 {
			return [8]float64{}, false
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}

func applyHomography(h Homography, x, y float64) (float64, float64) {
	denom := h[6]*x + h[7]*y + h[8]
	if denom == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / denom, (h[3]*x + h[4]*y + h[5]) / denom
}
