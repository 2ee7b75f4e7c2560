package vision

import (
	"image"
	"math"
	"math/rand"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/sif/internal/mempool"
	"github.com/MeKo-Tech/sif/internal/utils"
)

const (
	patchRadius   = 15
	patchSize     = 2*patchRadius + 1
	featureBorder = patchRadius + 1
	harrisK       = 0.04
	briefBits     = 256
	briefSeed     = 0x5eed
	siftWidth     = 4
	siftBins      = 8
	siftHalf      = 8
	siftClip      = 0.2
	descBlurSigma = 2.0
)

// FAST-9 sampling circle of radius 3.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type briefPair struct {
	x1, y1, x2, y2 float64
}

// briefPattern generates the fixed sampling pairs of the binary descriptor.
// The generator is seeded so every process produces identical descriptors.
func briefPattern() []briefPair {
	rng := rand.New(rand.NewSource(briefSeed))
	sigma := float64(patchSize) / 5
	draw := func() float64 {
		v := rng.NormFloat64() * sigma
		return math.Max(-patchRadius, math.Min(patchRadius, math.Round(v)))
	}
	pairs := make([]briefPair, briefBits)
	for i := range pairs {
		pairs[i] = briefPair{x1: draw(), y1: draw(), x2: draw(), y2: draw()}
	}
	return pairs
}

// pyramidLevel is one scale of the detection pyramid.
type pyramidLevel struct {
	img    *image.Gray
	smooth []float64
	scale  float64
	w, h   int
}

func (l pyramidLevel) at(x, y int) float64 {
	x = max(0, min(l.w-1, x))
	y = max(0, min(l.h-1, y))
	return l.smooth[y*l.w+x]
}

type corner struct {
	x, y     int
	level    int
	response float64
}

func (d *Default) detectAndDescribe(gray *image.Gray, mask *image.Gray, method Method) ([]KeyPoint, *Descriptors) {
	if gray == nil {
		return nil, nil
	}
	levels := d.pyramid(utils.ToGray(gray))
	if len(levels) == 0 {
		return nil, nil
	}

	var corners []corner
	for li, lv := range levels {
		corners = append(corners, d.detectLevel(lv, li, mask)...)
	}
	if len(corners) == 0 {
		return nil, nil
	}

	sort.Slice(corners, func(i, j int) bool {
		a, b := corners[i], corners[j]
		if a.response != b.response {
			return a.response > b.response
		}
		if a.level != b.level {
			return a.level < b.level
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.x < b.x
	})
	limit := d.opts.ORBFeatures
	if method == SIFT {
		limit = d.opts.SIFTFeatures
	}
	if limit > 0 && len(corners) > limit {
		corners = corners[:limit]
	}

	kps := make([]KeyPoint, len(corners))
	desc := &Descriptors{Method: method}
	for i, c := range corners {
		lv := levels[c.level]
		angle := intensityCentroidAngle(lv.img, c.x, c.y)
		kps[i] = KeyPoint{
			X:        float64(c.x) * lv.scale,
			Y:        float64(c.y) * lv.scale,
			Angle:    angle,
			Size:     patchSize * lv.scale,
			Response: c.response,
		}
		if method == ORB {
			desc.Binary = append(desc.Binary, d.briefDescriptor(lv, c.x, c.y, angle))
		} else {
			desc.Float = append(desc.Float, siftDescriptor(lv, c.x, c.y, angle))
		}
	}
	return kps, desc
}

// pyramid builds the scale space. Levels too small to hold a full patch
// are not generated.
func (d *Default) pyramid(gray *image.Gray) []pyramidLevel {
	minDim := 2*featureBorder + 1
	b := gray.Bounds()
	var out []pyramidLevel
	scale := 1.0
	for range d.opts.PyramidLevels {
		w := int(math.Round(float64(b.Dx()) / scale))
		h := int(math.Round(float64(b.Dy()) / scale))
		if w < minDim || h < minDim {
			break
		}
		img := gray
		if scale != 1 {
			img = utils.ToGray(imaging.Resize(gray, w, h, imaging.Linear))
		}
		out = append(out, pyramidLevel{
			img:    img,
			smooth: smoothed(img, descBlurSigma),
			scale:  scale,
			w:      w,
			h:      h,
		})
		scale *= d.opts.ScaleFactor
	}
	return out
}

// detectLevel runs the segment test, scores survivors with the Harris
// response and keeps 3x3 local maxima.
func (d *Default) detectLevel(lv pyramidLevel, li int, mask *image.Gray) []corner {
	w, h := lv.w, lv.h
	resp := mempool.GetFloat64(w * h)
	defer mempool.PutFloat64(resp)
	for i := range resp {
		resp[i] = math.Inf(-1)
	}
	var found []corner
	px, stride := lv.img.Pix, lv.img.Stride
	for y := featureBorder; y < h-featureBorder; y++ {
		for x := featureBorder; x < w-featureBorder; x++ {
			if !maskAllows(mask, float64(x)*lv.scale, float64(y)*lv.scale) {
				continue
			}
			if !isFASTCorner(px, stride, x, y, d.opts.FASTThreshold) {
				continue
			}
			r := harrisResponse(px, stride, x, y)
			resp[y*w+x] = r
			found = append(found, corner{x: x, y: y, level: li, response: r})
		}
	}

	kept := found[:0]
	for _, c := range found {
		if isLocalMax(resp, w, c.x, c.y) {
			kept = append(kept, c)
		}
	}
	return kept
}

func maskAllows(mask *image.Gray, x, y float64) bool {
	if mask == nil {
		return true
	}
	b := mask.Bounds()
	ix, iy := b.Min.X+int(x), b.Min.Y+int(y)
	if ix < b.Min.X || iy < b.Min.Y || ix >= b.Max.X || iy >= b.Max.Y {
		return true
	}
	return mask.GrayAt(ix, iy).Y != 0
}

// isFASTCorner reports whether at least 9 contiguous circle pixels are all
// brighter or all darker than the centre by more than t.
func isFASTCorner(px []uint8, stride, x, y, t int) bool {
	c := int(px[y*stride+x])
	var state [16]int8
	bright, dark := 0, 0
	for k := 0; k < 16; k += 4 {
		v := int(px[(y+fastCircle[k][1])*stride+x+fastCircle[k][0]])
		if v > c+t {
			bright++
		} else if v < c-t {
			dark++
		}
	}
	if bright < 2 && dark < 2 {
		return false
	}
	for k, off := range fastCircle {
		v := int(px[(y+off[1])*stride+x+off[0]])
		switch {
		case v > c+t:
			state[k] = 1
		case v < c-t:
			state[k] = -1
		}
	}
	run := 0
	var prev int8
	for k := range 16 + 9 {
		s := state[k%16]
		if s != 0 && s == prev {
			run++
		} else if s != 0 {
			run = 1
		} else {
			run = 0
		}
		prev = s
		if run >= 9 {
			return true
		}
	}
	return false
}

// harrisResponse evaluates det(M) - k·trace(M)² over a 7x7 window.
func harrisResponse(px []uint8, stride, x, y int) float64 {
	var a, b, c float64
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			i := (y+dy)*stride + x + dx
			ix := float64(px[i+1]) - float64(px[i-1])
			iy := float64(px[i+stride]) - float64(px[i-stride])
			a += ix * ix
			b += iy * iy
			c += ix * iy
		}
	}
	return a*b - c*c - harrisK*(a+b)*(a+b)
}

// isLocalMax keeps the strongest corner of each 3x3 neighbourhood; equal
// responses resolve to the first in raster order.
func isLocalMax(resp []float64, w, x, y int) bool {
	i := y*w + x
	r := resp[i]
	for k := range 8 {
		ni := (y+ndy[k])*w + x + ndx[k]
		nr := resp[ni]
		if nr > r || (nr == r && ni < i) {
			return false
		}
	}
	return true
}

// intensityCentroidAngle orients a patch along the vector from its centre
// to its intensity centroid.
func intensityCentroidAngle(img *image.Gray, x, y int) float64 {
	var m01, m10 float64
	r2 := patchRadius * patchRadius
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			v := float64(img.Pix[(y+dy)*img.Stride+x+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

// briefDescriptor computes the rotated binary test string.
func (d *Default) briefDescriptor(lv pyramidLevel, x, y int, angle float64) []byte {
	sin, cos := math.Sincos(angle)
	out := make([]byte, briefBits/8)
	for j, p := range d.pattern {
		ax := x + int(math.Round(cos*p.x1-sin*p.y1))
		ay := y + int(math.Round(sin*p.x1+cos*p.y1))
		bx := x + int(math.Round(cos*p.x2-sin*p.y2))
		by := y + int(math.Round(sin*p.x2+cos*p.y2))
		if lv.at(ax, ay) < lv.at(bx, by) {
			out[j/8] |= 1 << (j % 8)
		}
	}
	return out
}

// siftDescriptor builds a 4x4x8 gradient-orientation histogram over a
// 16x16 window rotated to the keypoint angle.
func siftDescriptor(lv pyramidLevel, x, y int, angle float64) []float32 {
	var hist [siftWidth * siftWidth * siftBins]float64
	sin, cos := math.Sincos(angle)
	sigma := float64(siftHalf)
	cellSize := float64(2*siftHalf) / siftWidth

	for v := -siftHalf; v < siftHalf; v++ {
		for u := -siftHalf; u < siftHalf; u++ {
			fu, fv := float64(u)+0.5, float64(v)+0.5
			sx := x + int(math.Round(cos*fu-sin*fv))
			sy := y + int(math.Round(sin*fu+cos*fv))
			gx := lv.at(sx+1, sy) - lv.at(sx-1, sy)
			gy := lv.at(sx, sy+1) - lv.at(sx, sy-1)
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			theta := math.Atan2(gy, gx) - angle
			theta = math.Mod(theta, 2*math.Pi)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			weight := math.Exp(-(fu*fu + fv*fv) / (2 * sigma * sigma))

			cx := int((fu + siftHalf) / cellSize)
			cy := int((fv + siftHalf) / cellSize)
			cx = max(0, min(siftWidth-1, cx))
			cy = max(0, min(siftWidth-1, cy))

			obin := theta / (2 * math.Pi) * siftBins
			o0 := int(obin) % siftBins
			o1 := (o0 + 1) % siftBins
			frac := obin - math.Floor(obin)
			base := (cy*siftWidth + cx) * siftBins
			hist[base+o0] += mag * weight * (1 - frac)
			hist[base+o1] += mag * weight * frac
		}
	}

	normalize := func() float64 {
		var n float64
		for _, h := range hist {
			n += h * h
		}
		return math.Sqrt(n)
	}
	if n := normalize(); n > 0 {
		for i := range hist {
			hist[i] = math.Min(hist[i]/n, siftClip)
		}
		if n2 := normalize(); n2 > 0 {
			for i := range hist {
				hist[i] /= n2
			}
		}
	}

	out := make([]float32, len(hist))
	for i, h := range hist {
		out[i] = float32(h)
	}
	return out
}
