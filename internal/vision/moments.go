package vision

import (
	"math"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// Moments holds raw spatial moments of a polygon up to order three.
type Moments struct {
	M00, M10, M01, M20, M11, M02, M30, M21, M12, M03 float64
}

// PolygonMoments integrates raw moments over the polygon interior using
// Green's theorem. Orientation of the vertex order does not matter.
func PolygonMoments(pts []utils.Point) Moments {
	var m Moments
	n := len(pts)
	if n < 3 {
		return m
	}
	for i := range n {
		p, q := pts[i], pts[(i+1)%n]
		xi, yi, xj, yj := p.X, p.Y, q.X, q.Y
		a := xi*yj - xj*yi
		xi2, xj2 := xi*xi, xj*xj
		yi2, yj2 := yi*yi, yj*yj

		m.M00 += a
		m.M10 += a * (xi + xj)
		m.M01 += a * (yi + yj)
		m.M20 += a * (xi2 + xi*xj + xj2)
		m.M11 += a * (xi*(2*yi+yj) + xj*(yi+2*yj))
		m.M02 += a * (yi2 + yi*yj + yj2)
		m.M30 += a * (xi + xj) * (xi2 + xj2)
		m.M21 += a * (xi2*(3*yi+yj) + 2*xi*xj*(yi+yj) + xj2*(yi+3*yj))
		m.M12 += a * (yi2*(3*xi+xj) + 2*yi*yj*(xi+xj) + yj2*(xi+3*xj))
		m.M03 += a * (yi + yj) * (yi2 + yj2)
	}
	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6
	m.M20 /= 12
	m.M11 /= 24
	m.M02 /= 12
	m.M30 /= 20
	m.M21 /= 60
	m.M12 /= 60
	m.M03 /= 20

	if m.M00 < 0 {
		m = Moments{
			-m.M00, -m.M10, -m.M01, -m.M20, -m.M11,
			-m.M02, -m.M30, -m.M21, -m.M12, -m.M03,
		}
	}
	return m
}

// HuMoments returns the seven Hu invariants of a contour polygon. A
// degenerate contour with zero area yields the zero vector.
func HuMoments(c Contour) [7]float64 {
	var hu [7]float64
	m := PolygonMoments(c)
	if m.M00 == 0 {
		return hu
	}

	cx, cy := m.M10/m.M00, m.M01/m.M00
	mu20 := m.M20 - cx*m.M10
	mu11 := m.M11 - cx*m.M01
	mu02 := m.M02 - cy*m.M01
	mu30 := m.M30 - 3*cx*m.M20 + 2*cx*cx*m.M10
	mu21 := m.M21 - 2*cx*m.M11 - cy*m.M20 + 2*cx*cx*m.M01
	mu12 := m.M12 - 2*cy*m.M11 - cx*m.M02 + 2*cy*cy*m.M10
	mu03 := m.M03 - 3*cy*m.M02 + 2*cy*cy*m.M01

	s2 := 1 / (m.M00 * m.M00)
	s3 := s2 / math.Sqrt(math.Abs(m.M00))
	n20, n11, n02 := mu20*s2, mu11*s2, mu02*s2
	n30, n21, n12, n03 := mu30*s3, mu21*s3, mu12*s3, mu03*s3

	t0 := n30 + n12
	t1 := n21 + n03
	q0 := n30 - 3*n12
	q1 := 3*n21 - n03

	hu[0] = n20 + n02
	hu[1] = (n20-n02)*(n20-n02) + 4*n11*n11
	hu[2] = q0*q0 + q1*q1
	hu[3] = t0*t0 + t1*t1
	hu[4] = q0*t0*(t0*t0-3*t1*t1) + q1*t1*(3*t0*t0-t1*t1)
	hu[5] = (n20-n02)*(t0*t0-t1*t1) + 4*n11*t0*t1
	hu[6] = q1*t0*(t0*t0-3*t1*t1) - q0*t1*(3*t0*t0-t1*t1)
	return hu
}

const huEpsilon = 1e-5

// MatchHu is the I1 contour-matching distance over log-scaled Hu moments:
// sum |1/mA - 1/mB| with m = sign(h)·log10|h|. Components too close to zero
// on either side are skipped.
func MatchHu(a, b [7]float64) float64 {
	var d float64
	for i := range 7 {
		ama, amb := math.Abs(a[i]), math.Abs(b[i])
		if ama <= huEpsilon || amb <= huEpsilon {
			continue
		}
		ma := sign(a[i]) * math.Log10(ama)
		mb := sign(b[i]) * math.Log10(amb)
		if ma == 0 || mb == 0 {
			continue
		}
		d += math.Abs(-1/ma + 1/mb)
	}
	return d
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
