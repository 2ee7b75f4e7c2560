package utils

import (
	"math"
	"sort"
)

// PolygonArea returns the unsigned area of a closed polygon (shoelace formula).
func PolygonArea(pts []Point) float64 {
	return math.Abs(SignedArea(pts))
}

// SignedArea returns the signed shoelace area; positive for CCW order in a
// y-up frame, negative for CW.
func SignedArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	s := 0.0
	for i := range n {
		a := pts[i]
		b := pts[(i+1)%n]
		s += a.X*b.Y - b.X*a.Y
	}
	return s / 2
}

// PolygonPerimeter returns the length of the closed polyline through pts.
func PolygonPerimeter(pts []Point) float64 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	per := 0.0
	for i := range n {
		a := pts[i]
		b := pts[(i+1)%n]
		per += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return per
}

// SimplifyPolygon reduces the number of points in a polyline using the
// Douglas–Peucker algorithm with tolerance epsilon. Endpoints are kept.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	keep[0] = true
	keep[len(pts)-1] = true
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// SimplifyClosed approximates a closed contour with Douglas–Peucker. The
// contour is split at its first point and the point farthest from it, each
// half is simplified as an open chain, and the halves are joined again so the
// result does not depend on an arbitrary seam.
func SimplifyClosed(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	far := 0
	best := -1.0
	for i := 1; i < n; i++ {
		d := math.Hypot(pts[i].X-pts[0].X, pts[i].Y-pts[0].Y)
		if d > best {
			best = d
			far = i
		}
	}
	if best == 0 {
		return []Point{pts[0]}
	}
	first := SimplifyPolygon(pts[:far+1], epsilon)
	second := make([]Point, 0, n-far+1)
	second = append(second, pts[far:]...)
	second = append(second, pts[0])
	second = SimplifyPolygon(second, epsilon)
	out := make([]Point, 0, len(first)+len(second))
	out = append(out, first...)
	// skip the shared far point and the closing duplicate of pts[0]
	out = append(out, second[1:len(second)-1]...)
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in CCW order without
// duplicating the first point at the end. Collinear points are dropped.
func ConvexHull(pts []Point) []Point {
	if len(pts) <= 1 {
		return append([]Point(nil), pts...)
	}
	p := make([]Point, len(pts))
	copy(p, pts)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	p = removeDuplicatePoints(p)
	if len(p) <= 2 {
		return p
	}
	lower := halfHull(p, 0, len(p), 1)
	upper := halfHull(p, len(p)-1, -1, -1)
	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func halfHull(p []Point, from, to, step int) []Point {
	h := make([]Point, 0, len(p))
	for i := from; i != to; i += step {
		pt := p[i]
		for len(h) >= 2 && cross(h[len(h)-2], h[len(h)-1], pt) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, pt)
	}
	return h
}

func removeDuplicatePoints(p []Point) []Point {
	q := p[:0]
	for i, pt := range p {
		if i == 0 || pt != q[len(q)-1] {
			q = append(q, pt)
		}
	}
	return q
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
