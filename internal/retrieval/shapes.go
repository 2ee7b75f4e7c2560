package retrieval

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/sif/internal/vision"
)

// SelectTopContours keeps contours with area above MinArea or perimeter above
// MinPerimeter and returns the TopContours longest by perimeter.
func SelectTopContours(p vision.Primitives, contours []vision.Contour, cfg LogoConfig) []vision.Contour {
	type scored struct {
		c         vision.Contour
		perimeter float64
	}
	var kept []scored
	for _, c := range contours {
		area, perimeter := p.ContourArea(c), p.ArcLength(c)
		if area > cfg.MinArea || perimeter > cfg.MinPerimeter {
			kept = append(kept, scored{c: c, perimeter: perimeter})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].perimeter > kept[j].perimeter
	})
	if len(kept) > cfg.TopContours {
		kept = kept[:cfg.TopContours]
	}
	out := make([]vision.Contour, len(kept))
	for i, s := range kept {
		out[i] = s.c
	}
	return out
}

// Complexity is the vertex count of the closed polygon approximation with a
// tolerance of epsilon times the contour perimeter.
func Complexity(p vision.Primitives, c vision.Contour, epsilon float64) int {
	return p.ApproxVertexCount(c, epsilon*p.ArcLength(c))
}

// complexityGate keeps candidate contours whose complexity is within
// tolerance of at least one query contour.
func complexityGate(p vision.Primitives, query []queryShape, candidates []vision.Contour, cfg LogoConfig) []vision.Contour {
	var kept []vision.Contour
	for _, c := range candidates {
		cc := Complexity(p, c, cfg.ApproxEpsilon)
		for _, q := range query {
			if abs(cc-q.complexity) <= cfg.ComplexityTolerance {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}

// HuSimilarity compares two Hu vectors after the -sign(h)·log10|h|
// transform: exp(-euclidean distance).
func HuSimilarity(a, b [7]float64) float64 {
	d := 0.0
	for i := range a {
		diff := logHu(a[i]) - logHu(b[i])
		d += diff * diff
	}
	return math.Exp(-math.Sqrt(d))
}

func logHu(h float64) float64 {
	s := 0.0
	switch {
	case h > 0:
		s = 1
	case h < 0:
		s = -1
	}
	return -s * math.Log10(math.Abs(h)+1e-12)
}

// ShapeSimilarity maps a shape match distance to (0, 1].
func ShapeSimilarity(distance float64) float64 {
	return math.Exp(-distance)
}

// BestShapeMatch returns the maximum Hu similarity and the maximum shape
// similarity over all query/candidate pairs. The two maxima are taken
// independently.
func BestShapeMatch(p vision.Primitives, query, candidates []vision.Contour) (hu, shape float64) {
	for _, q := range query {
		qh := p.HuMoments(q)
		for _, c := range candidates {
			hu = max(hu, HuSimilarity(qh, p.HuMoments(c)))
			shape = max(shape, ShapeSimilarity(p.MatchShapes(q, c)))
		}
	}
	return hu, shape
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
