package retrieval

import (
	"image"
	"math"

	"github.com/MeKo-Tech/sif/internal/utils"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// RatioTest keeps the nearest neighbour of each pair when it is strictly
// closer than ratio times the second nearest. Pairs without a second
// neighbour never pass.
func RatioTest(pairs []vision.MatchPair, ratio float64) []vision.Match {
	var good []vision.Match
	for _, p := range pairs {
		if p.HasSecond && p.Best.Distance < ratio*p.Second.Distance {
			good = append(good, p.Best)
		}
	}
	return good
}

// Verification is the outcome of geometric verification.
type Verification struct {
	Inliers  []vision.Match
	Coverage float64
}

// VerifyGeometry fits a homography from query to candidate points and
// reports the consistent matches and the fraction of the query image their
// convex hull covers.
func VerifyGeometry(
	p vision.Primitives,
	cfg ObjectConfig,
	queryKps, candKps []vision.KeyPoint,
	good []vision.Match,
	querySize image.Point,
) Verification {
	if len(good) < cfg.MinMatches {
		return Verification{}
	}
	src := make([]utils.Point, len(good))
	dst := make([]utils.Point, len(good))
	for i, m := range good {
		src[i] = queryKps[m.QueryIdx].Point()
		dst[i] = candKps[m.TrainIdx].Point()
	}
	_, mask, ok := p.FitHomography(src, dst, cfg.RANSACThreshold)
	if !ok {
		return Verification{}
	}

	var v Verification
	var pts []utils.Point
	for i, in := range mask {
		if in && i < len(good) {
			v.Inliers = append(v.Inliers, good[i])
			pts = append(pts, src[i])
		}
	}
	if len(v.Inliers) < cfg.MinHullPoints {
		return v
	}
	area := float64(querySize.X) * float64(querySize.Y)
	if area > 0 {
		v.Coverage = p.PolygonArea(p.ConvexHull(pts)) / area
	}
	return v
}

// SpatialConsistency rewards matches whose displacement directions agree:
// max(0, 1 - stddev of the displacement angles). Fewer than three matches
// score 0.
func SpatialConsistency(queryKps, candKps []vision.KeyPoint, matches []vision.Match) float64 {
	if len(matches) < 3 {
		return 0
	}
	angles := make([]float64, len(matches))
	mean := 0.0
	for i, m := range matches {
		d := candKps[m.TrainIdx].Point().Sub(queryKps[m.QueryIdx].Point())
		angles[i] = math.Atan2(d.Y, d.X)
		mean += angles[i]
	}
	mean /= float64(len(angles))
	variance := 0.0
	for _, a := range angles {
		variance += (a - mean) * (a - mean)
	}
	std := math.Sqrt(variance / float64(len(angles)))
	return max(0, 1-std)
}

// ShapeCompactness is the isoperimetric quotient 4πA/P² of the convex hull
// of the inlier candidate points, capped at 1. It is 0 below minInliers or
// for a degenerate hull.
func ShapeCompactness(p vision.Primitives, candKps []vision.KeyPoint, inliers []vision.Match, minInliers int) float64 {
	if len(inliers) < minInliers || len(inliers) == 0 {
		return 0
	}
	pts := make([]utils.Point, len(inliers))
	for i, m := range inliers {
		pts[i] = candKps[m.TrainIdx].Point()
	}
	hull := p.ConvexHull(pts)
	perimeter := p.PolygonPerimeter(hull)
	if perimeter == 0 {
		return 0
	}
	return min(4*math.Pi*p.PolygonArea(hull)/(perimeter*perimeter), 1)
}
