package retrieval

import (
	"image"

	"github.com/MeKo-Tech/sif/internal/vision"
)

// QueryStats are the cheap statistics the router decides from.
type QueryStats struct {
	Keypoints int     `json:"keypoints"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Density   float64 `json:"density"`
	Aspect    float64 `json:"aspect"`
	Fill      float64 `json:"fill"`
}

// ComputeStats derives routing statistics. Fill is the area of the single
// largest contour over the image area, 0 when no contours are given.
func ComputeStats(p vision.Primitives, kpCount int, size image.Point, contours []vision.Contour) QueryStats {
	s := QueryStats{Keypoints: kpCount, Width: size.X, Height: size.Y}
	area := float64(size.X) * float64(size.Y)
	if area <= 0 {
		return s
	}
	s.Density = float64(kpCount) / area
	long, short := max(size.X, size.Y), min(size.X, size.Y)
	s.Aspect = float64(long) / float64(short)

	largest := 0.0
	for _, c := range contours {
		largest = max(largest, p.ContourArea(c))
	}
	s.Fill = largest / area
	return s
}

// Decide applies the routing rule. All comparisons are strict.
func (c ClassifierConfig) Decide(s QueryStats) Route {
	if s.Width <= 0 || s.Height <= 0 {
		return RouteObject
	}
	if s.Keypoints < c.MaxKeypoints &&
		s.Density > c.MinDensity &&
		s.Aspect < c.MaxAspect &&
		s.Fill < c.MaxFill {
		return RouteLogo
	}
	return RouteObject
}

// Classify picks a route from a keypoint count, the image size and an
// optional contour list.
func (e *Engine) Classify(kpCount int, size image.Point, contours []vision.Contour) Route {
	return e.cfg.Classifier.Decide(ComputeStats(e.prims, kpCount, size, contours))
}

// Stats computes the routing statistics of a prepared query. Contours only
// contribute when the classifier is configured to use them.
func (e *Engine) Stats(pq *PreparedQuery) QueryStats {
	var contours []vision.Contour
	if e.cfg.Classifier.UseContours {
		contours = pq.Contours()
	}
	return ComputeStats(e.prims, len(pq.Keypoints), pq.Size(), contours)
}
