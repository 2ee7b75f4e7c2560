package vision

import (
	"image"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// Options configures the default primitives implementation.
type Options struct {
	// ORBFeatures caps the number of ORB keypoints per image.
	ORBFeatures int
	// SIFTFeatures caps the number of SIFT keypoints per image (0 = unlimited).
	SIFTFeatures int
	// FASTThreshold is the intensity difference for the corner segment test.
	FASTThreshold int
	// PyramidLevels and ScaleFactor define the detection scale space.
	PyramidLevels int
	ScaleFactor   float64
	// BlurSigma is the Gaussian sigma applied before gradient computation.
	BlurSigma float64
	// RANSACIterations bounds the number of hypotheses per fit.
	RANSACIterations int
	RANSACConfidence float64
	// Seed makes RANSAC sampling reproducible.
	Seed int64
	// TextMasker overrides the text-region backend. Nil selects the
	// edge-density heuristic.
	TextMasker TextMasker
	// TextMinConfidence is the heuristic score a window needs to be masked.
	TextMinConfidence float64
	// TextMaxCoverage disables the mask when it would suppress a larger
	// fraction of the image than this.
	TextMaxCoverage float64
}

// DefaultOptions returns the options used by the CLI and server.
func DefaultOptions() Options {
	return Options{
		ORBFeatures:       1500,
		SIFTFeatures:      1000,
		FASTThreshold:     20,
		PyramidLevels:     4,
		ScaleFactor:       1.2,
		BlurSigma:         1.4,
		RANSACIterations:  2000,
		RANSACConfidence:  0.995,
		Seed:              1,
		TextMinConfidence: 0.6,
		TextMaxCoverage:   0.5,
	}
}

// Default is the pure-Go Primitives implementation. It holds no mutable
// state and is safe for concurrent use.
type Default struct {
	opts    Options
	pattern []briefPair
	masker  TextMasker
}

var _ Primitives = (*Default)(nil)

// NewDefault creates the default primitives, filling unset options.
func NewDefault(opts Options) *Default {
	def := DefaultOptions()
	if opts.ORBFeatures <= 0 {
		opts.ORBFeatures = def.ORBFeatures
	}
	if opts.SIFTFeatures < 0 {
		opts.SIFTFeatures = 0
	}
	if opts.FASTThreshold <= 0 {
		opts.FASTThreshold = def.FASTThreshold
	}
	if opts.PyramidLevels <= 0 {
		opts.PyramidLevels = def.PyramidLevels
	}
	if opts.ScaleFactor <= 1 {
		opts.ScaleFactor = def.ScaleFactor
	}
	if opts.BlurSigma < 0 {
		opts.BlurSigma = 0
	}
	if opts.RANSACIterations <= 0 {
		opts.RANSACIterations = def.RANSACIterations
	}
	if opts.RANSACConfidence <= 0 || opts.RANSACConfidence >= 1 {
		opts.RANSACConfidence = def.RANSACConfidence
	}
	if opts.TextMinConfidence <= 0 {
		opts.TextMinConfidence = def.TextMinConfidence
	}
	if opts.TextMaxCoverage <= 0 {
		opts.TextMaxCoverage = def.TextMaxCoverage
	}

	d := &Default{opts: opts, pattern: briefPattern(), masker: opts.TextMasker}
	if d.masker == nil {
		d.masker = &heuristicTextMasker{
			minConfidence: opts.TextMinConfidence,
			maxCoverage:   opts.TextMaxCoverage,
		}
	}
	return d
}

// Options returns the effective options.
func (d *Default) Options() Options { return d.opts }

// ExtractEdges runs Canny edge detection.
func (d *Default) ExtractEdges(gray *image.Gray, low, high float64) *image.Gray {
	return Canny(gray, d.opts.BlurSigma, low, high)
}

// ExtractContours returns the external boundaries of the edge map.
func (d *Default) ExtractContours(edges *image.Gray) []Contour {
	return ExternalContours(edges)
}

// ContourArea returns the unsigned enclosed area.
func (d *Default) ContourArea(c Contour) float64 { return utils.PolygonArea(c) }

// ArcLength returns the closed perimeter.
func (d *Default) ArcLength(c Contour) float64 { return utils.PolygonPerimeter(c) }

// ApproxVertexCount returns the vertex count of the closed Douglas-Peucker
// approximation with the given tolerance.
func (d *Default) ApproxVertexCount(c Contour, epsilon float64) int {
	return len(utils.SimplifyClosed(c, epsilon))
}

// HuMoments returns the seven Hu invariants of the contour polygon.
func (d *Default) HuMoments(c Contour) [7]float64 { return HuMoments(c) }

// MatchShapes returns the I1 shape distance between two contours.
func (d *Default) MatchShapes(a, b Contour) float64 {
	return MatchHu(HuMoments(a), HuMoments(b))
}

// DetectAndDescribe finds keypoints and computes descriptors.
func (d *Default) DetectAndDescribe(gray *image.Gray, mask *image.Gray, method Method) ([]KeyPoint, *Descriptors) {
	return d.detectAndDescribe(gray, mask, method)
}

// MatchNearestTwo runs brute-force 2-NN matching.
func (d *Default) MatchNearestTwo(query, train *Descriptors) []MatchPair {
	return MatchNearestTwo(query, train)
}

// FitHomography estimates a homography with RANSAC.
func (d *Default) FitHomography(src, dst []utils.Point, threshold float64) (Homography, []bool, bool) {
	return FitHomography(src, dst, threshold, RANSACOptions{
		MaxIterations: d.opts.RANSACIterations,
		Confidence:    d.opts.RANSACConfidence,
		Seed:          d.opts.Seed,
	})
}

// ConvexHull returns the counter-clockwise hull.
func (d *Default) ConvexHull(pts []utils.Point) []utils.Point { return utils.ConvexHull(pts) }

// PolygonArea returns the unsigned polygon area.
func (d *Default) PolygonArea(pts []utils.Point) float64 { return utils.PolygonArea(pts) }

// PolygonPerimeter returns the closed perimeter.
func (d *Default) PolygonPerimeter(pts []utils.Point) float64 { return utils.PolygonPerimeter(pts) }

// ColorHistogram computes an L2-normalised HSV histogram.
func (d *Default) ColorHistogram(img image.Image, bins int) Histogram {
	return ColorHistogram(img, bins)
}

// HistogramCorrelation compares two histograms.
func (d *Default) HistogramCorrelation(a, b Histogram) float64 {
	return HistogramCorrelation(a, b)
}

// TextRegionMask returns a mask where text-like regions are 0.
func (d *Default) TextRegionMask(gray *image.Gray) *image.Gray {
	return d.masker.Mask(gray)
}
