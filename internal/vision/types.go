package vision

import (
	"image"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// Method selects a keypoint detector/descriptor family.
type Method int

const (
	// ORB produces 256-bit binary descriptors compared by Hamming distance.
	ORB Method = iota
	// SIFT produces 128-dimensional float descriptors compared by Euclidean distance.
	SIFT
)

func (m Method) String() string {
	switch m {
	case ORB:
		return "ORB"
	case SIFT:
		return "SIFT"
	default:
		return "unknown"
	}
}

// KeyPoint is a local interest point.
type KeyPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"angle"` // radians
	Size     float64 `json:"size"`
	Response float64 `json:"response"`
}

// Point returns the keypoint location.
func (k KeyPoint) Point() utils.Point { return utils.Point{X: k.X, Y: k.Y} }

// Descriptors holds one descriptor per keypoint. Exactly one of Binary or
// Float is populated depending on Method. A nil *Descriptors means the image
// produced no usable features.
type Descriptors struct {
	Method Method
	Binary [][]byte
	Float  [][]float32
}

// Len returns the number of descriptors.
func (d *Descriptors) Len() int {
	if d == nil {
		return 0
	}
	if d.Method == ORB {
		return len(d.Binary)
	}
	return len(d.Float)
}

// Match pairs one query descriptor with one candidate descriptor.
type Match struct {
	QueryIdx int     `json:"query_idx"`
	TrainIdx int     `json:"train_idx"`
	Distance float64 `json:"distance"`
}

// MatchPair is the nearest and second-nearest neighbour of a query descriptor.
type MatchPair struct {
	Best      Match
	Second    Match
	HasSecond bool
}

// Contour is a closed boundary, first point not repeated at the end.
type Contour []utils.Point

// Homography is a row-major 3x3 projective transform with H[8] == 1.
type Homography [9]float64

// Apply maps (x, y) through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	return applyHomography(h, x, y)
}

// Histogram is a flattened, L2-normalised colour histogram.
type Histogram []float64

// Primitives is the capability set the retrieval engine consumes.
type Primitives interface {
	ExtractEdges(gray *image.Gray, low, high float64) *image.Gray
	ExtractContours(edges *image.Gray) []Contour
	ContourArea(c Contour) float64
	ArcLength(c Contour) float64
	ApproxVertexCount(c Contour, epsilon float64) int
	HuMoments(c Contour) [7]float64
	MatchShapes(a, b Contour) float64
	DetectAndDescribe(gray *image.Gray, mask *image.Gray, method Method) ([]KeyPoint, *Descriptors)
	MatchNearestTwo(query, train *Descriptors) []MatchPair
	FitHomography(src, dst []utils.Point, threshold float64) (Homography, []bool, bool)
	ConvexHull(pts []utils.Point) []utils.Point
	PolygonArea(pts []utils.Point) float64
	PolygonPerimeter(pts []utils.Point) float64
	ColorHistogram(img image.Image, bins int) Histogram
	HistogramCorrelation(a, b Histogram) float64
	TextRegionMask(gray *image.Gray) *image.Gray
}
