package retrieval

// ClassifierConfig holds the logo/object routing thresholds. A query is a
// logo only when every condition holds.
type ClassifierConfig struct {
	MaxKeypoints int     // keypoint count must be strictly below
	MinDensity   float64 // keypoints per pixel must be strictly above
	MaxAspect    float64 // long side / short side must be strictly below
	MaxFill      float64 // largest contour area / image area must be strictly below
	UseContours  bool    // feed query contours into the fill ratio
}

// ObjectWeights are the fusion weights of the object route.
type ObjectWeights struct {
	Inliers  float64
	Coverage float64
	Color    float64
	Spatial  float64
	Shape    float64
}

// ObjectConfig parameterises the object cascade.
type ObjectConfig struct {
	ColorThreshold        float64 // inclusive lower bound on histogram correlation
	HistogramBins         int
	Ratio                 float64 // nearest / second-nearest ambiguity ratio
	MinMatches            int     // good matches required before geometry is attempted
	RANSACThreshold       float64 // reprojection error in pixels
	MinHullPoints         int     // inliers needed for a coverage hull
	InlierNorm            float64 // inlier count that saturates the inlier cue
	Weights               ObjectWeights
	UseCompactness        bool // feed inlier-hull compactness into the shape term
	MinCompactnessInliers int
}

// LogoWeights are the fusion weights of the logo route.
type LogoWeights struct {
	Hu         float64
	Shape      float64
	Descriptor float64
}

// LogoConfig parameterises the logo cascade.
type LogoConfig struct {
	TopContours         int
	MinArea             float64
	MinPerimeter        float64
	ApproxEpsilon       float64 // fraction of the perimeter
	ComplexityTolerance int
	GateHuWeight        float64
	GateShapeWeight     float64
	ShapeGate           float64
	Ratio               float64
	MatchNorm           float64
	Weights             LogoWeights
	MinScore            float64
	CannyLow            float64
	CannyHigh           float64
}

// Config is every threshold the engine consults.
type Config struct {
	Classifier ClassifierConfig
	Object     ObjectConfig
	Logo       LogoConfig
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		Classifier: ClassifierConfig{
			MaxKeypoints: 600,
			MinDensity:   1e-3,
			MaxAspect:    2.0,
			MaxFill:      0.6,
		},
		Object: ObjectConfig{
			ColorThreshold:  0.4,
			HistogramBins:   32,
			Ratio:           0.75,
			MinMatches:      10,
			RANSACThreshold: 5.0,
			MinHullPoints:   3,
			InlierNorm:      50,
			Weights: ObjectWeights{
				Inliers:  0.4,
				Coverage: 0.3,
				Color:    0.15,
				Spatial:  0.15,
				Shape:    0.15,
			},
			MinCompactnessInliers: 5,
		},
		Logo: LogoConfig{
			TopContours:         3,
			MinArea:             50,
			MinPerimeter:        80,
			ApproxEpsilon:       0.01,
			ComplexityTolerance: 8,
			GateHuWeight:        0.6,
			GateShapeWeight:     0.4,
			ShapeGate:           0.45,
			Ratio:               0.75,
			MatchNorm:           50,
			Weights:             LogoWeights{Hu: 0.4, Shape: 0.3, Descriptor: 0.3},
			MinScore:            0.35,
			CannyLow:            80,
			CannyHigh:           160,
		},
	}
}
