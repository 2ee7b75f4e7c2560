//nolint:lll
package config

// Config represents the complete configuration for the sif retrieval tool.
// It covers every command (query, classify, serve) and supports loading from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Retrieval thresholds
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval" json:"retrieval"`

	// Corpus loading
	Dataset DatasetConfig `mapstructure:"dataset" yaml:"dataset" json:"dataset"`

	// Filename-based route override
	Override OverrideConfig `mapstructure:"override" yaml:"override" json:"override"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Parallel candidate evaluation
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel" json:"parallel"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// RetrievalConfig groups the per-stage thresholds.
type RetrievalConfig struct {
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`
	Object     ObjectConfig     `mapstructure:"object" yaml:"object" json:"object"`
	Logo       LogoConfig       `mapstructure:"logo" yaml:"logo" json:"logo"`
}

// ClassifierConfig contains the logo/object routing thresholds.
type ClassifierConfig struct {
	MaxKeypoints int     `mapstructure:"max_keypoints" yaml:"max_keypoints" json:"max_keypoints"`
	MinDensity   float64 `mapstructure:"min_density" yaml:"min_density" json:"min_density"`
	MaxAspect    float64 `mapstructure:"max_aspect" yaml:"max_aspect" json:"max_aspect"`
	MaxFill      float64 `mapstructure:"max_fill" yaml:"max_fill" json:"max_fill"`
	UseContours  bool    `mapstructure:"use_contours" yaml:"use_contours" json:"use_contours"`
}

// ObjectWeights contains the object-route fusion weights.
type ObjectWeights struct {
	Inliers  float64 `mapstructure:"inliers" yaml:"inliers" json:"inliers"`
	Coverage float64 `mapstructure:"coverage" yaml:"coverage" json:"coverage"`
	Color    float64 `mapstructure:"color" yaml:"color" json:"color"`
	Spatial  float64 `mapstructure:"spatial" yaml:"spatial" json:"spatial"`
	Shape    float64 `mapstructure:"shape" yaml:"shape" json:"shape"`
}

// ObjectConfig contains the object cascade settings.
type ObjectConfig struct {
	ColorThreshold  float64       `mapstructure:"color_threshold" yaml:"color_threshold" json:"color_threshold"`
	HistogramBins   int           `mapstructure:"histogram_bins" yaml:"histogram_bins" json:"histogram_bins"`
	Ratio           float64       `mapstructure:"ratio" yaml:"ratio" json:"ratio"`
	MinMatches      int           `mapstructure:"min_matches" yaml:"min_matches" json:"min_matches"`
	RANSACThreshold float64       `mapstructure:"ransac_threshold" yaml:"ransac_threshold" json:"ransac_threshold"`
	MinHullPoints   int           `mapstructure:"min_hull_points" yaml:"min_hull_points" json:"min_hull_points"`
	InlierNorm      float64       `mapstructure:"inlier_norm" yaml:"inlier_norm" json:"inlier_norm"`
	Weights         ObjectWeights `mapstructure:"weights" yaml:"weights" json:"weights"`
	UseCompactness  bool          `mapstructure:"use_compactness" yaml:"use_compactness" json:"use_compactness"`
	ORBFeatures     int           `mapstructure:"orb_features" yaml:"orb_features" json:"orb_features"`
}

// LogoWeights contains the logo-route fusion weights.
type LogoWeights struct {
	Hu         float64 `mapstructure:"hu" yaml:"hu" json:"hu"`
	Shape      float64 `mapstructure:"shape" yaml:"shape" json:"shape"`
	Descriptor float64 `mapstructure:"descriptor" yaml:"descriptor" json:"descriptor"`
}

// LogoConfig contains the logo cascade settings.
type LogoConfig struct {
	TopContours         int         `mapstructure:"top_contours" yaml:"top_contours" json:"top_contours"`
	MinArea             float64     `mapstructure:"min_area" yaml:"min_area" json:"min_area"`
	MinPerimeter        float64     `mapstructure:"min_perimeter" yaml:"min_perimeter" json:"min_perimeter"`
	ApproxEpsilon       float64     `mapstructure:"approx_epsilon" yaml:"approx_epsilon" json:"approx_epsilon"`
	ComplexityTolerance int         `mapstructure:"complexity_tolerance" yaml:"complexity_tolerance" json:"complexity_tolerance"`
	GateHuWeight        float64     `mapstructure:"gate_hu_weight" yaml:"gate_hu_weight" json:"gate_hu_weight"`
	GateShapeWeight     float64     `mapstructure:"gate_shape_weight" yaml:"gate_shape_weight" json:"gate_shape_weight"`
	ShapeGate           float64     `mapstructure:"shape_gate" yaml:"shape_gate" json:"shape_gate"`
	Ratio               float64     `mapstructure:"ratio" yaml:"ratio" json:"ratio"`
	MatchNorm           float64     `mapstructure:"match_norm" yaml:"match_norm" json:"match_norm"`
	Weights             LogoWeights `mapstructure:"weights" yaml:"weights" json:"weights"`
	MinScore            float64     `mapstructure:"min_score" yaml:"min_score" json:"min_score"`
	CannyLow            float64     `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh           float64     `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	SIFTFeatures        int         `mapstructure:"sift_features" yaml:"sift_features" json:"sift_features"`
}

// DatasetConfig contains corpus discovery settings.
type DatasetConfig struct {
	Root            string   `mapstructure:"root" yaml:"root" json:"root"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
	LogoPartitions  []string `mapstructure:"logo_partitions" yaml:"logo_partitions" json:"logo_partitions"`
	Dedupe          bool     `mapstructure:"dedupe" yaml:"dedupe" json:"dedupe"`
	DedupeThreshold int      `mapstructure:"dedupe_threshold" yaml:"dedupe_threshold" json:"dedupe_threshold"`
}

// OverrideConfig contains the filename hint settings.
type OverrideConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	LogoHints   []string `mapstructure:"logo_hints" yaml:"logo_hints" json:"logo_hints"`
	ObjectHints []string `mapstructure:"object_hints" yaml:"object_hints" json:"object_hints"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format         string `mapstructure:"format" yaml:"format" json:"format"`
	TopK           int    `mapstructure:"top_k" yaml:"top_k" json:"top_k"`
	OverlayDir     string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	ScorePrecision int    `mapstructure:"score_precision" yaml:"score_precision" json:"score_precision"`
}

// ParallelConfig contains parallel processing settings.
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Per-client request limits (0 = unlimited)
	RateLimitEnabled  bool `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int  `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int  `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
