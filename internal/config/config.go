package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/override"
	"github.com/MeKo-Tech/sif/internal/report"
	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// DefaultConfig returns a configuration with the reference thresholds.
func DefaultConfig() Config {
	hints := override.DefaultHints()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Retrieval: RetrievalConfig{
			Classifier: defaultClassifierConfig(),
			Object:     defaultObjectConfig(),
			Logo:       defaultLogoConfig(),
		},
		Dataset: DatasetConfig{
			Root:            "",
			Recursive:       true,
			IncludePatterns: []string{},
			ExcludePatterns: []string{},
			LogoPartitions:  slices.Clone(dataset.DefaultLogoPartitions),
			Dedupe:          false,
			DedupeThreshold: report.DefaultDedupeThreshold,
		},
		Override: OverrideConfig{
			Enabled:     true,
			LogoHints:   hints.Logo,
			ObjectHints: hints.Object,
		},
		Output: OutputConfig{
			Format:         "text",
			TopK:           5,
			ScorePrecision: 4,
		},
		Parallel: ParallelConfig{
			MaxWorkers: runtime.NumCPU(),
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,

			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 0,
			MaxDataPerDayMB:   0,
		},
	}
}

func defaultClassifierConfig() ClassifierConfig {
	cfg := retrieval.DefaultConfig().Classifier
	return ClassifierConfig{
		MaxKeypoints: cfg.MaxKeypoints,
		MinDensity:   cfg.MinDensity,
		MaxAspect:    cfg.MaxAspect,
		MaxFill:      cfg.MaxFill,
		UseContours:  cfg.UseContours,
	}
}

func defaultObjectConfig() ObjectConfig {
	cfg := retrieval.DefaultConfig().Object
	return ObjectConfig{
		ColorThreshold:  cfg.ColorThreshold,
		HistogramBins:   cfg.HistogramBins,
		Ratio:           cfg.Ratio,
		MinMatches:      cfg.MinMatches,
		RANSACThreshold: cfg.RANSACThreshold,
		MinHullPoints:   cfg.MinHullPoints,
		InlierNorm:      cfg.InlierNorm,
		Weights: ObjectWeights{
			Inliers:  cfg.Weights.Inliers,
			Coverage: cfg.Weights.Coverage,
			Color:    cfg.Weights.Color,
			Spatial:  cfg.Weights.Spatial,
			Shape:    cfg.Weights.Shape,
		},
		UseCompactness: cfg.UseCompactness,
		ORBFeatures:    vision.DefaultOptions().ORBFeatures,
	}
}

func defaultLogoConfig() LogoConfig {
	cfg := retrieval.DefaultConfig().Logo
	return LogoConfig{
		TopContours:         cfg.TopContours,
		MinArea:             cfg.MinArea,
		MinPerimeter:        cfg.MinPerimeter,
		ApproxEpsilon:       cfg.ApproxEpsilon,
		ComplexityTolerance: cfg.ComplexityTolerance,
		GateHuWeight:        cfg.GateHuWeight,
		GateShapeWeight:     cfg.GateShapeWeight,
		ShapeGate:           cfg.ShapeGate,
		Ratio:               cfg.Ratio,
		MatchNorm:           cfg.MatchNorm,
		Weights: LogoWeights{
			Hu:         cfg.Weights.Hu,
			Shape:      cfg.Weights.Shape,
			Descriptor: cfg.Weights.Descriptor,
		},
		MinScore:     cfg.MinScore,
		CannyLow:     cfg.CannyLow,
		CannyHigh:    cfg.CannyHigh,
		SIFTFeatures: vision.DefaultOptions().SIFTFeatures,
	}
}

// Validate validates the configuration and returns the first error found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	if err := c.Retrieval.validate(); err != nil {
		return err
	}

	if c.Output.TopK < 0 {
		return fmt.Errorf("invalid output top_k: %d (must not be negative)", c.Output.TopK)
	}
	if c.Output.ScorePrecision < 0 || c.Output.ScorePrecision > 12 {
		return fmt.Errorf("invalid output score_precision: %d (must be between 0 and 12)", c.Output.ScorePrecision)
	}
	if c.Dataset.DedupeThreshold < 0 || c.Dataset.DedupeThreshold > 64 {
		return fmt.Errorf("invalid dataset dedupe_threshold: %d (must be between 0 and 64)", c.Dataset.DedupeThreshold)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 ||
		c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limits: %d/min %d/h %d/day %dMB/day (must not be negative)",
			c.Server.RequestsPerMinute, c.Server.RequestsPerHour, c.Server.MaxRequestsPerDay, c.Server.MaxDataPerDayMB)
	}
	if c.Parallel.MaxWorkers <= 0 {
		return fmt.Errorf("invalid parallel max workers: %d (must be positive)", c.Parallel.MaxWorkers)
	}

	return nil
}

func (r *RetrievalConfig) validate() error {
	cl := r.Classifier
	if err := validatePositive(cl.MaxKeypoints, "classifier.max_keypoints"); err != nil {
		return err
	}
	if err := validateThreshold(cl.MinDensity, "classifier.min_density"); err != nil {
		return err
	}
	if cl.MaxAspect < 1 {
		return fmt.Errorf("invalid classifier.max_aspect: %.2f (must be at least 1.0)", cl.MaxAspect)
	}
	if err := validateThreshold(cl.MaxFill, "classifier.max_fill"); err != nil {
		return err
	}

	ob := r.Object
	for name, v := range map[string]float64{
		"object.color_threshold":  ob.ColorThreshold,
		"object.ratio":            ob.Ratio,
		"object.weights.inliers":  ob.Weights.Inliers,
		"object.weights.coverage": ob.Weights.Coverage,
		"object.weights.color":    ob.Weights.Color,
		"object.weights.spatial":  ob.Weights.Spatial,
		"object.weights.shape":    ob.Weights.Shape,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}
	for name, v := range map[string]int{
		"object.histogram_bins":  ob.HistogramBins,
		"object.min_matches":     ob.MinMatches,
		"object.min_hull_points": ob.MinHullPoints,
		"object.orb_features":    ob.ORBFeatures,
	} {
		if err := validatePositive(v, name); err != nil {
			return err
		}
	}
	if ob.RANSACThreshold <= 0 {
		return fmt.Errorf("invalid object.ransac_threshold: %.2f (must be positive)", ob.RANSACThreshold)
	}
	if ob.InlierNorm <= 0 {
		return fmt.Errorf("invalid object.inlier_norm: %.2f (must be positive)", ob.InlierNorm)
	}

	lg := r.Logo
	for name, v := range map[string]float64{
		"logo.approx_epsilon":     lg.ApproxEpsilon,
		"logo.gate_hu_weight":     lg.GateHuWeight,
		"logo.gate_shape_weight":  lg.GateShapeWeight,
		"logo.shape_gate":         lg.ShapeGate,
		"logo.ratio":              lg.Ratio,
		"logo.weights.hu":         lg.Weights.Hu,
		"logo.weights.shape":      lg.Weights.Shape,
		"logo.weights.descriptor": lg.Weights.Descriptor,
		"logo.min_score":          lg.MinScore,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}
	if err := validatePositive(lg.TopContours, "logo.top_contours"); err != nil {
		return err
	}
	if lg.ComplexityTolerance < 0 {
		return fmt.Errorf("invalid logo.complexity_tolerance: %d (must not be negative)", lg.ComplexityTolerance)
	}
	if lg.MinArea < 0 || lg.MinPerimeter < 0 {
		return fmt.Errorf("invalid logo contour bounds: min_area=%.2f min_perimeter=%.2f (must not be negative)",
			lg.MinArea, lg.MinPerimeter)
	}
	if lg.MatchNorm <= 0 {
		return fmt.Errorf("invalid logo.match_norm: %.2f (must be positive)", lg.MatchNorm)
	}
	if lg.SIFTFeatures < 0 {
		return fmt.Errorf("invalid logo.sift_features: %d (must not be negative)", lg.SIFTFeatures)
	}
	if lg.CannyLow < 0 || lg.CannyHigh > 255 || lg.CannyLow >= lg.CannyHigh {
		return fmt.Errorf("invalid canny thresholds: low=%.1f high=%.1f (need 0 <= low < high <= 255)",
			lg.CannyLow, lg.CannyHigh)
	}
	return nil
}

// ToRetrievalConfig converts the config to the engine's threshold set.
func (c *Config) ToRetrievalConfig() retrieval.Config {
	cfg := retrieval.DefaultConfig()

	cl := c.Retrieval.Classifier
	cfg.Classifier = retrieval.ClassifierConfig{
		MaxKeypoints: cl.MaxKeypoints,
		MinDensity:   cl.MinDensity,
		MaxAspect:    cl.MaxAspect,
		MaxFill:      cl.MaxFill,
		UseContours:  cl.UseContours,
	}

	ob := c.Retrieval.Object
	cfg.Object.ColorThreshold = ob.ColorThreshold
	cfg.Object.HistogramBins = ob.HistogramBins
	cfg.Object.Ratio = ob.Ratio
	cfg.Object.MinMatches = ob.MinMatches
	cfg.Object.RANSACThreshold = ob.RANSACThreshold
	cfg.Object.MinHullPoints = ob.MinHullPoints
	cfg.Object.InlierNorm = ob.InlierNorm
	cfg.Object.Weights = retrieval.ObjectWeights(ob.Weights)
	cfg.Object.UseCompactness = ob.UseCompactness

	lg := c.Retrieval.Logo
	cfg.Logo = retrieval.LogoConfig{
		TopContours:         lg.TopContours,
		MinArea:             lg.MinArea,
		MinPerimeter:        lg.MinPerimeter,
		ApproxEpsilon:       lg.ApproxEpsilon,
		ComplexityTolerance: lg.ComplexityTolerance,
		GateHuWeight:        lg.GateHuWeight,
		GateShapeWeight:     lg.GateShapeWeight,
		ShapeGate:           lg.ShapeGate,
		Ratio:               lg.Ratio,
		MatchNorm:           lg.MatchNorm,
		Weights:             retrieval.LogoWeights(lg.Weights),
		MinScore:            lg.MinScore,
		CannyLow:            lg.CannyLow,
		CannyHigh:           lg.CannyHigh,
	}
	return cfg
}

// ToVisionOptions converts the feature caps to primitive options.
func (c *Config) ToVisionOptions() vision.Options {
	opts := vision.DefaultOptions()
	opts.ORBFeatures = c.Retrieval.Object.ORBFeatures
	opts.SIFTFeatures = c.Retrieval.Logo.SIFTFeatures
	return opts
}

// ToDatasetOptions converts the dataset section to corpus loading options.
func (c *Config) ToDatasetOptions() dataset.Options {
	return dataset.Options{
		Root:            c.Dataset.Root,
		Recursive:       c.Dataset.Recursive,
		IncludePatterns: c.Dataset.IncludePatterns,
		ExcludePatterns: c.Dataset.ExcludePatterns,
		LogoPartitions:  c.Dataset.LogoPartitions,
		Fingerprint:     c.Dataset.Dedupe,
		Workers:         c.Parallel.MaxWorkers,
	}
}

// ToHints converts the override section to route hints.
func (c *Config) ToHints() override.Hints {
	return override.Hints{
		Logo:   c.Override.LogoHints,
		Object: c.Override.ObjectHints,
	}
}

// ToReportOptions converts the output and dedupe settings to report options.
func (c *Config) ToReportOptions() report.Options {
	return report.Options{
		TopK:            c.Output.TopK,
		Dedupe:          c.Dataset.Dedupe,
		DedupeThreshold: c.Dataset.DedupeThreshold,
	}
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.4g (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

func validatePositive(value int, name string) error {
	if value <= 0 {
		return fmt.Errorf("invalid %s: %d (must be positive)", name, value)
	}
	return nil
}
