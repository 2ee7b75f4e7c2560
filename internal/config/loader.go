package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "sif"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SIF"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over an explicit viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	config, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadWithoutValidation loads configuration from the search paths without
// validating it.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars still apply
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// SIF_RETRIEVAL_OBJECT_COLOR_THRESHOLD maps to retrieval.object.color_threshold
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options. Every key
// needs a default so AutomaticEnv can see it during Unmarshal.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Classifier defaults
	cl := defaults.Retrieval.Classifier
	l.v.SetDefault("retrieval.classifier.max_keypoints", cl.MaxKeypoints)
	l.v.SetDefault("retrieval.classifier.min_density", cl.MinDensity)
	l.v.SetDefault("retrieval.classifier.max_aspect", cl.MaxAspect)
	l.v.SetDefault("retrieval.classifier.max_fill", cl.MaxFill)
	l.v.SetDefault("retrieval.classifier.use_contours", cl.UseContours)

	// Object route defaults
	ob := defaults.Retrieval.Object
	l.v.SetDefault("retrieval.object.color_threshold", ob.ColorThreshold)
	l.v.SetDefault("retrieval.object.histogram_bins", ob.HistogramBins)
	l.v.SetDefault("retrieval.object.ratio", ob.Ratio)
	l.v.SetDefault("retrieval.object.min_matches", ob.MinMatches)
	l.v.SetDefault("retrieval.object.ransac_threshold", ob.RANSACThreshold)
	l.v.SetDefault("retrieval.object.min_hull_points", ob.MinHullPoints)
	l.v.SetDefault("retrieval.object.inlier_norm", ob.InlierNorm)
	l.v.SetDefault("retrieval.object.weights.inliers", ob.Weights.Inliers)
	l.v.SetDefault("retrieval.object.weights.coverage", ob.Weights.Coverage)
	l.v.SetDefault("retrieval.object.weights.color", ob.Weights.Color)
	l.v.SetDefault("retrieval.object.weights.spatial", ob.Weights.Spatial)
	l.v.SetDefault("retrieval.object.weights.shape", ob.Weights.Shape)
	l.v.SetDefault("retrieval.object.use_compactness", ob.UseCompactness)
	l.v.SetDefault("retrieval.object.orb_features", ob.ORBFeatures)

	// Logo route defaults
	lg := defaults.Retrieval.Logo
	l.v.SetDefault("retrieval.logo.top_contours", lg.TopContours)
	l.v.SetDefault("retrieval.logo.min_area", lg.MinArea)
	l.v.SetDefault("retrieval.logo.min_perimeter", lg.MinPerimeter)
	l.v.SetDefault("retrieval.logo.approx_epsilon", lg.ApproxEpsilon)
	l.v.SetDefault("retrieval.logo.complexity_tolerance", lg.ComplexityTolerance)
	l.v.SetDefault("retrieval.logo.gate_hu_weight", lg.GateHuWeight)
	l.v.SetDefault("retrieval.logo.gate_shape_weight", lg.GateShapeWeight)
	l.v.SetDefault("retrieval.logo.shape_gate", lg.ShapeGate)
	l.v.SetDefault("retrieval.logo.ratio", lg.Ratio)
	l.v.SetDefault("retrieval.logo.match_norm", lg.MatchNorm)
	l.v.SetDefault("retrieval.logo.weights.hu", lg.Weights.Hu)
	l.v.SetDefault("retrieval.logo.weights.shape", lg.Weights.Shape)
	l.v.SetDefault("retrieval.logo.weights.descriptor", lg.Weights.Descriptor)
	l.v.SetDefault("retrieval.logo.min_score", lg.MinScore)
	l.v.SetDefault("retrieval.logo.canny_low", lg.CannyLow)
	l.v.SetDefault("retrieval.logo.canny_high", lg.CannyHigh)
	l.v.SetDefault("retrieval.logo.sift_features", lg.SIFTFeatures)

	// Dataset defaults
	l.v.SetDefault("dataset.root", defaults.Dataset.Root)
	l.v.SetDefault("dataset.recursive", defaults.Dataset.Recursive)
	l.v.SetDefault("dataset.include_patterns", defaults.Dataset.IncludePatterns)
	l.v.SetDefault("dataset.exclude_patterns", defaults.Dataset.ExcludePatterns)
	l.v.SetDefault("dataset.logo_partitions", defaults.Dataset.LogoPartitions)
	l.v.SetDefault("dataset.dedupe", defaults.Dataset.Dedupe)
	l.v.SetDefault("dataset.dedupe_threshold", defaults.Dataset.DedupeThreshold)

	// Override defaults
	l.v.SetDefault("override.enabled", defaults.Override.Enabled)
	l.v.SetDefault("override.logo_hints", defaults.Override.LogoHints)
	l.v.SetDefault("override.object_hints", defaults.Override.ObjectHints)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.top_k", defaults.Output.TopK)
	l.v.SetDefault("output.overlay_dir", defaults.Output.OverlayDir)
	l.v.SetDefault("output.score_precision", defaults.Output.ScorePrecision)

	l.v.SetDefault("parallel.max_workers", defaults.Parallel.MaxWorkers)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit_enabled", defaults.Server.RateLimitEnabled)
	l.v.SetDefault("server.requests_per_minute", defaults.Server.RequestsPerMinute)
	l.v.SetDefault("server.requests_per_hour", defaults.Server.RequestsPerHour)
	l.v.SetDefault("server.max_requests_per_day", defaults.Server.MaxRequestsPerDay)
	l.v.SetDefault("server.max_data_per_day_mb", defaults.Server.MaxDataPerDayMB)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// GenerateDefaultConfigFile writes the default configuration as YAML. An
// empty filename selects sif.yaml in the working directory.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("config file already exists: %s", filename)
	}

	cfg := DefaultConfig()
	data, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists && configDir != "" {
		paths = append(paths, filepath.Join(configDir, "sif"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sif"))
	}

	paths = append(paths, "/etc/sif")

	return paths
}

// PrintConfigInfo writes information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
