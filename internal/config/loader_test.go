package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// isolatedLoader returns a loader over a fresh viper instance rooted in an
// empty working directory so no config file on the host leaks in.
func isolatedLoader(t *testing.T) *Loader {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sif.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.GetViper() == nil {
		t.Fatal("NewLoader() returned a loader without viper instance")
	}
	if NewLoaderWithViper(nil).GetViper() == nil {
		t.Error("NewLoaderWithViper(nil) should create a viper instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	loader := isolatedLoader(t)

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Retrieval.Logo.CannyHigh != 160 {
		t.Errorf("Expected default canny_high 160, got %f", cfg.Retrieval.Logo.CannyHigh)
	}
	if loader.GetConfigFileUsed() != "" {
		t.Errorf("Expected no config file, got %s", loader.GetConfigFileUsed())
	}
}

// TestLoadFromWorkingDirectory tests discovery of sif.yaml in the search path.
func TestLoadFromWorkingDirectory(t *testing.T) {
	loader := isolatedLoader(t)
	if err := os.WriteFile("sif.yaml", []byte("output:\n  top_k: 9\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Output.TopK != 9 {
		t.Errorf("Expected top_k 9 from sif.yaml, got %d", cfg.Output.TopK)
	}
	if cfg.Output.ScorePrecision != 4 {
		t.Errorf("Unset keys should keep defaults, got score_precision %d", cfg.Output.ScorePrecision)
	}
}

// TestLoadWithValidYAMLFile tests loading from an explicit YAML file.
func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
retrieval:
  object:
    color_threshold: 0.5
    use_compactness: true
    weights:
      shape: 0.1
  logo:
    top_contours: 4
dataset:
  root: /data/corpus
  logo_partitions: [logos, brands]
  dedupe: true
override:
  enabled: false
server:
  port: 9090
`)
	loader := isolatedLoader(t)

	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Retrieval.Object.ColorThreshold != 0.5 || !cfg.Retrieval.Object.UseCompactness {
		t.Errorf("Object section not loaded: %+v", cfg.Retrieval.Object)
	}
	if cfg.Retrieval.Object.Weights.Shape != 0.1 || cfg.Retrieval.Object.Weights.Inliers != 0.4 {
		t.Errorf("Weights not merged with defaults: %+v", cfg.Retrieval.Object.Weights)
	}
	if cfg.Retrieval.Logo.TopContours != 4 {
		t.Errorf("Expected top_contours 4, got %d", cfg.Retrieval.Logo.TopContours)
	}
	if cfg.Dataset.Root != "/data/corpus" || len(cfg.Dataset.LogoPartitions) != 2 || !cfg.Dataset.Dedupe {
		t.Errorf("Dataset section not loaded: %+v", cfg.Dataset)
	}
	if cfg.Override.Enabled {
		t.Error("Expected override disabled")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if loader.GetConfigFileUsed() != path {
		t.Errorf("Expected config file %s, got %s", path, loader.GetConfigFileUsed())
	}
}

func TestLoadWithFileMissing(t *testing.T) {
	loader := isolatedLoader(t)
	_, err := loader.LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}
}

func TestLoadWithInvalidYAML(t *testing.T) {
	path := writeConfig(t, "retrieval: [unterminated\n")
	loader := isolatedLoader(t)
	if _, err := loader.LoadWithFile(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  logo:\n    canny_low: 200\n    canny_high: 100\n")

	loader := isolatedLoader(t)
	_, err := loader.LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}

	cfg, err := isolatedLoader(t).LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Retrieval.Logo.CannyLow != 200 {
		t.Errorf("Expected canny_low 200, got %f", cfg.Retrieval.Logo.CannyLow)
	}
}

// TestEnvironmentOverrides tests SIF_ prefixed variables with nested keys.
func TestEnvironmentOverrides(t *testing.T) {
	loader := isolatedLoader(t)
	t.Setenv("SIF_LOG_LEVEL", "warn")
	t.Setenv("SIF_RETRIEVAL_OBJECT_COLOR_THRESHOLD", "0.25")
	t.Setenv("SIF_OUTPUT_TOP_K", "12")
	t.Setenv("SIF_SERVER_PORT", "7000")

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.LogLevel)
	}
	if cfg.Retrieval.Object.ColorThreshold != 0.25 {
		t.Errorf("Expected color_threshold 0.25, got %f", cfg.Retrieval.Object.ColorThreshold)
	}
	if cfg.Output.TopK != 12 {
		t.Errorf("Expected top_k 12, got %d", cfg.Output.TopK)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", cfg.Server.Port)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "output:\n  format: csv\n")
	loader := isolatedLoader(t)
	t.Setenv("SIF_OUTPUT_FORMAT", "json")

	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Environment should win over file, got %s", cfg.Output.Format)
	}
}

func TestSetAndGet(t *testing.T) {
	loader := isolatedLoader(t)
	loader.Set("output.top_k", 2)
	if got := loader.Get("output.top_k"); got != 2 {
		t.Errorf("Get() = %v, want 2", got)
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Output.TopK != 2 {
		t.Errorf("Explicit Set should win, got %d", cfg.Output.TopK)
	}
	if _, ok := loader.GetResolvedConfig()["retrieval"]; !ok {
		t.Error("Resolved config should contain the retrieval section")
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sif.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := isolatedLoader(t).LoadWithFile(path)
	if err != nil {
		t.Fatalf("Generated file should load: %v", err)
	}
	if cfg.Retrieval.Logo.MinScore != 0.35 {
		t.Errorf("Expected min_score 0.35, got %f", cfg.Retrieval.Logo.MinScore)
	}

	if err := GenerateDefaultConfigFile(path); err == nil {
		t.Error("Expected error when the file already exists")
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	if paths[len(paths)-1] != "/etc/sif" {
		t.Errorf("Expected /etc/sif last, got %s", paths[len(paths)-1])
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join(xdg, "sif") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected XDG path in %v", paths)
	}
}

func TestPrintConfigInfo(t *testing.T) {
	var sb strings.Builder
	isolatedLoader(t).PrintConfigInfo(&sb)
	if !strings.Contains(sb.String(), "Environment prefix: SIF") {
		t.Errorf("Unexpected output: %s", sb.String())
	}
}
