package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/sif/internal/testutil"
)

// queryFixture describes one generated query image and the route the
// classifier is expected to pick for it.
type queryFixture struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	ExpectedRoute string `json:"expected_route"`
	Expected      string `json:"expected_match,omitempty"`
	Description   string `json:"description"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir          = flag.String("out", "testdata", "Output directory, relative to the project root unless absolute")
		generateCorpus  = flag.Bool("corpus", true, "Generate the synthetic corpus")
		generateQueries = flag.Bool("queries", true, "Generate query images and their fixture manifest")
		verbose         = flag.Bool("v", false, "Verbose output")
		help            = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a synthetic corpus and query images for sif testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                     # Generate corpus and queries under testdata/\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -queries=false      # Generate only the corpus\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/sif-data  # Write somewhere else\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Starting test data generation...")

	base := *outDir
	if !filepath.IsAbs(base) {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		base = filepath.Join(root, base)
	}

	if *verbose {
		slog.Info("Options", "out", base, "corpus", *generateCorpus, "queries", *generateQueries)
	}

	if *generateCorpus {
		layout, err := testutil.WriteCorpus(filepath.Join(base, "corpus"))
		if err != nil {
			slog.Error("Failed to generate corpus", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated corpus", "root", layout.Root,
			"general", len(layout.General), "logos", len(layout.Logos))
	}

	if *generateQueries {
		fixtures, err := generateQueryImages(filepath.Join(base, "queries"))
		if err != nil {
			slog.Error("Failed to generate query images", "error", err)
			os.Exit(1)
		}
		if err := saveManifest(filepath.Join(base, "queries", "manifest.json"), fixtures); err != nil {
			slog.Error("Failed to write fixture manifest", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated query images", "count", len(fixtures))
	}

	slog.Info("Test data generation completed successfully!")
}

// generateQueryImages writes transformed variants of the corpus content:
// shifted and rotated scenes for the object route, recoloured glyphs for the
// logo route and a text card for the text-region mask.
func generateQueryImages(dir string) ([]queryFixture, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create query directory: %w", err)
	}

	scene := testutil.TexturedImage(testutil.MediumSize, 1)
	queries := []struct {
		img image.Image
		fx  queryFixture
	}{
		{
			testutil.Shift(scene, 12, 8, color.White),
			queryFixture{Name: "scene_shifted.png", ExpectedRoute: "object", Expected: "airplane_01.png",
				Description: "airplane_01 translated by (12, 8)"},
		},
		{
			testutil.Rotate(scene, 10, color.White),
			queryFixture{Name: "scene_rotated.png", ExpectedRoute: "object", Expected: "airplane_01.png",
				Description: "airplane_01 rotated by 10 degrees"},
		},
		{
			testutil.ShapeImage(testutil.ShapeStar, testutil.MediumSize, color.RGBA{R: 200, A: 255}, color.White),
			queryFixture{Name: "star_red.png", ExpectedRoute: "logo", Expected: "star.png",
				Description: "star glyph in red"},
		},
		{
			testutil.ShapeImage(testutil.ShapeTriangle, testutil.SmallSize, color.Black, color.White),
			queryFixture{Name: "triangle_small.png", ExpectedRoute: "logo", Expected: "triangle.png",
				Description: "triangle glyph at half size"},
		},
		{
			testutil.TextImage(testutil.MediumSize, "SALE", "50% OFF", "TODAY ONLY"),
			queryFixture{Name: "text_card.png", ExpectedRoute: "logo",
				Description: "text-only card for the text-region mask"},
		},
	}

	fixtures := make([]queryFixture, 0, len(queries))
	for _, q := range queries {
		path := filepath.Join(dir, q.fx.Name)
		if err := testutil.WriteImage(q.img, path); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", q.fx.Name, err)
		}
		q.fx.Path = path
		fixtures = append(fixtures, q.fx)
	}
	return fixtures, nil
}

func saveManifest(path string, fixtures []queryFixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
