package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sif/internal/config"
	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/override"
	"github.com/MeKo-Tech/sif/internal/report"
	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/utils"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// queryCmd represents the query command.
var queryCmd = &cobra.Command{
	Use:   "query <image>",
	Short: "Find the corpus images most similar to a query image",
	Long: `Rank the images of a corpus directory by similarity to a query image.

The query is classified as an object photograph or a logo unless a route is
forced with --route, or with --hint-override when its file name contains one
of the configured hint words. Finding no match is not an error.

Supported formats: JPEG, PNG, BMP, WebP

Examples:
  sif query photo.jpg --dataset ./corpus
  sif query brand.png --dataset ./corpus --route logo --top 10
  sif query airplane_03.png --dataset ./corpus --hint-override --format csv
  sif query photo.jpg --dataset ./corpus --overlay-dir ./overlays`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	routeFlag, _ := cmd.Flags().GetString("route")
	route, err := retrieval.ParseRoute(routeFlag)
	if err != nil {
		return err
	}
	hintOverride, _ := cmd.Flags().GetBool("hint-override")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	if cfg.Dataset.Root == "" {
		return errors.New("no dataset directory given (use --dataset or dataset.root)")
	}

	q, err := loadQuery(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dsOpts := cfg.ToDatasetOptions()
	dsOpts.Logger = slog.Default()
	corpus, err := dataset.Load(ctx, dsOpts)
	if err != nil {
		return err
	}

	engine := buildEngine(cfg, nil)
	forced := override.Forced(route, q.Name, hints(cfg), hintOverride)

	var progress retrieval.ProgressCallback
	if !noProgress {
		progress = retrieval.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Searching ")
	}

	res, err := engine.SearchWithProgress(ctx, q, corpus.Items, forced, progress)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	rep := report.Build(res, cfg.ToReportOptions())
	if len(rep.Results) == 0 {
		slog.Warn("No results", "query", q.Name, "route", rep.Route, "reason", rep.NoSignal)
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: no results for %s on the %s route\n", q.Name, rep.Route)
	}

	if err := report.Format(cmd.OutOrStdout(), rep, format, cfg.Output.ScorePrecision); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Output.OverlayDir != "" {
		path, err := writeOverlay(engine, cfg.Output.OverlayDir, res, q)
		if err != nil {
			return err
		}
		if path != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved overlay: %s\n", path)
		}
	}
	return nil
}

// loadQuery reads and validates the query image at path.
func loadQuery(path string) (retrieval.Query, error) {
	if !utils.IsSupportedImage(path) {
		return retrieval.Query{}, fmt.Errorf("unsupported image format: %s", path)
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return retrieval.Query{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return retrieval.NewQuery(filepath.Base(path), img)
}

// buildEngine wires the configured thresholds, primitives and logger into
// an engine. A nil observer records nothing.
func buildEngine(cfg *config.Config, observer retrieval.Observer) *retrieval.Engine {
	opts := []retrieval.Option{
		retrieval.WithPrimitives(vision.NewDefault(cfg.ToVisionOptions())),
		retrieval.WithLogger(slog.Default()),
		retrieval.WithWorkers(cfg.Parallel.MaxWorkers),
	}
	if observer != nil {
		opts = append(opts, retrieval.WithObserver(observer))
	}
	return retrieval.NewEngine(cfg.ToRetrievalConfig(), opts...)
}

// hints returns the configured route hints, or none when overrides are off.
func hints(cfg *config.Config) override.Hints {
	if !cfg.Override.Enabled {
		return override.Hints{}
	}
	return cfg.ToHints()
}

// writeOverlay renders the best match. Object results need the query
// keypoints their matches index into.
func writeOverlay(engine *retrieval.Engine, dir string, res *retrieval.SearchResult, q retrieval.Query) (string, error) {
	var kps []vision.KeyPoint
	if res.Route == retrieval.RouteObject && len(res.Results) > 0 {
		pq, err := engine.PrepareQuery(q)
		if err != nil {
			return "", err
		}
		kps = pq.Keypoints
	}
	return report.WriteOverlay(dir, res, q.Color, kps)
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("dataset", "d", "", "corpus directory to search")
	queryCmd.Flags().String("route", "auto", "route: auto, logo or object")
	queryCmd.Flags().Bool("hint-override", false, "force the route from hint words in the query file name")
	queryCmd.Flags().IntP("top", "n", 5, "number of results to print (0 = all)")
	queryCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	queryCmd.Flags().String("overlay-dir", "", "directory to write an image of the best match")
	queryCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "number of parallel workers")
	queryCmd.Flags().Bool("recursive", true, "search the dataset directory recursively")
	queryCmd.Flags().Bool("dedupe", false, "collapse near-duplicate results")
	queryCmd.Flags().Bool("no-progress", false, "do not draw a progress bar")

	registerBindings(queryCmd,
		flagBinding{"dataset.root", "dataset"},
		flagBinding{"dataset.recursive", "recursive"},
		flagBinding{"dataset.dedupe", "dedupe"},
		flagBinding{"output.top_k", "top"},
		flagBinding{"output.format", "format"},
		flagBinding{"output.overlay_dir", "overlay-dir"},
		flagBinding{"parallel.max_workers", "workers"},
	)
}

// GetQueryCommand returns the query command for testing purposes.
func GetQueryCommand() *cobra.Command {
	return queryCmd
}
