package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sif/internal/benchmark"
	"github.com/MeKo-Tech/sif/internal/dataset"
)

var benchCmd = &cobra.Command{
	Use:   "bench <image>...",
	Short: "Time the object and logo routes for query images",
	Long: `Run every query image through both routes against the corpus and report
per-route timings, allocation and hit counts. Classification is reported but
does not pick the route, so both cascades are always measured.

Examples:
  sif bench photo.jpg logo.png --dataset ./corpus
  sif bench photo.jpg --dataset ./corpus --iterations 10 --csv bench.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBench,
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	iterations, _ := cmd.Flags().GetInt("iterations")
	csvPath, _ := cmd.Flags().GetString("csv")

	if cfg.Dataset.Root == "" {
		return errors.New("no dataset directory given (use --dataset or dataset.root)")
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

	b := benchmark.NewRouteBenchmark(buildEngine(cfg, nil), corpus.Items)
	for _, path := range args {
		q, err := loadQuery(path)
		if err != nil {
			return err
		}
		b.AddQuery(q)
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Running %d iterations per route...\n", iterations)
	results, err := b.Run(ctx, iterations)
	if err != nil {
		return err
	}

	b.PrintDetailedResults(cmd.OutOrStdout())

	if csvPath != "" {
		f, err := os.Create(csvPath) //nolint:gosec // G304: user-chosen output path
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", csvPath, err)
		}
		defer func() { _ = f.Close() }()
		if err := benchmark.WriteCSV(f, results); err != nil {
			return fmt.Errorf("failed to write %s: %w", csvPath, err)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Results saved to: %s\n", csvPath)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringP("dataset", "d", "", "corpus directory to search")
	benchCmd.Flags().IntP("iterations", "i", 3, "timed searches per route and query")
	benchCmd.Flags().String("csv", "", "also write the results as CSV to this file")
	benchCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "number of parallel workers")

	registerBindings(benchCmd,
		flagBinding{"dataset.root", "dataset"},
		flagBinding{"parallel.max_workers", "workers"},
	)
}
