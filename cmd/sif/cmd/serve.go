package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/metrics"
	"github.com/MeKo-Tech/sif/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for image search",
	Long: `Load a corpus once and serve similarity searches over HTTP.

The server provides the following endpoints:
  POST /search     - Search with an uploaded query image (multipart field "image")
  GET  /ws/search  - Search over WebSocket with progress updates
  GET  /corpus     - Describe the loaded corpus
  GET  /health     - Health check endpoint
  GET  /metrics    - Prometheus metrics

Examples:
  sif serve --dataset ./corpus
  sif serve --dataset ./corpus --port 8080
  sif serve --dataset ./corpus --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg.Dataset.Root == "" {
			return errors.New("no dataset directory given (use --dataset or dataset.root)")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dsOpts := cfg.ToDatasetOptions()
		dsOpts.Logger = slog.Default()
		corpus, err := dataset.Load(ctx, dsOpts)
		if err != nil {
			return err
		}

		engine := buildEngine(cfg, metrics.NewRecorder(nil))

		sc := cfg.Server
		serverConfig := server.Config{
			Host:           sc.Host,
			Port:           sc.Port,
			CORSOrigin:     sc.CORSOrigin,
			MaxUploadMB:    int64(sc.MaxUploadMB),
			TimeoutSec:     sc.TimeoutSec,
			Report:         cfg.ToReportOptions(),
			ScorePrecision: cfg.Output.ScorePrecision,
			Hints:          hints(cfg),
			RateLimit: server.RateLimitConfig{
				Enabled:           sc.RateLimitEnabled,
				RequestsPerMinute: sc.RequestsPerMinute,
				RequestsPerHour:   sc.RequestsPerHour,
				MaxRequestsPerDay: sc.MaxRequestsPerDay,
				MaxDataPerDay:     int64(sc.MaxDataPerDayMB) * 1024 * 1024,
			},
			Logger: slog.Default(),
		}

		searchServer, err := server.NewServer(serverConfig, engine, corpus)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		mux := http.NewServeMux()
		searchServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		}

		go func() {
			slog.Info("Starting search server", "host", sc.Host, "port", sc.Port, "items", corpus.Len())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := searchServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("dataset", "d", "", "corpus directory to serve")
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("top", 5, "default number of results per search (0 = all)")
	serveCmd.Flags().Bool("dedupe", false, "collapse near-duplicate results")
	serveCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "number of parallel workers per search")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int("max-data-per-day", 0, "maximum upload volume per day per client in MB (0 = unlimited)")

	registerBindings(serveCmd,
		flagBinding{"dataset.root", "dataset"},
		flagBinding{"dataset.dedupe", "dedupe"},
		flagBinding{"server.host", "host"},
		flagBinding{"server.port", "port"},
		flagBinding{"server.cors_origin", "cors-origin"},
		flagBinding{"server.max_upload_mb", "max-upload-size"},
		flagBinding{"server.timeout_sec", "timeout"},
		flagBinding{"server.shutdown_timeout", "shutdown-timeout"},
		flagBinding{"server.rate_limit_enabled", "rate-limit-enabled"},
		flagBinding{"server.requests_per_minute", "requests-per-minute"},
		flagBinding{"server.requests_per_hour", "requests-per-hour"},
		flagBinding{"server.max_requests_per_day", "max-requests-per-day"},
		flagBinding{"server.max_data_per_day_mb", "max-data-per-day"},
		flagBinding{"output.top_k", "top"},
		flagBinding{"parallel.max_workers", "workers"},
	)
}
