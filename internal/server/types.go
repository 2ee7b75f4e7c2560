package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/override"
	"github.com/MeKo-Tech/sif/internal/report"
	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// searcher defines the methods needed by the server from a retrieval engine.
type searcher interface {
	SearchWithProgress(
		ctx context.Context,
		q retrieval.Query,
		items []dataset.Item,
		forced retrieval.Route,
		progress retrieval.ProgressCallback,
	) (*retrieval.SearchResult, error)
}

// Server holds the HTTP server state and dependencies. The engine and the
// corpus are shared read-only by every request.
type Server struct {
	engine         searcher
	corpus         *dataset.Corpus
	reportOpts     report.Options
	scorePrecision int
	hints          override.Hints
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	rateLimiter    *RateLimiter
	logger         *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	Report         report.Options
	ScorePrecision int
	Hints          override.Hints
	RateLimit      RateLimitConfig
	Logger         *slog.Logger
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// CorpusResponse is returned by /corpus.
type CorpusResponse struct {
	Root       string                    `json:"root"`
	Items      int                       `json:"items"`
	Skipped    int                       `json:"skipped"`
	Partitions map[dataset.Partition]int `json:"partitions"`
}

// SearchResponse wraps a search report or an error.
type SearchResponse struct {
	Success bool           `json:"success"`
	Report  *report.Report `json:"report,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// NewServer creates a search server over a loaded corpus.
func NewServer(config Config, engine *retrieval.Engine, corpus *dataset.Corpus) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server requires a retrieval engine")
	}
	if corpus == nil {
		return nil, errors.New("server requires a loaded corpus")
	}
	return newServer(config, engine, corpus), nil
}

func newServer(config Config, engine searcher, corpus *dataset.Corpus) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 60
	}

	s := &Server{
		engine:         engine,
		corpus:         corpus,
		reportOpts:     config.Report,
		scorePrecision: config.ScorePrecision,
		hints:          config.Hints,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		logger:         logger,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/corpus", s.corsMiddleware(s.corpusHandler))
	mux.HandleFunc("/search", s.corsMiddleware(s.rateLimitMiddleware(s.searchHandler)))
	mux.HandleFunc("/ws/search", s.rateLimitMiddleware(s.searchWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// requestContext bounds a search by the configured timeout.
func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
}
