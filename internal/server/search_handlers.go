package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/sif/internal/override"
	"github.com/MeKo-Tech/sif/internal/report"
	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/utils"
)

// searchRequest is a decoded search call, independent of transport.
type searchRequest struct {
	Query        retrieval.Query
	Route        retrieval.Route
	TopK         int
	Format       report.OutputFormat
	HintOverride bool
}

// searchHandler runs a query uploaded as multipart form data.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseSearchRequest(w, r)
	if err != nil {
		searchRequestsTotal.WithLabelValues("http", "error").Inc()
		return // error already written
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	start := time.Now()
	rep, err := s.runSearch(ctx, req, nil)
	duration := time.Since(start)

	if err != nil {
		searchRequestsTotal.WithLabelValues("http", "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeErrorResponse(w, fmt.Sprintf("Search failed: %v", err), status)
		return
	}

	searchRequestsTotal.WithLabelValues("http", "success").Inc()
	searchDuration.WithLabelValues("http").Observe(duration.Seconds())

	s.writeSearchResponse(w, rep, req.Format)
}

// parseSearchRequest reads the multipart fields image, route, top, format
// and hint_override.
func (s *Server) parseSearchRequest(w http.ResponseWriter, r *http.Request) (*searchRequest, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, err
	}

	req, err := s.buildSearchRequest(
		header.Filename,
		data,
		r.FormValue("route"),
		r.FormValue("top"),
		r.FormValue("format"),
		r.FormValue("hint_override"),
	)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	return req, nil
}

// buildSearchRequest validates the raw request fields shared by both
// transports. Empty fields take the server defaults; the format defaults to
// JSON.
func (s *Server) buildSearchRequest(name string, data []byte, route, top, format, hint string) (*searchRequest, error) {
	if len(data) == 0 {
		return nil, errors.New("no image data provided")
	}
	img, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image format: %w", err)
	}
	if name == "" {
		name = "upload"
	}
	q, err := retrieval.NewQuery(name, img)
	if err != nil {
		return nil, err
	}

	req := &searchRequest{Query: q, TopK: s.reportOpts.TopK}
	if req.Route, err = retrieval.ParseRoute(route); err != nil {
		return nil, err
	}
	if strings.TrimSpace(top) != "" {
		k, err := strconv.Atoi(strings.TrimSpace(top))
		if err != nil || k < 0 {
			return nil, fmt.Errorf("invalid top value %q", top)
		}
		req.TopK = k
	}
	req.Format = report.FormatJSON
	if strings.TrimSpace(format) != "" {
		if req.Format, err = report.ParseFormat(format); err != nil {
			return nil, err
		}
	}
	if hint != "" {
		if req.HintOverride, err = strconv.ParseBool(hint); err != nil {
			return nil, fmt.Errorf("invalid hint_override value %q", hint)
		}
	}
	return req, nil
}

// runSearch executes req against the shared corpus and builds its report.
func (s *Server) runSearch(ctx context.Context, req *searchRequest, progress retrieval.ProgressCallback) (*report.Report, error) {
	forced := override.Forced(req.Route, req.Query.Name, s.hints, req.HintOverride)

	res, err := s.engine.SearchWithProgress(ctx, req.Query, s.corpus.Items, forced, progress)
	if err != nil {
		return nil, err
	}

	opts := s.reportOpts
	opts.TopK = req.TopK
	return report.Build(res, opts), nil
}

// writeSearchResponse writes the report in the requested format.
func (s *Server) writeSearchResponse(w http.ResponseWriter, rep *report.Report, format report.OutputFormat) {
	switch format {
	case report.FormatText, report.FormatCSV:
		contentType := "text/plain; charset=utf-8"
		if format == report.FormatCSV {
			contentType = "text/csv; charset=utf-8"
		}
		var buf bytes.Buffer
		if err := report.Format(&buf, rep, format, s.scorePrecision); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Failed to format report: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if _, err := w.Write(buf.Bytes()); err != nil {
			s.logger.Error("Failed to write response", "error", err)
		}
	default:
		s.writeJSON(w, http.StatusOK, SearchResponse{Success: true, Report: rep})
	}
}
