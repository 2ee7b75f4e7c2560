package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MeKo-Tech/sif/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// corpusHandler reports the loaded corpus and its partition sizes.
func (s *Server) corpusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := CorpusResponse{
		Root:       s.corpus.Root,
		Items:      s.corpus.Len(),
		Skipped:    s.corpus.Skipped,
		Partitions: s.corpus.Counts(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes v as a JSON body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone, nothing left to tell the client
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, SearchResponse{Success: false, Error: message})
}
