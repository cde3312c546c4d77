// Package api exposes the topology and passage operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/riverbend-data/passage.report/internal/db"
	"github.com/riverbend-data/passage.report/internal/topology"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db           *db.DB
	modelVersion string
}

func NewServer(database *db.DB, modelVersion string) *Server {
	return &Server{
		db:           database,
		modelVersion: modelVersion,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/api/topology", s.applyTopology)
	mux.HandleFunc("/api/topology/runs", s.listTopologyRuns)
	mux.HandleFunc("/api/detections", s.listDetections)
	mux.HandleFunc("/api/passages", s.listPassages)
	mux.HandleFunc("/api/passages/rebuild", s.rebuildPassages)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// applyTopology runs one remapper invocation against the stored collection
// and returns the distinct-triple report. Invalid parameter combinations are
// the caller's error: 400 with the validation message, nothing written.
func (s *Server) applyTopology(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var cfg topology.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	report, err := s.db.ApplyTopology(r.Context(), cfg)
	if err != nil {
		var cfgErr *topology.ConfigError
		if errors.As(err, &cfgErr) {
			s.writeJSONError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to apply topology: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write report")
	}
}

func (s *Server) listTopologyRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runs, err := s.db.TopologyRuns(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list topology runs: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write topology runs")
	}
}

// timeRange parses optional RFC3339 start/end query parameters, defaulting to
// the last 24 hours.
func timeRange(r *http.Request) (start, end time.Time, err error) {
	end = time.Now().UTC()
	start = end.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, fmt.Errorf("invalid 'start' parameter: %v", err)
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, fmt.Errorf("invalid 'end' parameter: %v", err)
		}
	}
	return start, end, nil
}

func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start, end, err := timeRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.db.DetectionsInRange(r.Context(), start, end)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve detections: %v", err))
		return
	}
	if rows == nil {
		rows = []db.DetectionRow{}
	}
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write detections")
	}
}

func (s *Server) listPassages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start, end, err := timeRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.db.PassagesInRange(r.Context(), start, end)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve passages: %v", err))
		return
	}
	if rows == nil {
		rows = []db.PassageRow{}
	}
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write passages")
	}
}

type rebuildRequest struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// rebuildPassages re-derives passages for the requested range, or the full
// history when no range is given.
func (s *Server) rebuildPassages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req rebuildRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	worker := db.NewPassageWorker(s.db, s.modelVersion)
	var err error
	switch {
	case req.Start == "" && req.End == "":
		err = worker.RunFullHistory(r.Context())
	case req.Start != "" && req.End != "":
		var start, end time.Time
		if start, err = time.Parse(time.RFC3339, req.Start); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'start': %v", err))
			return
		}
		if end, err = time.Parse(time.RFC3339, req.End); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'end': %v", err))
			return
		}
		err = worker.RunRange(r.Context(), start, end)
	default:
		s.writeJSONError(w, http.StatusBadRequest, "Supply both 'start' and 'end', or neither")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to rebuild passages: %v", err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "rebuilt"})
}
