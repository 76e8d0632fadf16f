// Package api exposes read-only HTTP access to persisted check runs.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ferrous-data/condition.report/internal/db"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultRunLimit bounds /api/runs when no limit parameter is given.
const defaultRunLimit = 50

// maxRunLimit is the hard ceiling for the limit parameter.
const maxRunLimit = 500

type Server struct {
	db *db.DB
}

func NewServer(database *db.DB) *Server {
	return &Server{db: database}
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
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
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
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.runSubresource)
	mux.HandleFunc("/runs/", s.runChart)
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

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := defaultRunLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxRunLimit {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// runSubresource serves /api/runs/{id}, /api/runs/{id}/values and
// /api/runs/{id}/errors.
func (s *Server) runSubresource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing run ID")
		return
	}
	runID := parts[0]

	rec, err := s.db.GetRun(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	switch {
	case len(parts) == 1:
		if err := json.NewEncoder(w).Encode(rec); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		}

	case len(parts) == 2 && parts[1] == "values":
		values, err := s.db.RunValues(runID)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve values: %v", err))
			return
		}
		if values == nil {
			values = []db.RunValue{}
		}
		if err := json.NewEncoder(w).Encode(values); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write values")
		}

	case len(parts) == 2 && parts[1] == "errors":
		scanErrs, err := s.db.RunScanErrors(runID)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve scan errors: %v", err))
			return
		}
		if scanErrs == nil {
			scanErrs = []db.RunScanError{}
		}
		if err := json.NewEncoder(w).Encode(scanErrs); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write scan errors")
		}

	default:
		s.writeJSONError(w, http.StatusNotFound, "Unknown run resource")
	}
}
