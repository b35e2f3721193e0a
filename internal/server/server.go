// Package server is the HTTP front of the prediction service. It routes
// prediction and drift-monitoring requests, renders report pages, and streams
// live prediction events over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"winequality-api/internal/drift"
	"winequality-api/internal/metrics"
	"winequality-api/internal/serving"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// DriftChecker runs one drift check on demand.
type DriftChecker interface {
	Check() (*drift.Report, error)
}

// DriftRecorder receives the outcome of a completed drift check.
type DriftRecorder interface {
	RecordDriftReport(driftShare float64, driftedFeatures int)
}

// CSVExporter dumps the inference log as CSV for external tooling.
type CSVExporter interface {
	ExportCSV(w io.Writer) error
}

// Config carries the server's runtime options.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReportsDir   string
}

// Server owns the router and the underlying http.Server.
type Server struct {
	svc        *serving.Service
	checker    DriftChecker
	driftRec   DriftRecorder
	rec        metrics.Recorder
	logs       CSVExporter
	hub        *LiveHub
	reportsDir string
	httpServer *http.Server
}

// New builds the server and its routes.
func New(cfg Config, svc *serving.Service, checker DriftChecker, driftRec DriftRecorder, rec metrics.Recorder, logs CSVExporter, hub *LiveHub) *Server {
	s := &Server{
		svc:        svc,
		checker:    checker,
		driftRec:   driftRec,
		rec:        rec,
		logs:       logs,
		hub:        hub,
		reportsDir: cfg.ReportsDir,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/check_drift", s.handleCheckDrift).Methods(http.MethodGet)
	r.HandleFunc("/drift_report", s.handleDriftReport).Methods(http.MethodGet)
	r.HandleFunc("/data_profiling", s.handleDataProfiling).Methods(http.MethodGet)
	r.HandleFunc("/inference_log.csv", s.handleInferenceLog).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/ws/live", hub.HandleWS).Methods(http.MethodGet)
	}
	r.Use(requestLogger)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting prediction server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := s.svc.HandlePredict(raw)
	if err != nil {
		var verr *serving.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		log.Error().Err(err).Msg("prediction failed")
		if s.rec != nil {
			s.rec.ErrorsInc()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"predicted_quality": result.PredictedQuality})
}

func (s *Server) handleCheckDrift(w http.ResponseWriter, r *http.Request) {
	report, err := s.runDriftCheck(w)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDriftReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.runDriftCheck(w)
	if err != nil {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := driftReportTemplate.Execute(w, report); err != nil {
		log.Error().Err(err).Msg("failed to render drift report")
	}
}

// runDriftCheck executes a check and maps failures to responses. A missing
// baseline is an operational problem on the drift path only, so it answers
// 503 without affecting prediction serving.
func (s *Server) runDriftCheck(w http.ResponseWriter) (*drift.Report, error) {
	report, err := s.checker.Check()
	if err != nil {
		var cerr *drift.ConfigurationError
		if errors.As(err, &cerr) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": cerr.Error()})
			return nil, err
		}
		log.Error().Err(err).Msg("drift check failed")
		if s.rec != nil {
			s.rec.ErrorsInc()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "drift check failed"})
		return nil, err
	}

	if s.driftRec != nil && !report.InsufficientData {
		drifted := 0
		for _, fd := range report.Features {
			if fd.Drifted {
				drifted++
			}
		}
		s.driftRec.RecordDriftReport(report.DriftShare, drifted)
	}

	return report, nil
}

func (s *Server) handleDataProfiling(w http.ResponseWriter, r *http.Request) {
	reportPath := filepath.Join(s.reportsDir, "data_profiling.html")
	if _, err := os.Stat(reportPath); err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<h1>Profiling report not found. Run the data validation pipeline first.</h1>")
		return
	}
	http.ServeFile(w, r, reportPath)
}

func (s *Server) handleInferenceLog(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "inference log not configured"})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := s.logs.ExportCSV(w); err != nil {
		log.Error().Err(err).Msg("failed to export inference log")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Error().Err(err).Msg("failed to render index")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
