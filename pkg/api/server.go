// Package api exposes the batch simulation service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"simulator/pkg/batch"
	"simulator/pkg/engine"
	"simulator/pkg/llm/middleware/metrics"
	"simulator/pkg/logx"
	"simulator/pkg/results"
)

const serviceName = "LLM Simulation & Evaluation Service"

// Version is reported by the service info and health endpoints.
const Version = "1.0.0"

// Server routes batch simulation requests to the processor and serves
// stored results. Batches run in the background; all endpoints return
// JSON.
type Server struct {
	processor *batch.Processor
	exporter  *results.Exporter
	archive   *results.Archive
	usage     *metrics.InternalRecorder
	healthy   func() error
	logger    *logx.Logger
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithArchive persists finished batches into the SQLite archive.
func WithArchive(archive *results.Archive) Option {
	return func(s *Server) { s.archive = archive }
}

// WithUsageRecorder enables the per-batch cost endpoint.
func WithUsageRecorder(usage *metrics.InternalRecorder) Option {
	return func(s *Server) { s.usage = usage }
}

// WithHealthCheck sets the check behind /api/health. A non-nil error
// marks the service unhealthy.
func WithHealthCheck(check func() error) Option {
	return func(s *Server) { s.healthy = check }
}

// NewServer creates the HTTP server around a batch processor.
func NewServer(processor *batch.Processor, exporter *results.Exporter, opts ...Option) *Server {
	s := &Server{
		processor: processor,
		exporter:  exporter,
		logger:    logx.NewLogger("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes sets up HTTP routes on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/batches", s.handleBatches)
	mux.HandleFunc("/api/batches/", s.handleBatch)
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":     serviceName,
		"version":     Version,
		"description": "Service for simulating and evaluating LLM conversations",
		"endpoints": map[string]string{
			"health":            "/api/health",
			"launch_batch":      "POST /api/batches",
			"list_batches":      "GET /api/batches",
			"get_batch_status":  "GET /api/batches/{batch_id}",
			"get_batch_results": "GET /api/batches/{batch_id}/results",
			"get_batch_summary": "GET /api/batches/{batch_id}/summary",
			"get_batch_cost":    "GET /api/batches/{batch_id}/cost",
			"cancel_batch":      "POST /api/batches/{batch_id}/cancel",
			"metrics":           "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"version":   Version,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.healthy != nil {
		if err := s.healthy(); err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBatches(w)
	case http.MethodPost:
		s.launchBatch(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleBatch dispatches /api/batches/{id} and its sub-resources.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	batchID, action, _ := strings.Cut(path, "/")
	if batchID == "" {
		writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.batchStatus(w, batchID)
	case "results":
		s.batchResults(w, r, batchID)
	case "summary":
		s.batchSummary(w, batchID)
	case "cost":
		s.batchCost(w, batchID)
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.cancelBatch(w, batchID)
	default:
		writeError(w, http.StatusNotFound, "Endpoint not found")
	}
}

type scenarioPayload struct {
	Name      *string            `json:"name"`
	Variables *map[string]string `json:"variables"`
}

type launchRequest struct {
	Scenarios []scenarioPayload `json:"scenarios"`
}

func (s *Server) launchBatch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request must be JSON")
		return
	}
	if len(req.Scenarios) == 0 {
		writeError(w, http.StatusBadRequest, "No scenarios provided")
		return
	}

	scenarios := make([]engine.Scenario, 0, len(req.Scenarios))
	for i, sc := range req.Scenarios {
		if sc.Name == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Scenario %d missing 'name' field", i))
			return
		}
		if sc.Variables == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Scenario %d missing 'variables' field", i))
			return
		}
		scenarios = append(scenarios, engine.Scenario{Name: *sc.Name, Variables: *sc.Variables})
	}

	batchID := s.processor.CreateJob(scenarios)
	go s.runBatch(batchID)

	s.logger.Info("launched batch %s with %d scenarios", batchID, len(scenarios))
	writeJSON(w, http.StatusCreated, map[string]any{
		"batch_id":        batchID,
		"status":          "launched",
		"total_scenarios": len(scenarios),
	})
}

// runBatch drives a batch to completion in the background and exports
// its results.
func (s *Server) runBatch(batchID string) {
	result, err := s.processor.Run(context.Background(), batchID, nil)
	if err != nil {
		s.logger.Error("background batch %s failed: %v", batchID, err)
		return
	}

	if _, err := s.exporter.SaveNDJSON(batchID, result.Records); err != nil {
		s.logger.Error("save NDJSON for batch %s: %v", batchID, err)
	}
	if _, err := s.exporter.SaveCSV(batchID, result.Records, ""); err != nil {
		s.logger.Error("save CSV for batch %s: %v", batchID, err)
	}
	if _, err := s.exporter.SaveSummary(results.Summarize(batchID, result.Records)); err != nil {
		s.logger.Error("save summary for batch %s: %v", batchID, err)
	}
	if s.archive != nil {
		if err := s.archive.StoreBatch(context.Background(), batchID, result.Records); err != nil {
			s.logger.Error("archive batch %s: %v", batchID, err)
		}
	}
	s.logger.Info("batch %s finished with status %s", batchID, result.Status)
}

func (s *Server) listBatches(w http.ResponseWriter) {
	jobs := s.processor.Store().List()
	for i := range jobs {
		jobs[i].Records = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batches":     jobs,
		"total_count": len(jobs),
	})
}

func (s *Server) batchStatus(w http.ResponseWriter, batchID string) {
	job, err := s.processor.Store().Get(batchID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Batch %s not found", batchID))
		return
	}
	// Records live behind /results; the status payload stays counters-only.
	job.Records = nil
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) batchResults(w http.ResponseWriter, r *http.Request, batchID string) {
	job, ok := s.finishedJob(w, batchID)
	if !ok {
		return
	}

	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{
			"batch_id":      batchID,
			"results":       job.Records,
			"total_results": len(job.Records),
		})
	case "csv":
		s.serveExport(w, r, batchID, ".csv", "text/csv")
	case "ndjson":
		s.serveExport(w, r, batchID, ".ndjson", "application/x-ndjson")
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown format %q", format))
	}
}

// serveExport streams the most recent exported file for a batch.
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, batchID, ext, contentType string) {
	files, err := s.exporter.ListFiles(batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	for _, f := range files {
		if strings.HasSuffix(f.Filename, ext) {
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Content-Disposition",
				fmt.Sprintf("attachment; filename=batch_%s_results%s", batchID, ext))
			http.ServeFile(w, r, f.Path)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("%s results not found", strings.ToUpper(strings.TrimPrefix(ext, "."))))
}

func (s *Server) batchSummary(w http.ResponseWriter, batchID string) {
	job, ok := s.finishedJob(w, batchID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, results.Summarize(batchID, job.Records))
}

func (s *Server) batchCost(w http.ResponseWriter, batchID string) {
	job, err := s.processor.Store().Get(batchID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Batch %s not found", batchID))
		return
	}
	if s.usage == nil {
		writeError(w, http.StatusNotFound, "Cost tracking is not enabled")
		return
	}

	var (
		sessions  []*metrics.SessionUsage
		totalCost float64
		tokens    int64
	)
	for i := range job.Records {
		sessionID := job.Records[i].SessionID
		if sessionID == "" {
			continue
		}
		if u := s.usage.SessionUsage(sessionID); u != nil {
			sessions = append(sessions, u)
			totalCost += u.TotalCostUSD
			tokens += u.TotalTokens
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":       batchID,
		"total_cost_usd": totalCost,
		"total_tokens":   tokens,
		"sessions":       sessions,
	})
}

func (s *Server) cancelBatch(w http.ResponseWriter, batchID string) {
	if _, err := s.processor.Store().Get(batchID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Batch %s not found", batchID))
		return
	}
	if !s.processor.Store().Cancel(batchID) {
		writeError(w, http.StatusConflict, "Batch is not running")
		return
	}
	s.logger.Info("cancel requested for batch %s", batchID)
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id": batchID,
		"status":   string(batch.StatusCancelled),
	})
}

// finishedJob loads a job and rejects batches that are still in flight.
func (s *Server) finishedJob(w http.ResponseWriter, batchID string) (batch.Job, bool) {
	job, err := s.processor.Store().Get(batchID)
	if err != nil {
		if errors.Is(err, batch.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Batch %s not found", batchID))
		} else {
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return batch.Job{}, false
	}
	if job.Status != batch.StatusCompleted && job.Status != batch.StatusCancelled {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          "Batch not completed",
			"current_status": string(job.Status),
		})
		return batch.Job{}, false
	}
	return job, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logx.NewLogger("api").Error("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
