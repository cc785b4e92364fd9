package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/domain"
	healthuc "github.com/jobpay/matchflow/internal/usecase/health"
	pipelineuc "github.com/jobpay/matchflow/internal/usecase/pipeline"
	profilesuc "github.com/jobpay/matchflow/internal/usecase/profiles"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeJobNotFound       = "job_not_found"
	codeCandidateNotFound = "candidate_not_found"
	codeRunNotFound       = "run_not_found"
	codeTaskNotFound      = "task_not_found"
	codeRunTerminal       = "run_terminal"
	codeRunActive         = "run_active"
	codeProviderError     = "provider_unavailable"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body for every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API over the matching pipeline.
type Server struct {
	profiles      *profilesuc.Service
	pipeline      *pipelineuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	profiles *profilesuc.Service,
	pipeline *pipelineuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		profiles: profiles,
		pipeline: pipeline,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrJobNotFound, http.StatusNotFound, codeJobNotFound),
		sentinelHandler(domain.ErrCandidateNotFound, http.StatusNotFound, codeCandidateNotFound),
		sentinelHandler(domain.ErrRunNotFound, http.StatusNotFound, codeRunNotFound),
		sentinelHandler(domain.ErrTaskNotFound, http.StatusNotFound, codeTaskNotFound),
		sentinelHandler(domain.ErrRunTerminal, http.StatusConflict, codeRunTerminal),
		sentinelHandler(domain.ErrRunActive, http.StatusConflict, codeRunActive),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/jobs/{jobID}", s.UpsertJob)
		r.Get("/jobs/{jobID}", s.GetJob)
		r.Post("/jobs/{jobID}/runs", s.SubmitRun)

		r.Put("/candidates/{candidateID}", s.UpsertCandidate)
		r.Get("/candidates/{candidateID}", s.GetCandidate)
		r.Delete("/candidates/{candidateID}", s.DeleteCandidate)
		r.Get("/candidates/{candidateID}/matches", s.GetCandidateMatches)

		r.Get("/runs/{runID}", s.GetRun)
		r.Get("/runs/{runID}/matches", s.GetRunMatches)
		r.Get("/runs/{runID}/tasks", s.GetRunTasks)
		r.Delete("/runs/{runID}", s.CancelRun)
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// UpsertJob handles PUT /api/v1/jobs/{jobID}.
func (s *Server) UpsertJob(w http.ResponseWriter, r *http.Request) {
	var job domain.JobPosting
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	job.ID = chi.URLParam(r, "jobID")

	created, err := s.profiles.UpsertJob(r.Context(), &job)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, job)
}

// GetJob handles GET /api/v1/jobs/{jobID}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.profiles.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpsertCandidate handles PUT /api/v1/candidates/{candidateID}.
func (s *Server) UpsertCandidate(w http.ResponseWriter, r *http.Request) {
	var candidate domain.CandidateProfile
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	candidate.ID = chi.URLParam(r, "candidateID")

	created, err := s.profiles.UpsertCandidate(r.Context(), &candidate)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, candidate)
}

// GetCandidate handles GET /api/v1/candidates/{candidateID}.
func (s *Server) GetCandidate(w http.ResponseWriter, r *http.Request) {
	candidate, err := s.profiles.GetCandidate(r.Context(), chi.URLParam(r, "candidateID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

// DeleteCandidate handles DELETE /api/v1/candidates/{candidateID}.
func (s *Server) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.DeleteCandidate(r.Context(), chi.URLParam(r, "candidateID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitRunResponse is the body for POST /jobs/{jobID}/runs. Created is
// false when the signal resolved to an already active run.
type submitRunResponse struct {
	RunID   string `json:"run_id"`
	Created bool   `json:"created"`
}

// SubmitRun handles POST /api/v1/jobs/{jobID}/runs. Duplicate signals for
// a job with an active run return that run, not an error; upstream
// delivery is at-least-once.
func (s *Server) SubmitRun(w http.ResponseWriter, r *http.Request) {
	runID, created, err := s.pipeline.Submit(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/runs/%s", runID))
	writeJSON(w, http.StatusAccepted, submitRunResponse{RunID: runID, Created: created})
}

// GetRun handles GET /api/v1/runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.pipeline.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunMatches handles GET /api/v1/runs/{runID}/matches.
func (s *Server) GetRunMatches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	scores, err := s.pipeline.RunMatches(r.Context(), chi.URLParam(r, "runID"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// GetRunTasks handles GET /api/v1/runs/{runID}/tasks.
func (s *Server) GetRunTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.pipeline.RunTasks(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.NotificationTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetCandidateMatches handles GET /api/v1/candidates/{candidateID}/matches.
func (s *Server) GetCandidateMatches(w http.ResponseWriter, r *http.Request) {
	scores, err := s.pipeline.CandidateMatches(r.Context(), chi.URLParam(r, "candidateID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if scores == nil {
		scores = []domain.MatchScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

// CancelRun handles DELETE /api/v1/runs/{runID}. Cancellation is
// cooperative: the run finishes cancelled at its next transition boundary.
func (s *Server) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.pipeline.Cancel(r.Context(), runID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":           runID,
		"cancel_requested": true,
	})
}

// healthResponse is the body for GET /health.
type healthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	MatchQueue  int64             `json:"match_queue_depth"`
	NotifyQueue int64             `json:"notify_queue_depth"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:      string(report.Status),
		Checks:      checks,
		MatchQueue:  report.MatchQueue,
		NotifyQueue: report.NotifyQueue,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrJobNotFound,
		domain.ErrCandidateNotFound,
		domain.ErrRunNotFound,
		domain.ErrTaskNotFound,
		domain.ErrRunTerminal,
		domain.ErrRunActive,
		domain.ErrProviderUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
