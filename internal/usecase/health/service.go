package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results and pipeline queue depths.
type Report struct {
	Status      Status
	Checks      map[string]CheckResult
	MatchQueue  int64
	NotifyQueue int64
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	queue     QueueInspector
}

// New creates a Service. embedding and queue can be nil.
func New(db DBPinger, embedding EmbeddingChecker, queue QueueInspector) *Service {
	return &Service{db: db, embedding: embedding, queue: queue}
}

// Check runs health checks against all components. A failing embedding
// provider degrades the report but matching still runs skill-only, so the
// process stays up.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	report := Report{Checks: checks}
	if s.queue != nil {
		match, notify, err := s.queue.Depths(ctx)
		if err != nil {
			checks["queue"] = CheckError
		} else {
			checks["queue"] = CheckOK
			report.MatchQueue = match
			report.NotifyQueue = notify
		}
	}

	report.Status = Healthy
	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}
	return report
}
