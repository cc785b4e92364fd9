package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// QueueInspector reports the work queue depths.
type QueueInspector interface {
	Depths(ctx context.Context) (match, notify int64, err error)
}
