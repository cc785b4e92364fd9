package domain

import "time"

// MatchScore is one scored (job, candidate) pair inside a matching run.
// Rows are append-only: a re-run writes a new batch under a new run id and
// never mutates history.
type MatchScore struct {
	RunID       string    `json:"run_id"`
	JobID       string    `json:"job_id"`
	CandidateID string    `json:"candidate_id"`

	SkillScore    float64 `json:"skill_score"`
	SemanticScore float64 `json:"semantic_score"`
	LocationFit   bool    `json:"location_fit"`
	Composite     float64 `json:"composite"`
	// Degraded marks a score computed without semantic similarity because
	// the embedding provider was unavailable for this entity.
	Degraded bool `json:"degraded,omitempty"`

	MatchingSkills []string `json:"matching_skills,omitempty"`
	MissingSkills  []string `json:"missing_skills,omitempty"`

	// Rank is a dense 0-based position within the run's result set,
	// strictly descending by composite, ties broken by candidate id.
	Rank       int       `json:"rank"`
	ComputedAt time.Time `json:"computed_at"`
}

// MatchBatch is the full result set of one engine invocation.
type MatchBatch struct {
	Scores []MatchScore
	// Degraded is true when any entity fell back to skill-only scoring.
	Degraded bool
}
