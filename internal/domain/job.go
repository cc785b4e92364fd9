package domain

import (
	"fmt"
	"strings"
)

// JobType is the employment type of a posting.
type JobType string

const (
	JobTypeFullTime   JobType = "full_time"
	JobTypePartTime   JobType = "part_time"
	JobTypeContract   JobType = "contract"
	JobTypeFreelance  JobType = "freelance"
	JobTypeInternship JobType = "internship"
)

// JobPosting is a posting as seen by the matching core. Immutable for
// matching purposes: an edit produces a new matching cycle.
type JobPosting struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Description     string   `json:"description"`
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills,omitempty"`
	Location        string   `json:"location"`
	RemoteAllowed   bool     `json:"remote_allowed"`
	JobType         JobType  `json:"job_type"`
	SalaryMin       float64  `json:"salary_min,omitempty"`
	SalaryMax       float64  `json:"salary_max,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	ExperienceMin   int      `json:"experience_min,omitempty"`
	ExperienceMax   int      `json:"experience_max,omitempty"`
	ApplicationURL  string   `json:"application_url,omitempty"`
}

// Validate checks posting fields required before a run may start.
func (j *JobPosting) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}
	if j.Title == "" {
		return fmt.Errorf("%w: job %s has no title", ErrInvalidInput, j.ID)
	}
	if len(j.RequiredSkills) == 0 {
		return fmt.Errorf("%w: job %s has no required skills", ErrInvalidInput, j.ID)
	}
	switch j.JobType {
	case "", JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeFreelance, JobTypeInternship:
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidInput, j.JobType)
	}
	return nil
}

// EmbeddingText is the text vectorized for semantic scoring.
func (j *JobPosting) EmbeddingText() string {
	parts := []string{j.Title}
	if j.Description != "" {
		parts = append(parts, j.Description)
	}
	if len(j.RequiredSkills) > 0 {
		parts = append(parts, "skills: "+strings.Join(j.RequiredSkills, ", "))
	}
	return strings.Join(parts, "\n")
}

// ContentHash keys the cached job embedding.
func (j *JobPosting) ContentHash() string {
	return ContentHash(j.EmbeddingText())
}

// SalaryRangeText formats the salary range for notification templates.
func (j *JobPosting) SalaryRangeText() string {
	cur := j.Currency
	if cur == "" {
		cur = "USD"
	}
	switch {
	case j.SalaryMin > 0 && j.SalaryMax > 0:
		return fmt.Sprintf("%s %.0f - %.0f", cur, j.SalaryMin, j.SalaryMax)
	case j.SalaryMin > 0:
		return fmt.Sprintf("%s %.0f+", cur, j.SalaryMin)
	case j.SalaryMax > 0:
		return fmt.Sprintf("Up to %s %.0f", cur, j.SalaryMax)
	}
	return "Salary not specified"
}
