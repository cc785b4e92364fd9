package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// CandidateProfile is a candidate as seen by the matching core.
// Profiles are created and updated by the external profile service;
// the core only reads them.
type CandidateProfile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Skills          []string  `json:"skills"`
	Summary         string    `json:"summary"`
	Location        string    `json:"location"`
	RemoteOpen      bool      `json:"remote_open"`
	ExperienceYears int       `json:"experience_years"`
	SalaryMin       float64   `json:"salary_min,omitempty"`
	SalaryMax       float64   `json:"salary_max,omitempty"`
	Channels        []Channel `json:"channels"`

	// Per-channel delivery addresses.
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
}

// Validate checks profile fields required by the matching core.
func (c *CandidateProfile) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: candidate id is required", ErrInvalidInput)
	}
	if len(c.Skills) == 0 && c.Summary == "" {
		return fmt.Errorf("%w: candidate %s has no skills and no summary", ErrInvalidInput, c.ID)
	}
	for _, ch := range c.Channels {
		if _, err := ParseChannel(string(ch)); err != nil {
			return err
		}
	}
	return nil
}

// EmbeddingText is the text vectorized for semantic scoring.
func (c *CandidateProfile) EmbeddingText() string {
	parts := make([]string, 0, 2)
	if c.Summary != "" {
		parts = append(parts, c.Summary)
	}
	if len(c.Skills) > 0 {
		parts = append(parts, "skills: "+strings.Join(c.Skills, ", "))
	}
	return strings.Join(parts, "\n")
}

// ContentHash returns sha256 over the normalized matching-relevant content.
// The embedding cache is keyed by it, so a skills or summary change forces
// a recompute while unchanged profiles reuse the cached vector.
func (c *CandidateProfile) ContentHash() string {
	return ContentHash(c.EmbeddingText())
}

// AddressFor returns the delivery address for a channel, empty when unset.
func (c *CandidateProfile) AddressFor(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelSMS, ChannelWhatsApp:
		return c.Phone
	case ChannelPush:
		return c.DeviceToken
	}
	return ""
}

// ContentHash returns the cache key scheme used across the system:
// hex sha256 of the normalized text.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(h[:])
}

// NormalizeText lowercases and collapses whitespace so that formatting-only
// edits do not invalidate cached embeddings.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// NormalizeSkill canonicalizes a skill token for overlap comparison.
func NormalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
