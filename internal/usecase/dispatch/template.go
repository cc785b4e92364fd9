package dispatch

import (
	"fmt"
	"strings"

	"github.com/jobpay/matchflow/internal/domain"
)

// Render builds the per-channel job-match message. A missing required
// field is a permanent failure: the message can never become sendable
// by retrying.
func Render(
	ch domain.Channel,
	candidate *domain.CandidateProfile,
	job *domain.JobPosting,
	score *domain.MatchScore,
) (Message, error) {
	if job.Title == "" {
		return Message{}, fmt.Errorf("job %s has no title: %w", job.ID, domain.ErrPermanentDelivery)
	}
	if candidate.Name == "" {
		return Message{}, fmt.Errorf("candidate %s has no name: %w", candidate.ID, domain.ErrPermanentDelivery)
	}

	matchPct := int(score.Composite * 100)

	switch ch {
	case domain.ChannelEmail:
		return renderEmail(candidate, job, score, matchPct), nil
	case domain.ChannelSMS:
		return Message{Body: fmt.Sprintf(
			"New job match: %s at %s (%d%% match). Reply STOP to opt out.",
			job.Title, job.Company, matchPct,
		)}, nil
	case domain.ChannelWhatsApp:
		return Message{Body: fmt.Sprintf(
			"Hi %s! We found a %d%% match for you: %s at %s, %s. %s",
			candidate.Name, matchPct, job.Title, job.Company, job.Location, job.SalaryRangeText(),
		)}, nil
	case domain.ChannelPush:
		return Message{
			Subject: fmt.Sprintf("%d%% job match", matchPct),
			Body:    fmt.Sprintf("%s at %s", job.Title, job.Company),
		}, nil
	}
	return Message{}, fmt.Errorf("no template for channel %q: %w", ch, domain.ErrPermanentDelivery)
}

func renderEmail(
	candidate *domain.CandidateProfile, job *domain.JobPosting,
	score *domain.MatchScore, matchPct int,
) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", candidate.Name)
	fmt.Fprintf(&b, "We found a new job matching your profile (%d%% match):\n\n", matchPct)
	fmt.Fprintf(&b, "%s\n%s — %s\n%s\n", job.Title, job.Company, job.Location, job.SalaryRangeText())
	if len(score.MatchingSkills) > 0 {
		fmt.Fprintf(&b, "\nYour matching skills: %s\n", strings.Join(score.MatchingSkills, ", "))
	}
	if job.ApplicationURL != "" {
		fmt.Fprintf(&b, "\nApply here: %s\n", job.ApplicationURL)
	}
	b.WriteString("\nGood luck!\n")

	return Message{
		Subject: fmt.Sprintf("New job match: %s at %s", job.Title, job.Company),
		Body:    b.String(),
	}
}
