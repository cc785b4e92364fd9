package matching

import (
	"math"

	"github.com/jobpay/matchflow/internal/domain"
)

// skillOverlap holds the skill comparison of one (job, candidate) pair.
type skillOverlap struct {
	RequiredRatio  float64
	PreferredRatio float64
	HasPreferred   bool
	Matching       []string
	Missing        []string
}

// compareSkills computes required/preferred overlap ratios plus the
// matching and missing skill lists, in the job's original casing.
func compareSkills(job *domain.JobPosting, candidate *domain.CandidateProfile) skillOverlap {
	candSet := make(map[string]struct{}, len(candidate.Skills))
	for _, s := range candidate.Skills {
		candSet[domain.NormalizeSkill(s)] = struct{}{}
	}

	var ov skillOverlap
	requiredHits := 0
	for _, s := range job.RequiredSkills {
		if _, ok := candSet[domain.NormalizeSkill(s)]; ok {
			requiredHits++
			ov.Matching = append(ov.Matching, s)
		} else {
			ov.Missing = append(ov.Missing, s)
		}
	}
	if len(job.RequiredSkills) > 0 {
		ov.RequiredRatio = float64(requiredHits) / float64(len(job.RequiredSkills))
	}

	if len(job.PreferredSkills) > 0 {
		ov.HasPreferred = true
		preferredHits := 0
		for _, s := range job.PreferredSkills {
			if _, ok := candSet[domain.NormalizeSkill(s)]; ok {
				preferredHits++
				ov.Matching = append(ov.Matching, s)
			}
		}
		ov.PreferredRatio = float64(preferredHits) / float64(len(job.PreferredSkills))
	}

	return ov
}

// skillScore folds the overlap into one [0,1] score. Without preferred
// skills the required ratio carries the whole score.
func skillScore(ov skillOverlap, required, preferred float64) float64 {
	if !ov.HasPreferred {
		return ov.RequiredRatio
	}
	total := required + preferred
	if total <= 0 {
		return ov.RequiredRatio
	}
	return (required*ov.RequiredRatio + preferred*ov.PreferredRatio) / total
}

// cosineSimilarity returns the cosine of two vectors, 0 for degenerate input.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// semanticScore maps cosine similarity from [-1,1] to [0,1].
func semanticScore(jobVec, candVec []float32) float64 {
	return (cosineSimilarity(jobVec, candVec) + 1) / 2
}

// sameLocation compares normalized location strings; empty never matches.
func sameLocation(a, b string) bool {
	na, nb := domain.NormalizeText(a), domain.NormalizeText(b)
	return na != "" && na == nb
}
