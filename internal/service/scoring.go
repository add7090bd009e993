package service

import "github.com/Harshitk-cp/collective/internal/domain"

const (
	CrisisSeverityWeight = 0.5
	CrisisSpeedWeight    = 0.5
	// CrisisDurationScale is the duration at which the speed component halves.
	CrisisDurationScale = 10.0
)

// CrisisScorer rates how effectively a crisis was handled, in [0,1].
type CrisisScorer func(d *domain.CrisisDetails) float64

// TeamScorer rates how effectively a team collaborated, in [0,1].
type TeamScorer func(d *domain.CollaborationDetails) float64

type Scoring struct {
	Crisis CrisisScorer
	Team   TeamScorer
}

func DefaultScoring() Scoring {
	return Scoring{Crisis: CrisisEffectiveness, Team: TeamEffectiveness}
}

// CrisisEffectiveness is zero for unresolved crises. Resolved crises score
// higher the more severe they were and the faster they were handled.
func CrisisEffectiveness(d *domain.CrisisDetails) float64 {
	if d == nil || !d.Resolved {
		return 0
	}
	var severity, duration float64
	if d.Severity != nil {
		severity = *d.Severity
	}
	if d.Duration != nil {
		duration = *d.Duration
	}
	speed := 1 / (1 + duration/CrisisDurationScale)
	return domain.Clamp01(CrisisSeverityWeight*severity + CrisisSpeedWeight*speed)
}

// TeamEffectiveness is the mean of the signals present on the report:
// effectiveness, satisfaction and success.
func TeamEffectiveness(d *domain.CollaborationDetails) float64 {
	if d == nil {
		return 0
	}
	var sum float64
	n := 0
	if d.Effectiveness != nil {
		sum += *d.Effectiveness
		n++
	}
	if d.Satisfaction != nil {
		sum += *d.Satisfaction
		n++
	}
	if d.Success != nil {
		if *d.Success {
			sum++
		}
		n++
	}
	if n == 0 {
		return 0
	}
	return domain.Clamp01(sum / float64(n))
}
