package policy

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

const engineVersion = "harrier-1.0"

// Processor turns a risk score and policy results into an assessment.
type Processor struct {
	alertThreshold float64
}

// NewProcessor creates a decision processor. threshold must be in (0,1];
// out-of-range values fall back to the default.
func NewProcessor(threshold float64) *Processor {
	if threshold <= 0 || threshold > 1 {
		threshold = domain.DefaultScoringConfig().AlertThreshold
	}
	return &Processor{alertThreshold: threshold}
}

// ProcessInput carries everything the processor needs for one decision.
type ProcessInput struct {
	UserID        string
	Kind          domain.EventKind
	TraceID       string
	Risk          *domain.RiskScore
	PolicyResults []domain.PolicyResult
	StartTime     time.Time
	ScoreDuration time.Duration
	PolicyDuration time.Duration
}

// Process produces the final assessment. An event alerts when its composite
// score reaches the threshold or when any policy triggers.
func (p *Processor) Process(input *ProcessInput) *domain.Assessment {
	status := domain.StatusOK
	reasons := make([]string, 0, 2)

	if input.Risk.Composite >= p.alertThreshold {
		status = domain.StatusAlert
		reasons = append(reasons, "composite risk score above threshold")
	}

	var policyReasons []string
	for _, r := range input.PolicyResults {
		if r.Triggered {
			status = domain.StatusAlert
			if r.Reason != "" {
				policyReasons = append(policyReasons, "policy: "+r.Reason)
			}
		}
	}
	sort.Strings(policyReasons)
	reasons = append(reasons, policyReasons...)

	return &domain.Assessment{
		ID:            uuid.New().String(),
		UserID:        input.UserID,
		Kind:          input.Kind,
		Status:        status,
		Score:         input.Risk.Composite,
		Timestamp:     time.Now().UTC(),
		Breakdown:     input.Risk.Breakdown,
		PolicyResults: input.PolicyResults,
		Reasons:       reasons,
		Metadata: domain.AssessmentMetadata{
			TraceID:       input.TraceID,
			ScoreMs:       input.ScoreDuration.Milliseconds(),
			PolicyMs:      input.PolicyDuration.Milliseconds(),
			TotalMs:       time.Since(input.StartTime).Milliseconds(),
			PoliciesRun:   len(input.PolicyResults),
			EngineVersion: engineVersion,
		},
	}
}

// AlertThreshold returns the configured threshold.
func (p *Processor) AlertThreshold() float64 {
	return p.alertThreshold
}
