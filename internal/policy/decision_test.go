package policy

import (
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestProcessor(t *testing.T) {
	proc := NewProcessor(0.7)

	input := func(composite float64, results []domain.PolicyResult) *ProcessInput {
		return &ProcessInput{
			UserID:        "USER_000001",
			Kind:          domain.KindTransaction,
			TraceID:       "trace-1",
			Risk:          testRisk(composite),
			PolicyResults: results,
			StartTime:     time.Now(),
			ScoreDuration: 2 * time.Millisecond,
		}
	}

	t.Run("BelowThresholdOK", func(t *testing.T) {
		a := proc.Process(input(0.3, nil))
		if a.Status != domain.StatusOK {
			t.Errorf("status = %q, want OK", a.Status)
		}
		if len(a.Reasons) != 0 {
			t.Errorf("unexpected reasons: %v", a.Reasons)
		}
		if a.Score != 0.3 {
			t.Errorf("score = %f, want 0.3", a.Score)
		}
	})

	t.Run("AtThresholdAlerts", func(t *testing.T) {
		a := proc.Process(input(0.7, nil))
		if a.Status != domain.StatusAlert {
			t.Errorf("status = %q, want ALERT", a.Status)
		}
		if len(a.Reasons) != 1 || a.Reasons[0] != "composite risk score above threshold" {
			t.Errorf("reasons = %v", a.Reasons)
		}
	})

	t.Run("TriggeredPolicyForcesAlert", func(t *testing.T) {
		results := []domain.PolicyResult{
			{PolicyID: "velocity", Triggered: true, Score: 1, Reason: "Transaction burst"},
			{PolicyID: "calm", Triggered: false, Score: 0},
		}
		a := proc.Process(input(0.2, results))
		if a.Status != domain.StatusAlert {
			t.Errorf("status = %q, want ALERT on policy hit despite low composite", a.Status)
		}
		if len(a.Reasons) != 1 || a.Reasons[0] != "policy: Transaction burst" {
			t.Errorf("reasons = %v", a.Reasons)
		}
	})

	t.Run("PolicyReasonsSorted", func(t *testing.T) {
		results := []domain.PolicyResult{
			{PolicyID: "z", Triggered: true, Score: 1, Reason: "Zelle to new payee"},
			{PolicyID: "a", Triggered: true, Score: 1, Reason: "Amount spike"},
		}
		a := proc.Process(input(0.9, results))
		want := []string{
			"composite risk score above threshold",
			"policy: Amount spike",
			"policy: Zelle to new payee",
		}
		if len(a.Reasons) != len(want) {
			t.Fatalf("reasons = %v, want %v", a.Reasons, want)
		}
		for i := range want {
			if a.Reasons[i] != want[i] {
				t.Errorf("reasons[%d] = %q, want %q", i, a.Reasons[i], want[i])
			}
		}
	})

	t.Run("MetadataPopulated", func(t *testing.T) {
		a := proc.Process(input(0.5, []domain.PolicyResult{{PolicyID: "p"}}))
		if a.ID == "" {
			t.Error("assessment id missing")
		}
		if a.Metadata.TraceID != "trace-1" {
			t.Errorf("trace id = %q", a.Metadata.TraceID)
		}
		if a.Metadata.PoliciesRun != 1 {
			t.Errorf("policies run = %d, want 1", a.Metadata.PoliciesRun)
		}
		if a.Metadata.EngineVersion != engineVersion {
			t.Errorf("engine version = %q", a.Metadata.EngineVersion)
		}
	})

	t.Run("ThresholdFallback", func(t *testing.T) {
		p := NewProcessor(0)
		want := domain.DefaultScoringConfig().AlertThreshold
		if p.AlertThreshold() != want {
			t.Errorf("fallback threshold = %f, want %f", p.AlertThreshold(), want)
		}
		p = NewProcessor(1.5)
		if p.AlertThreshold() != want {
			t.Errorf("fallback threshold = %f, want %f", p.AlertThreshold(), want)
		}
	})
}
