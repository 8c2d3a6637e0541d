package domain

import "time"

// Signal names reported in score breakdowns.
const (
	SignalLoginHour     = "login_hour"
	SignalLoginDevice   = "login_device"
	SignalLoginOS       = "login_os_browser"
	SignalLoginLocation = "login_location"
	SignalLoginMethod   = "login_method"
	SignalSessionLength = "session_duration"
	SignalSessionPages  = "session_pages"
	SignalTxAmount      = "transaction_amount"
	SignalTxRecipient   = "transaction_recipient"
	SignalTxMethod      = "transaction_method"
	SignalFeatureNovel  = "feature_novelty"
)

// SignalDeviation is one explainable component of a risk score: how far a
// candidate event strays from the baseline on a single signal, in [0,1],
// and the weight it carried in the composite.
type SignalDeviation struct {
	Signal    string  `json:"signal"`
	Deviation float64 `json:"deviation"`
	Weight    float64 `json:"weight"`
}

// RiskScore is the scorer output: a bounded composite plus its per-signal
// breakdown for explainability.
type RiskScore struct {
	UserID    string            `json:"userId"`
	Kind      EventKind         `json:"kind"`
	Composite float64           `json:"composite"`
	Breakdown []SignalDeviation `json:"breakdown"`
}

// Deviation returns the breakdown entry for the named signal, 0 if absent.
func (s *RiskScore) Deviation(signal string) float64 {
	for _, d := range s.Breakdown {
		if d.Signal == signal {
			return d.Deviation
		}
	}
	return 0
}

// Assessment is the full decision record for one scored event: the risk
// score, the policy verdict, and processing metadata. Persisted for audit.
type Assessment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      EventKind `json:"kind"`
	Status    string    `json:"status"` // StatusAlert or StatusOK
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`

	Breakdown     []SignalDeviation `json:"breakdown"`
	PolicyResults []PolicyResult    `json:"policyResults,omitempty"`
	Reasons       []string          `json:"reasons,omitempty"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata carries processing information for one assessment.
type AssessmentMetadata struct {
	TraceID       string `json:"traceId"`
	ScoreMs       int64  `json:"scoreMs"`
	PolicyMs      int64  `json:"policyMs"`
	TotalMs       int64  `json:"totalMs"`
	PoliciesRun   int    `json:"policiesRun"`
	EngineVersion string `json:"engineVersion"`
}

// Assessment status constants.
const (
	StatusAlert = "ALERT"
	StatusOK    = "OK"
)
