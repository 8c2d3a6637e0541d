package domain

import "time"

// PolicyConfig defines an alert policy: a CEL expression evaluated over a
// risk score and its breakdown. Expressions may return bool (hit / no hit)
// or a numeric score in [0,1].
type PolicyConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CEL expression. Available variables: user_id, kind, composite,
	// deviation (map signal -> value), amount, velocity_24h, velocity_7d.
	Expression string `json:"expression"`

	// Weight of this policy when aggregating the final decision score.
	Weight float64 `json:"weight"`

	// Whether the policy is active.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// PolicyResult is the outcome of evaluating one policy against one event.
type PolicyResult struct {
	PolicyID  string  `json:"policyId"`
	Triggered bool    `json:"triggered"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason,omitempty"`
	Weight    float64 `json:"weight"`
}
