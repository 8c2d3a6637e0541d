package domain

import (
	"math"
	"time"
)

// RunningStats is a Welford accumulator: count, running mean, and running
// sum of squared deviations. It supports exact incremental updates without
// replaying history, which keeps profile size independent of history length.
type RunningStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
}

// Add folds one observation into the accumulator.
func (s *RunningStats) Add(x float64) {
	s.Count++
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (x - s.Mean)
}

// StdDev returns the sample standard deviation, or 0 when fewer than two
// observations exist (stddev is undefined below that).
func (s *RunningStats) StdDev() float64 {
	if s.Count < 2 {
		return 0
	}
	return math.Sqrt(s.M2 / float64(s.Count-1))
}

// CategorySet tracks distinct observed categorical values with occurrence
// counts, so scoring can ask both "ever seen" and "how rare".
type CategorySet map[string]int64

// Add records one observation of v. Empty values are ignored.
func (c CategorySet) Add(v string) {
	if v != "" {
		c[v]++
	}
}

// Seen reports whether v was ever observed.
func (c CategorySet) Seen(v string) bool {
	_, ok := c[v]
	return ok
}

// Share returns the relative frequency of v among all observations,
// 0 when the set is empty.
func (c CategorySet) Share(v string) float64 {
	total := int64(0)
	for _, n := range c {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(c[v]) / float64(total)
}

// Dominant returns the most frequent value and its count.
func (c CategorySet) Dominant() (string, int64) {
	var best string
	var bestN int64
	for v, n := range c {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, bestN
}

func (c CategorySet) clone() CategorySet {
	out := make(CategorySet, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// LoginProfile is the authentication baseline for one user.
type LoginProfile struct {
	SampleCount   int64       `json:"sampleCount"`
	HourHistogram [24]int64   `json:"hourHistogram"`
	Devices       CategorySet `json:"devices"`
	OSBrowsers    CategorySet `json:"osBrowsers"`
	IPs           CategorySet `json:"ips"`
	Locations     CategorySet `json:"locations"`
	Methods       CategorySet `json:"methods"`
	Channels      CategorySet `json:"channels"`
}

// NewLoginProfile returns an empty login baseline.
func NewLoginProfile() LoginProfile {
	return LoginProfile{
		Devices:    make(CategorySet),
		OSBrowsers: make(CategorySet),
		IPs:        make(CategorySet),
		Locations:  make(CategorySet),
		Methods:    make(CategorySet),
		Channels:   make(CategorySet),
	}
}

// HourShare returns the relative frequency of logins in the given hour.
func (p *LoginProfile) HourShare(hour int) float64 {
	if p.SampleCount == 0 || hour < 0 || hour > 23 {
		return 0
	}
	return float64(p.HourHistogram[hour]) / float64(p.SampleCount)
}

// SessionProfile is the session-shape baseline for one user.
type SessionProfile struct {
	Duration RunningStats `json:"duration"`
	Pages    RunningStats `json:"pages"`
}

// TransactionProfile is the payment baseline for one user. Amount statistics
// are kept overall and per transaction type.
type TransactionProfile struct {
	Amount       RunningStats             `json:"amount"`
	AmountByType map[string]*RunningStats `json:"amountByType"`
	Recipients   CategorySet              `json:"recipients"`
	Methods      CategorySet              `json:"methods"`
}

// NewTransactionProfile returns an empty payment baseline.
func NewTransactionProfile() TransactionProfile {
	return TransactionProfile{
		AmountByType: make(map[string]*RunningStats),
		Recipients:   make(CategorySet),
		Methods:      make(CategorySet),
	}
}

// FeatureStat is the usage record for one product feature.
type FeatureStat struct {
	Frequency int64     `json:"frequency"`
	LastUsed  time.Time `json:"lastUsed"`
}

// FeatureUsageProfile maps feature names to their cumulative usage.
type FeatureUsageProfile struct {
	Total    int64                  `json:"total"`
	Features map[string]FeatureStat `json:"features"`
}

// NewFeatureUsageProfile returns an empty feature-usage baseline.
func NewFeatureUsageProfile() FeatureUsageProfile {
	return FeatureUsageProfile{Features: make(map[string]FeatureStat)}
}

// UserFraudProfile is the durable per-user behavioral baseline: four
// sub-profiles plus bookkeeping for incremental updates. Invariants:
// SampleCount >= 0, all stddevs >= 0, LastUpdated never moves backwards.
type UserFraudProfile struct {
	UserID       string              `json:"userId"`
	Login        LoginProfile        `json:"login"`
	Session      SessionProfile      `json:"session"`
	Transaction  TransactionProfile  `json:"transaction"`
	FeatureUsage FeatureUsageProfile `json:"featureUsage"`
	SampleCount  int64               `json:"sampleCount"`
	LastUpdated  time.Time           `json:"lastUpdated"`
}

// NewUserFraudProfile returns an empty baseline for userID.
func NewUserFraudProfile(userID string) *UserFraudProfile {
	return &UserFraudProfile{
		UserID:       userID,
		Login:        NewLoginProfile(),
		Transaction:  NewTransactionProfile(),
		FeatureUsage: NewFeatureUsageProfile(),
	}
}

// Touch advances SampleCount and LastUpdated for one contributing event.
// LastUpdated is monotone: an out-of-order event never rewinds it.
func (p *UserFraudProfile) Touch(ts time.Time) {
	p.SampleCount++
	if ts.After(p.LastUpdated) {
		p.LastUpdated = ts
	}
}

// Clone returns a deep copy, safe to hand to concurrent readers.
func (p *UserFraudProfile) Clone() *UserFraudProfile {
	out := *p

	out.Login.Devices = p.Login.Devices.clone()
	out.Login.OSBrowsers = p.Login.OSBrowsers.clone()
	out.Login.IPs = p.Login.IPs.clone()
	out.Login.Locations = p.Login.Locations.clone()
	out.Login.Methods = p.Login.Methods.clone()
	out.Login.Channels = p.Login.Channels.clone()

	out.Transaction.Recipients = p.Transaction.Recipients.clone()
	out.Transaction.Methods = p.Transaction.Methods.clone()
	out.Transaction.AmountByType = make(map[string]*RunningStats, len(p.Transaction.AmountByType))
	for k, v := range p.Transaction.AmountByType {
		stats := *v
		out.Transaction.AmountByType[k] = &stats
	}

	out.FeatureUsage.Features = make(map[string]FeatureStat, len(p.FeatureUsage.Features))
	for k, v := range p.FeatureUsage.Features {
		out.FeatureUsage.Features[k] = v
	}

	return &out
}
