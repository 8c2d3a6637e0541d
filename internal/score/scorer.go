// Package score computes bounded, explainable risk scores for candidate
// events against a user's behavioral baseline.
package score

import (
	"fmt"
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Scorer turns a profile and one candidate event into a composite risk
// score in [0,1] with a per-signal breakdown. Scoring is deterministic and
// monotone in every signal deviation: pushing any one signal further from
// the baseline can never lower the composite.
type Scorer struct {
	cfg domain.ScoringConfig
}

// NewScorer creates a scorer with the given tuning. Non-positive numeric
// fields and a nil weight map are treated as unset and fall back to the
// defaults; an explicit zero neutral value or zero novelty penalty cannot
// be configured through this surface.
func NewScorer(cfg domain.ScoringConfig) *Scorer {
	def := domain.DefaultScoringConfig()
	if cfg.SignalWeights == nil {
		cfg.SignalWeights = def.SignalWeights
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = def.Sensitivity
	}
	if cfg.NoveltyPenalty <= 0 {
		cfg.NoveltyPenalty = def.NoveltyPenalty
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.Neutral <= 0 {
		cfg.Neutral = def.Neutral
	}
	return &Scorer{cfg: cfg}
}

// Score evaluates one candidate event against the profile. The profile is
// read-only to the scorer. An event domain with zero history scores as
// maximal deviation (absence of a baseline is itself informative); a domain
// with fewer than MinSamples events scores as the neutral value. Only a
// variant unknown to the engine is an error.
func (s *Scorer) Score(p *domain.UserFraudProfile, ev domain.Event) (*domain.RiskScore, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: profile is required", domain.ErrInvalidInput)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	var breakdown []domain.SignalDeviation
	switch e := ev.(type) {
	case domain.LoginEvent:
		breakdown = s.loginDeviations(&p.Login, e)
	case domain.SessionEvent:
		breakdown = s.sessionDeviations(&p.Session, e)
	case domain.TransactionEvent:
		breakdown = s.transactionDeviations(&p.Transaction, e)
	case domain.FeatureUsageEvent:
		breakdown = s.featureDeviations(&p.FeatureUsage, e)
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedEvent, ev)
	}

	return &domain.RiskScore{
		UserID:    p.UserID,
		Kind:      ev.Kind(),
		Composite: s.composite(breakdown),
		Breakdown: breakdown,
	}, nil
}

// composite combines per-signal deviations into one bounded score via a
// weighted average, clipped to [0,1].
func (s *Scorer) composite(breakdown []domain.SignalDeviation) float64 {
	var sum, totalWeight float64
	for _, d := range breakdown {
		sum += d.Deviation * d.Weight
		totalWeight += d.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return clip01(sum / totalWeight)
}

func (s *Scorer) loginDeviations(p *domain.LoginProfile, ev domain.LoginEvent) []domain.SignalDeviation {
	if p.SampleCount == 0 {
		return s.maximal(domain.SignalLoginHour, domain.SignalLoginDevice,
			domain.SignalLoginOS, domain.SignalLoginLocation, domain.SignalLoginMethod)
	}
	if p.SampleCount < s.cfg.MinSamples {
		return s.neutral(domain.SignalLoginHour, domain.SignalLoginDevice,
			domain.SignalLoginOS, domain.SignalLoginLocation, domain.SignalLoginMethod)
	}
	return []domain.SignalDeviation{
		s.signal(domain.SignalLoginHour, 1-p.HourShare(ev.Timestamp.Hour())),
		s.signal(domain.SignalLoginDevice, noveltyDeviation(p.Devices, ev.DeviceType)),
		s.signal(domain.SignalLoginOS, noveltyDeviation(p.OSBrowsers, ev.OSBrowser)),
		s.signal(domain.SignalLoginLocation, noveltyDeviation(p.Locations, ev.Geolocation)),
		s.signal(domain.SignalLoginMethod, noveltyDeviation(p.Methods, ev.LoginMethod)),
	}
}

func (s *Scorer) sessionDeviations(p *domain.SessionProfile, ev domain.SessionEvent) []domain.SignalDeviation {
	if p.Duration.Count == 0 {
		return s.maximal(domain.SignalSessionLength, domain.SignalSessionPages)
	}
	if p.Duration.Count < s.cfg.MinSamples {
		return s.neutral(domain.SignalSessionLength, domain.SignalSessionPages)
	}
	return []domain.SignalDeviation{
		s.signal(domain.SignalSessionLength, s.zDeviation(ev.Duration(), &p.Duration)),
		s.signal(domain.SignalSessionPages, s.zDeviation(float64(len(ev.PagesVisited)), &p.Pages)),
	}
}

func (s *Scorer) transactionDeviations(p *domain.TransactionProfile, ev domain.TransactionEvent) []domain.SignalDeviation {
	if p.Amount.Count == 0 {
		return s.maximal(domain.SignalTxAmount, domain.SignalTxRecipient, domain.SignalTxMethod)
	}
	if p.Amount.Count < s.cfg.MinSamples {
		return s.neutral(domain.SignalTxAmount, domain.SignalTxRecipient, domain.SignalTxMethod)
	}

	// Prefer the per-type amount baseline when it has enough history.
	stats := &p.Amount
	if byType, ok := p.AmountByType[ev.Type]; ok && byType.Count >= s.cfg.MinSamples {
		stats = byType
	}

	amount := s.zDeviation(ev.Amount, stats)

	// Unseen counterparties add a fixed penalty on top of the amount
	// deviation rather than standing alone.
	recipient := 0.0
	if !p.Recipients.Seen(ev.Recipient) {
		recipient = s.cfg.NoveltyPenalty
	}
	method := 0.0
	if !p.Methods.Seen(ev.Method) {
		method = s.cfg.NoveltyPenalty
	}

	return []domain.SignalDeviation{
		s.signal(domain.SignalTxAmount, clip01(amount+recipient+method)),
		s.signal(domain.SignalTxRecipient, noveltyDeviation(p.Recipients, ev.Recipient)),
		s.signal(domain.SignalTxMethod, noveltyDeviation(p.Methods, ev.Method)),
	}
}

func (s *Scorer) featureDeviations(p *domain.FeatureUsageProfile, ev domain.FeatureUsageEvent) []domain.SignalDeviation {
	if p.Total == 0 {
		return s.maximal(domain.SignalFeatureNovel)
	}
	if p.Total < s.cfg.MinSamples {
		return s.neutral(domain.SignalFeatureNovel)
	}

	stat, seen := p.Features[ev.FeatureName]
	dev := 1.0
	if seen && stat.Frequency > 0 {
		// Frequently-used features approach zero deviation.
		dev = 1 / (1 + float64(stat.Frequency))
	}
	return []domain.SignalDeviation{s.signal(domain.SignalFeatureNovel, dev)}
}

// zDeviation maps an observation to min(1, |z|/k) against the baseline.
// With fewer than two samples the stddev is 0 and any departure from the
// mean reads as maximal; an exact match reads as zero. No division by a
// zero stddev ever occurs.
func (s *Scorer) zDeviation(x float64, stats *domain.RunningStats) float64 {
	sd := stats.StdDev()
	if sd == 0 {
		if x == stats.Mean {
			return 0
		}
		return 1
	}
	z := math.Abs(x-stats.Mean) / sd
	return clip01(z / s.cfg.Sensitivity)
}

// noveltyDeviation is 1 for a never-seen value and half the complement of
// its share otherwise, so rare-but-seen values score below 0.5.
func noveltyDeviation(set domain.CategorySet, v string) float64 {
	if !set.Seen(v) {
		return 1
	}
	return 0.5 * (1 - set.Share(v))
}

func (s *Scorer) signal(name string, dev float64) domain.SignalDeviation {
	return domain.SignalDeviation{Signal: name, Deviation: clip01(dev), Weight: s.weight(name)}
}

func (s *Scorer) maximal(names ...string) []domain.SignalDeviation {
	out := make([]domain.SignalDeviation, 0, len(names))
	for _, n := range names {
		out = append(out, s.signal(n, 1))
	}
	return out
}

func (s *Scorer) neutral(names ...string) []domain.SignalDeviation {
	out := make([]domain.SignalDeviation, 0, len(names))
	for _, n := range names {
		out = append(out, s.signal(n, s.cfg.Neutral))
	}
	return out
}

func (s *Scorer) weight(signal string) float64 {
	if w, ok := s.cfg.SignalWeights[signal]; ok && w >= 0 {
		return w
	}
	return 1.0
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
