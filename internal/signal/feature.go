package signal

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// SummarizeFeatureUsage builds the feature-usage baseline from a batch.
// Per-feature state merges by summing frequency and keeping the latest
// timestamp.
func SummarizeFeatureUsage(events []domain.FeatureUsageEvent) domain.FeatureUsageProfile {
	p := domain.NewFeatureUsageProfile()
	for _, ev := range events {
		FoldFeatureUsage(&p, ev)
	}
	return p
}

// FoldFeatureUsage folds one feature-usage record into the baseline.
func FoldFeatureUsage(p *domain.FeatureUsageProfile, ev domain.FeatureUsageEvent) {
	p.Total++
	stat := p.Features[ev.FeatureName]
	stat.Frequency += ev.Frequency
	if ts := ev.EventTime(); ts.After(stat.LastUsed) {
		stat.LastUsed = ts
	}
	p.Features[ev.FeatureName] = stat
}
