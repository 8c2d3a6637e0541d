package signal

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// SummarizeSessions builds the session baseline from a session batch.
// Duration and pages-visited use Welford accumulators so later incremental
// merges never need to replay history.
func SummarizeSessions(events []domain.SessionEvent) domain.SessionProfile {
	var p domain.SessionProfile
	for _, ev := range events {
		FoldSession(&p, ev)
	}
	return p
}

// FoldSession folds one session into the baseline.
func FoldSession(p *domain.SessionProfile, ev domain.SessionEvent) {
	p.Duration.Add(ev.Duration())
	p.Pages.Add(float64(len(ev.PagesVisited)))
}
