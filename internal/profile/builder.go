// Package profile assembles and maintains per-user fraud profiles.
package profile

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/signal"
)

// Build constructs a user's behavioral baseline from historical events.
// Events may arrive in any order. The batch must belong to a single user;
// a mixed batch or any invalid event fails the whole build.
func Build(userID string, events []domain.Event) (*domain.UserFraudProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}

	var (
		logins       []domain.LoginEvent
		sessions     []domain.SessionEvent
		transactions []domain.TransactionEvent
		features     []domain.FeatureUsageEvent
	)

	p := domain.NewUserFraudProfile(userID)

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		if ev.User() != userID {
			return nil, fmt.Errorf("%w: event for user %q in build request for %q",
				domain.ErrInvalidInput, ev.User(), userID)
		}

		switch e := ev.(type) {
		case domain.LoginEvent:
			logins = append(logins, e)
		case domain.SessionEvent:
			sessions = append(sessions, e)
		case domain.TransactionEvent:
			transactions = append(transactions, e)
		case domain.FeatureUsageEvent:
			features = append(features, e)
		default:
			return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedEvent, ev)
		}

		p.Touch(ev.EventTime())
	}

	p.Login = signal.SummarizeLogins(logins)
	p.Session = signal.SummarizeSessions(sessions)
	p.Transaction = signal.SummarizeTransactions(transactions)
	p.FeatureUsage = signal.SummarizeFeatureUsage(features)

	return p, nil
}

// fold applies one validated event to a profile in place, using the same
// per-domain math as Build. The exhaustive switch is the single decision
// point for event dispatch.
func fold(p *domain.UserFraudProfile, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.LoginEvent:
		signal.FoldLogin(&p.Login, e)
	case domain.SessionEvent:
		signal.FoldSession(&p.Session, e)
	case domain.TransactionEvent:
		signal.FoldTransaction(&p.Transaction, e)
	case domain.FeatureUsageEvent:
		signal.FoldFeatureUsage(&p.FeatureUsage, e)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnsupportedEvent, ev)
	}
	p.Touch(ev.EventTime())
	return nil
}
