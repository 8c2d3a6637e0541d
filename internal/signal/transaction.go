package signal

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// SummarizeTransactions builds the payment baseline from a transaction
// batch. Amount statistics are tracked overall and per transaction type.
func SummarizeTransactions(events []domain.TransactionEvent) domain.TransactionProfile {
	p := domain.NewTransactionProfile()
	for _, ev := range events {
		FoldTransaction(&p, ev)
	}
	return p
}

// FoldTransaction folds one transaction into the baseline.
func FoldTransaction(p *domain.TransactionProfile, ev domain.TransactionEvent) {
	p.Amount.Add(ev.Amount)
	if ev.Type != "" {
		stats, ok := p.AmountByType[ev.Type]
		if !ok {
			stats = &domain.RunningStats{}
			p.AmountByType[ev.Type] = stats
		}
		stats.Add(ev.Amount)
	}
	p.Recipients.Add(ev.Recipient)
	p.Methods.Add(ev.Method)
}
