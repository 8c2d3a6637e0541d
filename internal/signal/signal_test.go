package signal

import (
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestSummarizeLogins(t *testing.T) {
	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	events := []domain.LoginEvent{
		{UserID: "u", Timestamp: base, DeviceType: "Mobile", OSBrowser: "iOS/Safari", IPAddress: "10.0.0.1", Geolocation: "40.71,-74.00", LoginMethod: "2FA", Channel: "Mobile App"},
		{UserID: "u", Timestamp: base.Add(time.Hour), DeviceType: "Mobile", OSBrowser: "iOS/Safari", IPAddress: "10.0.0.1", Geolocation: "40.71,-74.00", LoginMethod: "2FA", Channel: "Mobile App"},
		{UserID: "u", Timestamp: base.Add(5 * time.Hour), DeviceType: "Desktop", OSBrowser: "Windows/Chrome", IPAddress: "10.0.0.2", Geolocation: "34.05,-118.24", LoginMethod: "Password", Channel: "Web"},
	}

	p := SummarizeLogins(events)

	if p.SampleCount != 3 {
		t.Errorf("sample count = %d, want 3", p.SampleCount)
	}
	if p.HourHistogram[9] != 1 || p.HourHistogram[10] != 1 || p.HourHistogram[14] != 1 {
		t.Errorf("hour histogram misfiled: %v", p.HourHistogram)
	}
	if got := p.Devices.Share("Mobile"); got < 0.66 || got > 0.67 {
		t.Errorf("Share(Mobile) = %f, want 2/3", got)
	}
	if dom, n := p.Methods.Dominant(); dom != "2FA" || n != 2 {
		t.Errorf("dominant method = %q/%d, want 2FA/2", dom, n)
	}
}

func TestSummarizeSessions(t *testing.T) {
	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	events := []domain.SessionEvent{
		{UserID: "u", StartTime: base, EndTime: base.Add(10 * time.Minute), PagesVisited: []string{"a", "b"}},
		{UserID: "u", StartTime: base, EndTime: base.Add(20 * time.Minute), PagesVisited: []string{"a", "b", "c", "d"}},
	}

	p := SummarizeSessions(events)

	if p.Duration.Count != 2 {
		t.Errorf("duration count = %d, want 2", p.Duration.Count)
	}
	if p.Duration.Mean != 900 {
		t.Errorf("mean duration = %f, want 900", p.Duration.Mean)
	}
	if p.Pages.Mean != 3 {
		t.Errorf("mean pages = %f, want 3", p.Pages.Mean)
	}
}

func TestSummarizeTransactions(t *testing.T) {
	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	events := []domain.TransactionEvent{
		{UserID: "u", Type: "Transfer", Amount: 100, Recipient: "RCP_1", Method: "ACH", Timestamp: base},
		{UserID: "u", Type: "Transfer", Amount: 200, Recipient: "RCP_1", Method: "ACH", Timestamp: base},
		{UserID: "u", Type: "Bill Payment", Amount: 50, Recipient: "RCP_2", Method: "Card", Timestamp: base},
	}

	p := SummarizeTransactions(events)

	if p.Amount.Count != 3 {
		t.Errorf("overall count = %d, want 3", p.Amount.Count)
	}
	transfer, ok := p.AmountByType["Transfer"]
	if !ok {
		t.Fatal("no per-type stats for Transfer")
	}
	if transfer.Count != 2 || transfer.Mean != 150 {
		t.Errorf("Transfer stats = %d/%f, want 2/150", transfer.Count, transfer.Mean)
	}
	if !p.Recipients.Seen("RCP_2") {
		t.Error("recipient RCP_2 not recorded")
	}
	if _, ok := p.AmountByType["Wire"]; ok {
		t.Error("unexpected per-type bucket for unobserved type")
	}
}

func TestSummarizeFeatureUsage(t *testing.T) {
	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	events := []domain.FeatureUsageEvent{
		{UserID: "u", FeatureName: "Bill Pay", Frequency: 2, Timestamps: []time.Time{base}},
		{UserID: "u", FeatureName: "Bill Pay", Frequency: 3, Timestamps: []time.Time{base.Add(time.Hour)}},
		{UserID: "u", FeatureName: "Statements", Frequency: 1, Timestamps: []time.Time{base}},
	}

	p := SummarizeFeatureUsage(events)

	if p.Total != 3 {
		t.Errorf("total = %d, want 3", p.Total)
	}
	bp := p.Features["Bill Pay"]
	if bp.Frequency != 5 {
		t.Errorf("Bill Pay frequency = %d, want 5", bp.Frequency)
	}
	if !bp.LastUsed.Equal(base.Add(time.Hour)) {
		t.Errorf("Bill Pay last used = %v, want %v", bp.LastUsed, base.Add(time.Hour))
	}
}

// Folding events one at a time must yield exactly the batch summary. This
// is the property that makes incremental profile merges safe.
func TestFoldMatchesSummarize(t *testing.T) {
	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	logins := []domain.LoginEvent{
		{UserID: "u", Timestamp: base, DeviceType: "Mobile", LoginMethod: "2FA"},
		{UserID: "u", Timestamp: base.Add(time.Hour), DeviceType: "Desktop", LoginMethod: "Password"},
		{UserID: "u", Timestamp: base.Add(2 * time.Hour), DeviceType: "Mobile", LoginMethod: "2FA"},
	}

	batch := SummarizeLogins(logins)
	incr := domain.NewLoginProfile()
	for _, ev := range logins {
		FoldLogin(&incr, ev)
	}

	if batch.SampleCount != incr.SampleCount {
		t.Errorf("sample count diverged: batch %d, incremental %d", batch.SampleCount, incr.SampleCount)
	}
	if batch.HourHistogram != incr.HourHistogram {
		t.Error("hour histograms diverged")
	}
	for v := range batch.Devices {
		if batch.Devices[v] != incr.Devices[v] {
			t.Errorf("device count diverged for %q", v)
		}
	}

	txs := []domain.TransactionEvent{
		{UserID: "u", Type: "Transfer", Amount: 100, Timestamp: base},
		{UserID: "u", Type: "Transfer", Amount: 250, Timestamp: base},
		{UserID: "u", Type: "Card Payment", Amount: 40, Timestamp: base},
	}

	txBatch := SummarizeTransactions(txs)
	txIncr := domain.NewTransactionProfile()
	for _, ev := range txs {
		FoldTransaction(&txIncr, ev)
	}

	if txBatch.Amount != txIncr.Amount {
		t.Errorf("overall amount stats diverged: batch %+v, incremental %+v", txBatch.Amount, txIncr.Amount)
	}
	if *txBatch.AmountByType["Transfer"] != *txIncr.AmountByType["Transfer"] {
		t.Error("per-type amount stats diverged")
	}
}
