package score

import (
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/profile"
)

// baselineProfile builds a habitual profile: mobile 2FA logins around 09:00,
// and transfers with mean 100 and moderate spread.
func baselineProfile(t *testing.T) *domain.UserFraudProfile {
	t.Helper()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	amounts := []float64{80, 90, 95, 100, 100, 105, 110, 120}

	var events []domain.Event
	for i, amt := range amounts {
		day := base.AddDate(0, 0, i)
		events = append(events,
			domain.LoginEvent{
				UserID:      "USER_000001",
				Timestamp:   day,
				DeviceType:  "Mobile",
				OSBrowser:   "iOS/Safari",
				IPAddress:   "10.0.0.1",
				Geolocation: "40.71,-74.00",
				LoginMethod: "2FA",
				Channel:     "Mobile App",
			},
			domain.SessionEvent{
				UserID:       "USER_000001",
				StartTime:    day,
				EndTime:      day.Add(10 * time.Minute),
				PagesVisited: []string{"Account Balance", "Transfers", "Statements"},
			},
			domain.TransactionEvent{
				UserID:    "USER_000001",
				Type:      "Transfer",
				Amount:    amt,
				Recipient: "RCP_000001",
				Method:    "ACH",
				Timestamp: day,
			},
		)
	}

	p, err := profile.Build("USER_000001", events)
	if err != nil {
		t.Fatalf("baseline build failed: %v", err)
	}
	return p
}

func TestScoreTransaction(t *testing.T) {
	scorer := NewScorer(domain.DefaultScoringConfig())
	p := baselineProfile(t)
	ts := time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)

	t.Run("HabitualScoresLow", func(t *testing.T) {
		risk, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 100,
			Recipient: "RCP_000001", Method: "ACH", Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if risk.Composite > 0.4 {
			t.Errorf("habitual transaction composite = %f, want low", risk.Composite)
		}
		if risk.Deviation(domain.SignalTxRecipient) >= 0.5 {
			t.Errorf("known recipient deviation = %f, want < 0.5", risk.Deviation(domain.SignalTxRecipient))
		}
	})

	t.Run("LargeAmountMaxesOut", func(t *testing.T) {
		risk, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 500,
			Recipient: "RCP_000001", Method: "ACH", Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if risk.Deviation(domain.SignalTxAmount) != 1.0 {
			t.Errorf("amount deviation = %f, want 1.0 for 5x mean", risk.Deviation(domain.SignalTxAmount))
		}
		// The amount signal carries enough default weight that a maxed-out
		// deviation alerts even with familiar recipient and method.
		if threshold := domain.DefaultScoringConfig().AlertThreshold; risk.Composite < threshold {
			t.Errorf("composite = %f, want >= %f", risk.Composite, threshold)
		}
	})

	t.Run("UnseenRecipientRaisesScore", func(t *testing.T) {
		known, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 130,
			Recipient: "RCP_000001", Method: "ACH", Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		unseen, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 130,
			Recipient: "RCP_999999", Method: "ACH", Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if unseen.Composite <= known.Composite {
			t.Errorf("unseen recipient composite %f not above known %f", unseen.Composite, known.Composite)
		}
		if unseen.Deviation(domain.SignalTxRecipient) != 1.0 {
			t.Errorf("unseen recipient deviation = %f, want 1.0", unseen.Deviation(domain.SignalTxRecipient))
		}
	})

	t.Run("AmountMonotonicity", func(t *testing.T) {
		prev := -1.0
		for _, amt := range []float64{100, 120, 150, 200, 300, 500, 1000} {
			risk, err := scorer.Score(p, domain.TransactionEvent{
				UserID: "USER_000001", Type: "Transfer", Amount: amt,
				Recipient: "RCP_000001", Method: "ACH", Timestamp: ts,
			})
			if err != nil {
				t.Fatalf("Score failed at %f: %v", amt, err)
			}
			dev := risk.Deviation(domain.SignalTxAmount)
			if dev < prev {
				t.Errorf("amount deviation dropped from %f to %f at amount %f", prev, dev, amt)
			}
			prev = dev
		}
	})
}

func TestScoreLogin(t *testing.T) {
	scorer := NewScorer(domain.DefaultScoringConfig())
	p := baselineProfile(t)

	t.Run("HabitualScoresLow", func(t *testing.T) {
		risk, err := scorer.Score(p, domain.LoginEvent{
			UserID:      "USER_000001",
			Timestamp:   time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC),
			DeviceType:  "Mobile",
			OSBrowser:   "iOS/Safari",
			Geolocation: "40.71,-74.00",
			LoginMethod: "2FA",
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if risk.Composite > 0.4 {
			t.Errorf("habitual login composite = %f, want low", risk.Composite)
		}
	})

	t.Run("NovelDeviceScoresHigher", func(t *testing.T) {
		habitual, _ := scorer.Score(p, domain.LoginEvent{
			UserID: "USER_000001", Timestamp: time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC),
			DeviceType: "Mobile", OSBrowser: "iOS/Safari",
			Geolocation: "40.71,-74.00", LoginMethod: "2FA",
		})
		anomalous, err := scorer.Score(p, domain.LoginEvent{
			UserID: "USER_000001", Timestamp: time.Date(2025, 6, 20, 21, 0, 0, 0, time.UTC),
			DeviceType: "Desktop", OSBrowser: "Linux/Firefox",
			Geolocation: "51.50,-0.12", LoginMethod: "Password",
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if anomalous.Composite <= habitual.Composite {
			t.Errorf("anomalous login composite %f not above habitual %f", anomalous.Composite, habitual.Composite)
		}
		if anomalous.Deviation(domain.SignalLoginDevice) != 1.0 {
			t.Errorf("unseen device deviation = %f, want 1.0", anomalous.Deviation(domain.SignalLoginDevice))
		}
	})
}

func TestScoreSparseHistory(t *testing.T) {
	scorer := NewScorer(domain.DefaultScoringConfig())
	ts := time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)

	t.Run("ZeroHistoryIsMaximal", func(t *testing.T) {
		p := domain.NewUserFraudProfile("USER_000001")
		risk, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 100, Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if risk.Composite != 1.0 {
			t.Errorf("zero-history composite = %f, want 1.0", risk.Composite)
		}
	})

	t.Run("BelowMinSamplesIsNeutral", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		p := domain.NewUserFraudProfile("USER_000001")
		for i := int64(0); i < cfg.MinSamples-1; i++ {
			p.Transaction.Amount.Add(100)
		}

		risk, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 5000, Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if risk.Composite != cfg.Neutral {
			t.Errorf("thin-history composite = %f, want neutral %f", risk.Composite, cfg.Neutral)
		}
	})

	t.Run("ZeroConfigFallsBackToDefaults", func(t *testing.T) {
		scorer := NewScorer(domain.ScoringConfig{})
		def := domain.DefaultScoringConfig()

		p := domain.NewUserFraudProfile("USER_000001")
		for i := int64(0); i < def.MinSamples-1; i++ {
			p.Transaction.Amount.Add(100)
		}
		risk, err := scorer.Score(p, domain.TransactionEvent{
			UserID: "USER_000001", Type: "Transfer", Amount: 5000, Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if risk.Composite != def.Neutral {
			t.Errorf("zero-config thin-history composite = %f, want %f", risk.Composite, def.Neutral)
		}
		for _, d := range risk.Breakdown {
			if d.Weight != def.SignalWeights[d.Signal] && def.SignalWeights[d.Signal] != 0 {
				t.Errorf("signal %s weight = %f, want default %f", d.Signal, d.Weight, def.SignalWeights[d.Signal])
			}
		}
	})
}

func TestScoreBounds(t *testing.T) {
	scorer := NewScorer(domain.DefaultScoringConfig())
	p := baselineProfile(t)
	ts := time.Date(2025, 6, 20, 3, 0, 0, 0, time.UTC)

	events := []domain.Event{
		domain.LoginEvent{UserID: "USER_000001", Timestamp: ts, DeviceType: "Tablet", OSBrowser: "Android/Chrome", Geolocation: "0,0", LoginMethod: "Biometric"},
		domain.SessionEvent{UserID: "USER_000001", StartTime: ts, EndTime: ts.Add(6 * time.Hour), PagesVisited: make([]string, 200)},
		domain.TransactionEvent{UserID: "USER_000001", Type: "Wire", Amount: 1e9, Recipient: "RCP_X", Method: "Wire", Timestamp: ts},
		domain.FeatureUsageEvent{UserID: "USER_000001", FeatureName: "Wire Transfer", Frequency: 1, Timestamps: []time.Time{ts}},
	}

	for _, ev := range events {
		risk, err := scorer.Score(p, ev)
		if err != nil {
			t.Fatalf("Score failed for %s: %v", ev.Kind(), err)
		}
		if risk.Composite < 0 || risk.Composite > 1 {
			t.Errorf("%s composite %f out of [0,1]", ev.Kind(), risk.Composite)
		}
		for _, d := range risk.Breakdown {
			if d.Deviation < 0 || d.Deviation > 1 {
				t.Errorf("%s signal %s deviation %f out of [0,1]", ev.Kind(), d.Signal, d.Deviation)
			}
		}
	}
}

func TestScoreErrors(t *testing.T) {
	scorer := NewScorer(domain.DefaultScoringConfig())

	t.Run("NilProfile", func(t *testing.T) {
		_, err := scorer.Score(nil, domain.LoginEvent{UserID: "u", Timestamp: time.Now()})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("InvalidEvent", func(t *testing.T) {
		p := domain.NewUserFraudProfile("USER_000001")
		_, err := scorer.Score(p, domain.LoginEvent{})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
