package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	f, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: f.Name(),
	})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestRepositoryEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	t.Run("SaveAndLoadOrdered", func(t *testing.T) {
		// Insert out of order; reads must come back oldest first.
		events := []domain.Event{
			domain.TransactionEvent{UserID: "USER_000001", Type: "Transfer", Amount: 200, Recipient: "RCP_1", Method: "ACH", Timestamp: base.Add(2 * time.Hour)},
			domain.LoginEvent{UserID: "USER_000001", Timestamp: base, DeviceType: "Mobile", LoginMethod: "2FA"},
			domain.SessionEvent{UserID: "USER_000001", StartTime: base.Add(time.Hour), EndTime: base.Add(90 * time.Minute), PagesVisited: []string{"a"}},
		}
		for _, ev := range events {
			if err := repo.SaveEvent(ctx, ev); err != nil {
				t.Fatalf("SaveEvent failed: %v", err)
			}
		}

		got, err := repo.GetEventsByUser(ctx, "USER_000001")
		if err != nil {
			t.Fatalf("GetEventsByUser failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d events, want 3", len(got))
		}
		wantKinds := []domain.EventKind{domain.KindLogin, domain.KindSession, domain.KindTransaction}
		for i, k := range wantKinds {
			if got[i].Kind() != k {
				t.Errorf("event %d kind = %s, want %s", i, got[i].Kind(), k)
			}
		}

		tx, ok := got[2].(domain.TransactionEvent)
		if !ok {
			t.Fatalf("expected TransactionEvent, got %T", got[2])
		}
		if tx.Amount != 200 || tx.Recipient != "RCP_1" {
			t.Errorf("transaction fields lost in round trip: %+v", tx)
		}
	})

	t.Run("InvalidEventRejected", func(t *testing.T) {
		err := repo.SaveEvent(ctx, domain.LoginEvent{Timestamp: base})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnknownUserIsEmpty", func(t *testing.T) {
		got, err := repo.GetEventsByUser(ctx, "USER_999999")
		if err != nil {
			t.Fatalf("GetEventsByUser failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d events for unknown user", len(got))
		}
	})

	t.Run("CountFiltersKindAndWindow", func(t *testing.T) {
		n, err := repo.CountEventsByUser(ctx, "USER_000001", domain.KindTransaction, base)
		if err != nil {
			t.Fatalf("CountEventsByUser failed: %v", err)
		}
		if n != 1 {
			t.Errorf("transaction count = %d, want 1", n)
		}

		n, err = repo.CountEventsByUser(ctx, "USER_000001", domain.KindLogin, base.Add(time.Minute))
		if err != nil {
			t.Fatalf("CountEventsByUser failed: %v", err)
		}
		if n != 0 {
			t.Errorf("login count since %v = %d, want 0", base.Add(time.Minute), n)
		}
	})
}

func TestRepositoryProfiles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		p := domain.NewUserFraudProfile("USER_000001")
		p.Login.Devices.Add("Mobile")
		p.Transaction.Amount.Add(100)
		p.Transaction.Amount.Add(150)
		p.Touch(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))

		if err := repo.SaveProfile(ctx, p); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}

		got, err := repo.GetProfile(ctx, "USER_000001")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if !got.Login.Devices.Seen("Mobile") {
			t.Error("device set lost in round trip")
		}
		if got.Transaction.Amount.Count != 2 || got.Transaction.Amount.Mean != 125 {
			t.Errorf("amount stats lost: %+v", got.Transaction.Amount)
		}
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		p := domain.NewUserFraudProfile("USER_000001")
		p.SampleCount = 42
		if err := repo.SaveProfile(ctx, p); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}

		got, err := repo.GetProfile(ctx, "USER_000001")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got.SampleCount != 42 {
			t.Errorf("sample count = %d, want 42 after replace", got.SampleCount)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := repo.GetProfile(ctx, "USER_999999")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepositoryAssessments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mk := func(id string, ts time.Time, score float64) *domain.Assessment {
		return &domain.Assessment{
			ID:        id,
			UserID:    "USER_000001",
			Kind:      domain.KindTransaction,
			Status:    domain.StatusAlert,
			Score:     score,
			Timestamp: ts,
			Breakdown: []domain.SignalDeviation{
				{Signal: domain.SignalTxAmount, Deviation: score, Weight: 1},
			},
			Reasons: []string{"composite risk score above threshold"},
			Metadata: domain.AssessmentMetadata{
				TraceID:       "trace-" + id,
				EngineVersion: "harrier-1.0",
			},
		}
	}

	base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	for _, a := range []*domain.Assessment{
		mk("a1", base, 0.8),
		mk("a2", base.Add(time.Hour), 0.9),
	} {
		if err := repo.SaveAssessment(ctx, a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}
	}

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetAssessment(ctx, "a1")
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}
		if got.Score != 0.8 || got.Status != domain.StatusAlert {
			t.Errorf("assessment = %+v", got)
		}
		if len(got.Breakdown) != 1 || got.Breakdown[0].Signal != domain.SignalTxAmount {
			t.Errorf("breakdown lost: %+v", got.Breakdown)
		}
		if got.Metadata.TraceID != "trace-a1" {
			t.Errorf("metadata lost: %+v", got.Metadata)
		}
	})

	t.Run("LatestByUser", func(t *testing.T) {
		got, err := repo.LatestAssessmentByUser(ctx, "USER_000001")
		if err != nil {
			t.Fatalf("LatestAssessmentByUser failed: %v", err)
		}
		if got.ID != "a2" {
			t.Errorf("latest assessment = %s, want a2", got.ID)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := repo.GetAssessment(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.LatestAssessmentByUser(ctx, "USER_999999"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepositoryPolicies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &domain.PolicyConfig{
		ID:         "high-score",
		Name:       "High composite score",
		Expression: "composite > 0.9",
		Weight:     1,
		Enabled:    true,
	}

	t.Run("CRUD", func(t *testing.T) {
		if err := repo.SavePolicy(ctx, p); err != nil {
			t.Fatalf("SavePolicy failed: %v", err)
		}

		got, err := repo.GetPolicy(ctx, "high-score")
		if err != nil {
			t.Fatalf("GetPolicy failed: %v", err)
		}
		if got.Expression != p.Expression || !got.Enabled {
			t.Errorf("policy = %+v", got)
		}

		p.Enabled = false
		if err := repo.SavePolicy(ctx, p); err != nil {
			t.Fatalf("SavePolicy update failed: %v", err)
		}
		got, err = repo.GetPolicy(ctx, "high-score")
		if err != nil {
			t.Fatalf("GetPolicy failed: %v", err)
		}
		if got.Enabled {
			t.Error("enabled flag not updated")
		}

		list, err := repo.ListPolicies(ctx)
		if err != nil {
			t.Fatalf("ListPolicies failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("listed %d policies, want 1", len(list))
		}

		if err := repo.DeletePolicy(ctx, "high-score"); err != nil {
			t.Fatalf("DeletePolicy failed: %v", err)
		}
		if _, err := repo.GetPolicy(ctx, "high-score"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		if err := repo.DeletePolicy(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepositoryPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("SELECT ?, ?"); got != "SELECT ?, ?" {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}

	pg := &SQLRepository{driver: "postgres"}
	if got := pg.rebind("INSERT INTO t VALUES (?, ?, ?)"); got != "INSERT INTO t VALUES ($1, $2, $3)" {
		t.Errorf("postgres rebind = %q", got)
	}
}
