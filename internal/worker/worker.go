// Package worker provides async event processing on top of the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/profile"
	"github.com/opensource-finance/harrier/internal/score"
	"github.com/opensource-finance/harrier/internal/velocity"
)

// Pipeline runs one behavioral event through the full profiling path:
// score against the established profile, merge the event into the profile,
// evaluate alert policies, and record the assessment. It is shared by the
// synchronous API path and the async worker.
type Pipeline struct {
	Store     *profile.Store
	Scorer    *score.Scorer
	Policies  *policy.Engine
	Processor *policy.Processor
	Velocity  *velocity.Service
	Repo      domain.Repository
	Bus       domain.EventBus
}

// ProcessEvent scores an event against the user's current profile, then
// folds the event in. Scoring always happens against the profile as it
// stood before the event, so an event never lowers its own anomaly.
func (p *Pipeline) ProcessEvent(ctx context.Context, ev domain.Event, traceID string) (*domain.Assessment, error) {
	start := time.Now()
	userID := ev.User()

	if err := ev.Validate(); err != nil {
		return nil, err
	}

	if p.Velocity != nil {
		p.Velocity.RecordEvent(ctx, userID, ev.Kind())
	}

	prior, err := p.Store.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		prior = domain.NewUserFraudProfile(userID)
	} else if err != nil {
		return nil, err
	}

	scoreStart := time.Now()
	risk, err := p.Scorer.Score(prior, ev)
	if err != nil {
		return nil, err
	}
	scoreDuration := time.Since(scoreStart)

	if _, err := p.Store.MergeEvent(ctx, userID, ev); err != nil {
		return nil, err
	}

	if p.Repo != nil {
		if err := p.Repo.SaveEvent(ctx, ev); err != nil {
			slog.Error("failed to save event",
				"user_id", userID,
				"kind", ev.Kind(),
				"error", err,
			)
		}
	}

	policyStart := time.Now()
	var policyResults []domain.PolicyResult
	if p.Policies != nil && p.Policies.PolicyCount() > 0 {
		policyResults, err = p.Policies.EvaluateAll(ctx, &policy.EvaluateInput{
			UserID: userID,
			Kind:   ev.Kind(),
			Risk:   risk,
			Amount: eventAmount(ev),
		})
		if err != nil {
			slog.Error("policy evaluation failed",
				"user_id", userID,
				"error", err,
			)
		}
	}
	policyDuration := time.Since(policyStart)

	assessment := p.Processor.Process(&policy.ProcessInput{
		UserID:         userID,
		Kind:           ev.Kind(),
		TraceID:        traceID,
		Risk:           risk,
		PolicyResults:  policyResults,
		StartTime:      start,
		ScoreDuration:  scoreDuration,
		PolicyDuration: policyDuration,
	})

	if p.Repo != nil {
		if err := p.Repo.SaveAssessment(ctx, assessment); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", assessment.ID,
				"user_id", userID,
				"error", err,
			)
		}
	}

	p.publish(ctx, assessment)

	return assessment, nil
}

func (p *Pipeline) publish(ctx context.Context, a *domain.Assessment) {
	if p.Bus == nil {
		return
	}

	payload, _ := json.Marshal(a)
	if err := p.Bus.Publish(ctx, domain.TopicAssessment, payload); err != nil {
		slog.Error("failed to publish assessment",
			"assessment_id", a.ID,
			"error", err,
		)
	}

	if a.Status == domain.StatusAlert {
		if err := p.Bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}
}

// eventAmount exposes transaction amounts to policy expressions.
func eventAmount(ev domain.Event) float64 {
	if tx, ok := ev.(domain.TransactionEvent); ok {
		return tx.Amount
	}
	return 0
}

// Worker consumes ingested events from the bus and runs them through
// the pipeline.
type Worker struct {
	bus      domain.EventBus
	pipeline *Pipeline

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, pipeline *Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the event ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicEventIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicEventIngested)
	return nil
}

// handleMessage decodes an event envelope and processes it.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var env domain.EventEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		slog.Error("failed to parse event envelope",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	ev, err := env.Decode()
	if err != nil {
		slog.Error("failed to decode event",
			"message_id", msg.ID,
			"kind", env.Kind,
			"error", err,
		)
		return err
	}

	assessment, err := w.pipeline.ProcessEvent(ctx, ev, msg.ID)
	if err != nil {
		slog.Error("event processing failed",
			"message_id", msg.ID,
			"user_id", ev.User(),
			"error", err,
		)
		return err
	}

	slog.Info("event processed",
		"message_id", msg.ID,
		"user_id", ev.User(),
		"kind", ev.Kind(),
		"status", assessment.Status,
		"score", assessment.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
