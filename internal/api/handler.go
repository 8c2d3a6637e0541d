package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/profile"
	"github.com/opensource-finance/harrier/internal/score"
	"github.com/opensource-finance/harrier/internal/velocity"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	store    *profile.Store
	scorer   *score.Scorer
	policies *policy.Engine
	pipeline *worker.Pipeline
	velocity *velocity.Service
	version  string
	mode     domain.IngestMode
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, store *profile.Store, scorer *score.Scorer, policies *policy.Engine, pipeline *worker.Pipeline, vel *velocity.Service, version string, mode domain.IngestMode) *Handler {
	if mode == "" {
		mode = domain.IngestSync
	}
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		store:    store,
		scorer:   scorer,
		policies: policies,
		pipeline: pipeline,
		velocity: vel,
		version:  version,
		mode:     mode,
	}
}

// decodeEvent reads an event envelope from the request body.
func decodeEvent(r *http.Request) (domain.Event, *domain.EventEnvelope, error) {
	var env domain.EventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return nil, nil, errors.New("invalid JSON request body")
	}
	ev, err := env.Decode()
	if err != nil {
		return nil, nil, err
	}
	return ev, &env, nil
}

// IngestResponse is the response for a synchronously processed event.
type IngestResponse struct {
	AssessmentID string                   `json:"assessmentId"`
	UserID       string                   `json:"userId"`
	Kind         domain.EventKind         `json:"kind"`
	Status       string                   `json:"status"`
	Score        float64                  `json:"score"`
	Breakdown    []domain.SignalDeviation `json:"breakdown"`
	Reasons      []string                 `json:"reasons,omitempty"`
	Metadata     struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// IngestEvent handles POST /events requests. In sync mode the event runs
// the full pipeline in-request; in async mode it is published to the bus
// and a worker picks it up.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	ev, env, err := decodeEvent(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.mode == domain.IngestAsync && h.bus != nil {
		payload, _ := json.Marshal(env)
		if err := h.bus.Publish(ctx, domain.TopicEventIngested, payload); err != nil {
			slog.Error("failed to publish event", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to publish event",
			})
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted": true,
			"userId":   ev.User(),
			"kind":     ev.Kind(),
			"traceId":  traceID,
		})
		return
	}

	assessment, err := h.pipeline.ProcessEvent(ctx, ev, traceID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUnsupportedEvent) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("event processing failed", "user_id", ev.User(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "event processing failed",
		})
		return
	}

	resp := IngestResponse{
		AssessmentID: assessment.ID,
		UserID:       assessment.UserID,
		Kind:         assessment.Kind,
		Status:       assessment.Status,
		Score:        assessment.Score,
		Breakdown:    assessment.Breakdown,
		Reasons:      assessment.Reasons,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// ScoreEvent handles POST /score requests: score a candidate event against
// the established profile without folding it in or recording anything.
func (h *Handler) ScoreEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ev, _, err := decodeEvent(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	p, err := h.store.Get(ctx, ev.User())
	if errors.Is(err, domain.ErrNotFound) {
		p = domain.NewUserFraudProfile(ev.User())
	} else if err != nil {
		slog.Error("failed to load profile", "user_id", ev.User(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load profile",
		})
		return
	}

	risk, err := h.scorer.Score(p, ev)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, risk)
}

// GetProfile handles GET /profiles/{userID}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	p, err := h.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "profile not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// RebuildProfile handles POST /profiles/{userID}/rebuild: replace the
// stored profile with one rebuilt from the full event history.
func (h *Handler) RebuildProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userID is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	events, err := h.repo.GetEventsByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to load event history", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load event history",
		})
		return
	}

	p, err := profile.Build(userID, events)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.store.Upsert(ctx, p); err != nil {
		slog.Error("failed to store rebuilt profile", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store rebuilt profile",
		})
		return
	}

	slog.Info("profile rebuilt", "user_id", userID, "event_count", len(events))
	writeJSON(w, http.StatusOK, p)
}

// RiskSummaryResponse is the response for GET /profiles/{userID}/risk.
type RiskSummaryResponse struct {
	UserID           string                     `json:"userId"`
	SampleCount      int64                      `json:"sampleCount"`
	LastUpdated      time.Time                  `json:"lastUpdated"`
	LatestAssessment *domain.Assessment         `json:"latestAssessment,omitempty"`
	Velocity24h      map[domain.EventKind]int64 `json:"velocity24h"`
}

// GetRiskSummary handles GET /profiles/{userID}/risk.
func (h *Handler) GetRiskSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	p, err := h.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "profile not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	resp := RiskSummaryResponse{
		UserID:      p.UserID,
		SampleCount: p.SampleCount,
		LastUpdated: p.LastUpdated,
		Velocity24h: make(map[domain.EventKind]int64),
	}

	if h.repo != nil {
		if a, err := h.repo.LatestAssessmentByUser(ctx, userID); err == nil {
			resp.LatestAssessment = a
		}
	}

	if h.velocity != nil {
		for _, kind := range domain.Kinds() {
			n, err := h.velocity.Count(ctx, userID, kind, velocity.WindowDay)
			if err != nil {
				continue
			}
			resp.Velocity24h[kind] = n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assessmentID := chi.URLParam(r, "id")

	if assessmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		slog.Error("failed to get assessment", "id", assessmentID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListPolicies returns all loaded policies from the engine.
// Policies are loaded from the database at startup and can be reloaded
// via POST /policies/reload.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	loaded := h.policies.GetLoadedPolicies()

	writeJSON(w, http.StatusOK, map[string]any{
		"policies": loaded,
		"count":    len(loaded),
		"source":   "database",
	})
}

// GetPolicy retrieves a policy by ID from the loaded engine policies.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	for _, p := range h.policies.GetLoadedPolicies() {
		if p.ID == policyID {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "policy not found",
	})
}

// CreatePolicyRequest is the request body for creating a policy.
type CreatePolicyRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreatePolicy creates a new alert policy and saves it to the database.
// After saving, call POST /policies/reload to hot-reload into the engine.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.PolicyConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.policies.LoadPolicy(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePolicy(ctx, cfg); err != nil {
			slog.Error("failed to save policy", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy",
			})
			return
		}
	}

	slog.Info("policy created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"policy":  cfg,
		"message": "Policy created. Call POST /policies/reload to apply changes.",
	})
}

// DeletePolicy deletes a policy and auto-reloads the engine.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeletePolicy(ctx, policyID); err != nil {
			slog.Error("failed to delete policy", "id", policyID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "policy not found",
			})
			return
		}

		// Auto-reload engine after delete
		if configs, err := h.repo.ListPolicies(ctx); err != nil {
			slog.Error("failed to reload policies after delete", "error", err)
		} else if err := h.policies.ReloadPolicies(configs); err != nil {
			slog.Error("failed to reload policies after delete", "error", err)
		}
	}

	slog.Info("policy deleted", "id", policyID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Policy deleted and engine reloaded.",
	})
}

// ReloadPolicies reloads all policies from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	configs, err := h.repo.ListPolicies(ctx)
	if err != nil {
		slog.Error("failed to list policies from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policies from database",
		})
		return
	}

	if err := h.policies.ReloadPolicies(configs); err != nil {
		slog.Error("failed to reload policies into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies: " + err.Error(),
		})
		return
	}

	slog.Info("policies reloaded from database", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "policies reloaded successfully",
		"count":   len(configs),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
