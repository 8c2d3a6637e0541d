// Package velocity tracks per-user event rates over trailing windows.
// Counts come from cache counters when available and fall back to the
// repository, so a cold cache never under-reports.
package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Windows the service maintains counters for.
const (
	WindowDay  = 24 * time.Hour
	WindowWeek = 7 * 24 * time.Hour
)

// Service answers velocity queries for policy evaluation and the risk API.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a velocity service. Both dependencies may be nil;
// a fully nil service reports zero for every query.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// RecordEvent bumps the cached counters for an ingested event. Failures
// are logged and swallowed: the repository remains the source of truth.
func (s *Service) RecordEvent(ctx context.Context, userID string, kind domain.EventKind) {
	if s.cache == nil {
		return
	}
	for _, window := range []time.Duration{WindowDay, WindowWeek} {
		if _, err := s.cache.IncrementCounter(ctx, counterKey(userID, kind, window), window); err != nil {
			slog.Warn("velocity counter increment failed",
				"user_id", userID,
				"kind", kind,
				"error", err)
			return
		}
	}
}

// Count returns the number of events of a kind for a user inside the
// trailing window.
func (s *Service) Count(ctx context.Context, userID string, kind domain.EventKind, window time.Duration) (int64, error) {
	if s.repo != nil {
		n, err := s.repo.CountEventsByUser(ctx, userID, kind, time.Now().UTC().Add(-window))
		if err == nil {
			return n, nil
		}
		slog.Warn("velocity repository count failed, trying cache",
			"user_id", userID,
			"kind", kind,
			"error", err)
	}
	if s.cache == nil {
		return 0, nil
	}
	val, err := s.cache.Get(ctx, counterKey(userID, kind, window))
	if err != nil || val == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func counterKey(userID string, kind domain.EventKind, window time.Duration) string {
	return fmt.Sprintf("velocity:%s:%s:%dh", userID, kind, int(window.Hours()))
}
