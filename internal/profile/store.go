package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// snapshotTTL bounds how long a cached profile snapshot is served.
const snapshotTTL = 5 * time.Minute

// Store is the process-wide keyed mapping from user id to fraud profile.
// Each profile has its own mutex, so callers working on different users
// never contend; operations on the same user are serialized, and readers
// always receive a deep copy, never a half-applied update.
//
// Repository and cache are optional write-through backends: when wired,
// every mutation persists a snapshot and Get falls back to them on a
// process-local miss. The store works fully in-memory with both nil.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	repo  domain.Repository
	cache domain.Cache
}

type entry struct {
	mu      sync.Mutex
	profile *domain.UserFraudProfile
}

// NewStore creates a profile store. repo and cache may be nil.
func NewStore(repo domain.Repository, cache domain.Cache) *Store {
	return &Store{
		entries: make(map[string]*entry),
		repo:    repo,
		cache:   cache,
	}
}

// Get returns a copy of the user's profile, or ErrNotFound. On a
// process-local miss it consults the cache, then the repository.
func (s *Store) Get(ctx context.Context, userID string) (*domain.UserFraudProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}

	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.profile == nil {
		p, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		e.profile = p
	}
	return e.profile.Clone(), nil
}

// Upsert replaces or creates the stored profile for its user id.
func (s *Store) Upsert(ctx context.Context, p *domain.UserFraudProfile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("%w: profile with userID is required", domain.ErrInvalidInput)
	}

	e := s.entry(p.UserID)
	e.mu.Lock()
	e.profile = p.Clone()
	snapshot := e.profile.Clone()
	e.mu.Unlock()

	s.persist(ctx, snapshot)
	return nil
}

// MergeEvent incrementally folds one new event into the stored profile,
// creating a cold-start profile if none exists. The resulting statistics
// are numerically equivalent to a full rebuild over history plus the event.
// Returns a copy of the updated profile.
func (s *Store) MergeEvent(ctx context.Context, userID string, ev domain.Event) (*domain.UserFraudProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if ev.User() != userID {
		return nil, fmt.Errorf("%w: event for user %q merged into profile %q",
			domain.ErrInvalidInput, ev.User(), userID)
	}

	e := s.entry(userID)
	e.mu.Lock()
	if e.profile == nil {
		p, err := s.load(ctx, userID)
		switch {
		case err == nil:
			e.profile = p
		case errors.Is(err, domain.ErrNotFound):
			e.profile = domain.NewUserFraudProfile(userID)
		default:
			e.mu.Unlock()
			return nil, fmt.Errorf("load profile for merge: %w", err)
		}
	}
	if err := fold(e.profile, ev); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	snapshot := e.profile.Clone()
	e.mu.Unlock()

	s.persist(ctx, snapshot)
	return snapshot, nil
}

// Len returns the number of resident profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// entry returns the per-user entry, creating it if needed.
func (s *Store) entry(userID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[userID]; ok {
		return e
	}
	e = &entry{}
	s.entries[userID] = e
	return e
}

// load fetches a snapshot from cache, then repository.
func (s *Store) load(ctx context.Context, userID string) (*domain.UserFraudProfile, error) {
	if s.cache != nil {
		if p, err := s.cache.GetProfile(ctx, userID); err == nil && p != nil {
			return p, nil
		}
	}
	if s.repo != nil {
		p, err := s.repo.GetProfile(ctx, userID)
		if err == nil {
			if s.cache != nil {
				_ = s.cache.SetProfile(ctx, p, snapshotTTL)
			}
			return p, nil
		}
		return nil, err
	}
	return nil, domain.ErrNotFound
}

// persist writes a snapshot through to the backends. Persistence is
// best-effort: the in-memory profile is already updated and a storage
// failure must not fail the merge.
func (s *Store) persist(ctx context.Context, p *domain.UserFraudProfile) {
	if s.repo != nil {
		if err := s.repo.SaveProfile(ctx, p); err != nil {
			slog.Error("failed to persist profile snapshot",
				"user_id", p.UserID,
				"error", err,
			)
		}
	}
	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, p, snapshotTTL); err != nil {
			slog.Warn("failed to cache profile snapshot",
				"user_id", p.UserID,
				"error", err,
			)
		}
	}
}
