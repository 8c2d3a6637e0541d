// Package domain defines the core types and interfaces for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for event history and audit persistence.
// The profiling core itself never touches storage; the repository is the
// hosting system's durable record of events, profile snapshots, assessments,
// and policy configurations.
type Repository interface {
	// Event history
	SaveEvent(ctx context.Context, ev Event) error
	GetEventsByUser(ctx context.Context, userID string) ([]Event, error)
	CountEventsByUser(ctx context.Context, userID string, kind EventKind, since time.Time) (int64, error)

	// Profile snapshots
	SaveProfile(ctx context.Context, profile *UserFraudProfile) error
	GetProfile(ctx context.Context, userID string) (*UserFraudProfile, error)

	// Assessments
	SaveAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, id string) (*Assessment, error)
	LatestAssessmentByUser(ctx context.Context, userID string) (*Assessment, error)

	// Policy configurations
	SavePolicy(ctx context.Context, p *PolicyConfig) error
	GetPolicy(ctx context.Context, id string) (*PolicyConfig, error)
	ListPolicies(ctx context.Context) ([]*PolicyConfig, error)
	DeletePolicy(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
