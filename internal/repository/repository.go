// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveEvent appends one behavioral event to the history.
func (r *SQLRepository) SaveEvent(ctx context.Context, ev domain.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	env, err := domain.Wrap(ev)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (id, user_id, kind, payload, event_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), ev.User(), string(ev.Kind()),
		string(env.Payload), ev.EventTime().UTC(), time.Now().UTC(),
	)
	return err
}

// GetEventsByUser retrieves the full event history for a user, oldest first.
func (r *SQLRepository) GetEventsByUser(ctx context.Context, userID string) ([]domain.Event, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT kind, payload
		FROM events
		WHERE user_id = ?
		ORDER BY event_time ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, err
		}

		env := domain.EventEnvelope{Kind: domain.EventKind(kind), Payload: json.RawMessage(payload)}
		ev, err := env.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountEventsByUser counts events of a kind for a user since a point in time.
func (r *SQLRepository) CountEventsByUser(ctx context.Context, userID string, kind domain.EventKind, since time.Time) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM events
		WHERE user_id = ? AND kind = ? AND event_time >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID, string(kind), since.UTC()).Scan(&count)
	return count, err
}

// SaveProfile stores a profile snapshot, replacing any previous one.
func (r *SQLRepository) SaveProfile(ctx context.Context, profile *domain.UserFraudProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("%w: profile with userID is required", domain.ErrInvalidInput)
	}

	blob, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}

	query := `
		INSERT INTO profiles (user_id, profile, sample_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			profile = excluded.profile,
			sample_count = excluded.sample_count,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		profile.UserID, string(blob), profile.SampleCount, time.Now().UTC(),
	)
	return err
}

// GetProfile retrieves the latest profile snapshot for a user.
func (r *SQLRepository) GetProfile(ctx context.Context, userID string) (*domain.UserFraudProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}

	query := `SELECT profile FROM profiles WHERE user_id = ?`

	var blob string
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID).Scan(&blob)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var profile domain.UserFraudProfile
	if err := json.Unmarshal([]byte(blob), &profile); err != nil {
		return nil, fmt.Errorf("failed to deserialize profile: %w", err)
	}

	return &profile, nil
}

// SaveAssessment stores a risk assessment for audit.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment with ID is required", domain.ErrInvalidInput)
	}

	breakdown, _ := json.Marshal(a.Breakdown)
	policyResults, _ := json.Marshal(a.PolicyResults)
	reasons, _ := json.Marshal(a.Reasons)
	metadata, _ := json.Marshal(a.Metadata)

	query := `
		INSERT INTO assessments (
			id, user_id, kind, status, score, timestamp,
			breakdown, policy_results, reasons, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.UserID, string(a.Kind), a.Status, a.Score, a.Timestamp.UTC(),
		string(breakdown), string(policyResults), string(reasons), string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `
		SELECT id, user_id, kind, status, score, timestamp,
			   breakdown, policy_results, reasons, metadata
		FROM assessments
		WHERE id = ?
	`

	return r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), id))
}

// LatestAssessmentByUser retrieves the most recent assessment for a user.
func (r *SQLRepository) LatestAssessmentByUser(ctx context.Context, userID string) (*domain.Assessment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, kind, status, score, timestamp,
			   breakdown, policy_results, reasons, metadata
		FROM assessments
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	return r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), userID))
}

func (r *SQLRepository) scanAssessment(row *sql.Row) (*domain.Assessment, error) {
	var a domain.Assessment
	var kind, breakdown, policyResults, reasons, metadata string

	err := row.Scan(
		&a.ID, &a.UserID, &kind, &a.Status, &a.Score, &a.Timestamp,
		&breakdown, &policyResults, &reasons, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Kind = domain.EventKind(kind)
	json.Unmarshal([]byte(breakdown), &a.Breakdown)
	json.Unmarshal([]byte(policyResults), &a.PolicyResults)
	json.Unmarshal([]byte(reasons), &a.Reasons)
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// SavePolicy stores a policy configuration, replacing any previous version.
func (r *SQLRepository) SavePolicy(ctx context.Context, p *domain.PolicyConfig) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: policy with ID is required", domain.ErrInvalidInput)
	}

	enabled := 0
	if p.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policies (
			id, name, description, expression, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.Name, p.Description, p.Expression, p.Weight, enabled, now, now,
	)
	return err
}

// GetPolicy retrieves a policy configuration by ID.
func (r *SQLRepository) GetPolicy(ctx context.Context, id string) (*domain.PolicyConfig, error) {
	query := `
		SELECT id, name, description, expression, weight, enabled, created_at, updated_at
		FROM policies
		WHERE id = ?
	`

	var p domain.PolicyConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Expression,
		&p.Weight, &enabled, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Enabled = enabled == 1
	return &p, nil
}

// ListPolicies retrieves all policy configurations.
func (r *SQLRepository) ListPolicies(ctx context.Context) ([]*domain.PolicyConfig, error) {
	query := `
		SELECT id, name, description, expression, weight, enabled, created_at, updated_at
		FROM policies
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.PolicyConfig
	for rows.Next() {
		var p domain.PolicyConfig
		var enabled int

		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Expression,
			&p.Weight, &enabled, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		p.Enabled = enabled == 1
		policies = append(policies, &p)
	}

	return policies, rows.Err()
}

// DeletePolicy removes a policy configuration.
func (r *SQLRepository) DeletePolicy(ctx context.Context, id string) error {
	query := `DELETE FROM policies WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
