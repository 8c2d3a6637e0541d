// Package policy provides the CEL-based alert policy engine. Policies are
// operator-defined expressions over a risk score and its per-signal
// breakdown, deciding when a scored event becomes an alert.
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/harrier/internal/domain"
)

// VelocityGetter returns the event count for a user and kind inside a
// trailing window.
type VelocityGetter func(ctx context.Context, userID string, kind domain.EventKind, window time.Duration) (int64, error)

// Engine holds compiled alert policies.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiled       map[string]*CompiledPolicy
	velocityGetter VelocityGetter
	maxWorkers     int
}

// CompiledPolicy holds a pre-compiled CEL program.
type CompiledPolicy struct {
	Config  *domain.PolicyConfig
	Program cel.Program
}

// NewEngine creates a policy engine. velocityGetter may be nil, in which
// case velocity variables evaluate to zero.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("composite", cel.DoubleType),
		cel.Variable("deviation", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("velocity_24h", cel.IntType),
		cel.Variable("velocity_7d", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiled:       make(map[string]*CompiledPolicy),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidatePolicy compiles a policy without loading it.
func (e *Engine) ValidatePolicy(cfg *domain.PolicyConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: policy config is required", domain.ErrInvalidInput)
	}
	_, err := e.compile(cfg)
	return err
}

// LoadPolicy compiles and loads one policy into the engine.
func (e *Engine) LoadPolicy(cfg *domain.PolicyConfig) error {
	compiled, err := e.compile(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled[cfg.ID] = compiled
	return nil
}

// LoadPolicies compiles and loads all enabled policies.
func (e *Engine) LoadPolicies(configs []*domain.PolicyConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadPolicy(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadPolicies replaces the loaded set atomically (hot reload).
func (e *Engine) ReloadPolicies(configs []*domain.PolicyConfig) error {
	fresh := make(map[string]*CompiledPolicy)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compile(cfg)
		if err != nil {
			return err
		}
		fresh[cfg.ID] = compiled
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = fresh
	return nil
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// GetLoadedPolicies returns the currently loaded policy configurations.
func (e *Engine) GetLoadedPolicies() []*domain.PolicyConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.PolicyConfig, 0, len(e.compiled))
	for _, c := range e.compiled {
		out = append(out, c.Config)
	}
	return out
}

// EvaluateInput is the activation data for policy evaluation.
type EvaluateInput struct {
	UserID string
	Kind   domain.EventKind
	Risk   *domain.RiskScore
	Amount float64
}

// EvaluateAll evaluates every loaded policy against one scored event.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.PolicyResult, error) {
	e.mu.RLock()
	policies := make([]*CompiledPolicy, 0, len(e.compiled))
	for _, p := range e.compiled {
		policies = append(policies, p)
	}
	e.mu.RUnlock()

	if len(policies) == 0 {
		return nil, nil
	}

	var velocity24h, velocity7d int64
	if e.velocityGetter != nil {
		if n, err := e.velocityGetter(ctx, input.UserID, input.Kind, 24*time.Hour); err == nil {
			velocity24h = n
		}
		if n, err := e.velocityGetter(ctx, input.UserID, input.Kind, 7*24*time.Hour); err == nil {
			velocity7d = n
		}
	}

	deviations := make(map[string]float64, len(input.Risk.Breakdown))
	for _, d := range input.Risk.Breakdown {
		deviations[d.Signal] = d.Deviation
	}

	activation := map[string]any{
		"user_id":      input.UserID,
		"kind":         string(input.Kind),
		"composite":    input.Risk.Composite,
		"deviation":    deviations,
		"amount":       input.Amount,
		"velocity_24h": velocity24h,
		"velocity_7d":  velocity7d,
	}

	results := make([]domain.PolicyResult, len(policies))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, p := range policies {
		wg.Add(1)
		go func(idx int, p *CompiledPolicy) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluatePolicy(p, activation)
		}(i, p)
	}

	wg.Wait()

	return results, nil
}

// evaluatePolicy runs one compiled policy against the activation.
func evaluatePolicy(p *CompiledPolicy, activation map[string]any) domain.PolicyResult {
	result := domain.PolicyResult{
		PolicyID: p.Config.ID,
		Weight:   p.Config.Weight,
	}

	out, _, err := p.Program.Eval(activation)
	if err != nil {
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	result.Score = toScore(out)
	result.Triggered = result.Score >= 0.5
	if result.Triggered {
		result.Reason = p.Config.Name
	}
	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// Close clears the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledPolicy)
	return nil
}

func (e *Engine) compile(cfg *domain.PolicyConfig) (*CompiledPolicy, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("policy %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", cfg.ID, err)
	}

	return &CompiledPolicy{Config: cfg, Program: program}, nil
}
