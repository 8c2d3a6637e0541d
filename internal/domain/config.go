package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backends are used
	Tier Tier `json:"tier"`

	// Scoring holds the risk scorer tunables
	Scoring ScoringConfig `json:"scoring"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ScoringConfig is the injected tuning surface of the risk scorer. None of
// these values are hard-coded in scoring logic; NewScorer treats non-positive
// numeric fields and a nil weight map as unset and substitutes the defaults.
type ScoringConfig struct {
	// SignalWeights maps signal names to their weight in the composite.
	// Unlisted signals weigh 1.0.
	SignalWeights map[string]float64 `json:"signalWeights,omitempty"`

	// Sensitivity is the z-score divisor k: deviation = min(1, |z|/k).
	Sensitivity float64 `json:"sensitivity"`

	// NoveltyPenalty is the additive penalty for an unseen transaction
	// recipient or method.
	NoveltyPenalty float64 `json:"noveltyPenalty"`

	// MinSamples is the per-domain history size below which a signal is
	// not trusted and scores the Neutral value instead of an extreme.
	MinSamples int64 `json:"minSamples"`

	// Neutral is the deviation reported for untrusted cold-start signals.
	Neutral float64 `json:"neutral"`

	// AlertThreshold is the decision score at or above which an
	// assessment becomes an ALERT.
	AlertThreshold float64 `json:"alertThreshold"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// Mode selects how POST /events is handled: "sync" runs the full
	// pipeline in the request, "async" publishes to the bus and a
	// worker picks it up.
	Mode IngestMode `json:"mode"`
}

// IngestMode selects synchronous or asynchronous event processing.
type IngestMode string

const (
	IngestSync  IngestMode = "sync"
	IngestAsync IngestMode = "async"
)

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, in-process cache, and channel bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, Redis, and NATS.
	TierPro Tier = "pro"
)

// DefaultScoringConfig returns the default scorer tuning. The transaction
// amount signal dominates its domain: counterparty novelty already feeds
// into it as an additive penalty, so the standalone recipient and method
// signals are corroborating evidence rather than primary ones. With these
// weights a maxed-out amount deviation alone crosses AlertThreshold.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SignalWeights: map[string]float64{
			SignalTxAmount:    5.0,
			SignalTxRecipient: 1.0,
			SignalTxMethod:    1.0,
		},
		Sensitivity:    3.0,
		NoveltyPenalty: 0.25,
		MinSamples:     5,
		Neutral:        0.5,
		AlertThreshold: 0.7,
	}
}

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			Mode:         IngestSync,
		},
		Tier:    TierCommunity,
		Scoring: DefaultScoringConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Server.Mode = IngestAsync
	cfg.Tracing.Enabled = true
	return cfg
}
