package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind discriminates the four behavioral event variants.
type EventKind string

const (
	KindLogin        EventKind = "login"
	KindSession      EventKind = "session"
	KindTransaction  EventKind = "transaction"
	KindFeatureUsage EventKind = "feature_usage"
)

// Kinds lists all known event kinds in a stable order.
func Kinds() []EventKind {
	return []EventKind{KindLogin, KindSession, KindTransaction, KindFeatureUsage}
}

// Event is the common capability of all behavioral event records.
// Concrete variants are LoginEvent, SessionEvent, TransactionEvent and
// FeatureUsageEvent; consumers dispatch with an exhaustive type switch.
type Event interface {
	User() string
	Kind() EventKind
	EventTime() time.Time
	Validate() error
}

// LoginEvent records one authentication into the banking channel.
type LoginEvent struct {
	UserID           string    `json:"userId"`
	Timestamp        time.Time `json:"timestamp"`
	DeviceType       string    `json:"deviceType"`
	OSBrowser        string    `json:"osBrowser"`
	ScreenResolution string    `json:"screenResolution,omitempty"`
	IPAddress        string    `json:"ipAddress"`
	Geolocation      string    `json:"geolocation"`
	LoginMethod      string    `json:"loginMethod"`
	Channel          string    `json:"channel"`
}

func (e LoginEvent) User() string         { return e.UserID }
func (e LoginEvent) Kind() EventKind      { return KindLogin }
func (e LoginEvent) EventTime() time.Time { return e.Timestamp }

// Validate checks boundary invariants for a login record.
func (e LoginEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: login missing userId", ErrInvalidInput)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: login missing timestamp", ErrInvalidInput)
	}
	return nil
}

// SessionEvent records one online-banking session.
type SessionEvent struct {
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId,omitempty"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	PagesVisited []string  `json:"pagesVisited,omitempty"`
}

func (e SessionEvent) User() string         { return e.UserID }
func (e SessionEvent) Kind() EventKind      { return KindSession }
func (e SessionEvent) EventTime() time.Time { return e.StartTime }

// Duration returns the session length in seconds.
func (e SessionEvent) Duration() float64 {
	return e.EndTime.Sub(e.StartTime).Seconds()
}

// Validate checks boundary invariants for a session record.
func (e SessionEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: session missing userId", ErrInvalidInput)
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return fmt.Errorf("%w: session missing start or end time", ErrInvalidInput)
	}
	if e.EndTime.Before(e.StartTime) {
		return fmt.Errorf("%w: session ends before it starts", ErrInvalidInput)
	}
	return nil
}

// TransactionEvent records one money movement initiated by the user.
type TransactionEvent struct {
	UserID        string    `json:"userId"`
	TransactionID string    `json:"transactionId,omitempty"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Recipient     string    `json:"recipient"`
	Method        string    `json:"method"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e TransactionEvent) User() string         { return e.UserID }
func (e TransactionEvent) Kind() EventKind      { return KindTransaction }
func (e TransactionEvent) EventTime() time.Time { return e.Timestamp }

// Validate checks boundary invariants for a transaction record.
func (e TransactionEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: transaction missing userId", ErrInvalidInput)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: transaction missing timestamp", ErrInvalidInput)
	}
	if e.Amount < 0 {
		return fmt.Errorf("%w: transaction amount is negative", ErrInvalidInput)
	}
	return nil
}

// FeatureUsageEvent records usage of one product feature.
// Timestamps, when more than one is carried, must be non-decreasing;
// the latest one is the event time.
type FeatureUsageEvent struct {
	UserID      string      `json:"userId"`
	FeatureName string      `json:"featureName"`
	Frequency   int64       `json:"frequency"`
	Timestamps  []time.Time `json:"timestamps"`
}

func (e FeatureUsageEvent) User() string    { return e.UserID }
func (e FeatureUsageEvent) Kind() EventKind { return KindFeatureUsage }

func (e FeatureUsageEvent) EventTime() time.Time {
	if len(e.Timestamps) == 0 {
		return time.Time{}
	}
	return e.Timestamps[len(e.Timestamps)-1]
}

// Validate checks boundary invariants for a feature-usage record.
func (e FeatureUsageEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: feature usage missing userId", ErrInvalidInput)
	}
	if e.FeatureName == "" {
		return fmt.Errorf("%w: feature usage missing featureName", ErrInvalidInput)
	}
	if e.Frequency < 0 {
		return fmt.Errorf("%w: feature usage frequency is negative", ErrInvalidInput)
	}
	if len(e.Timestamps) == 0 {
		return fmt.Errorf("%w: feature usage missing timestamps", ErrInvalidInput)
	}
	for i := 1; i < len(e.Timestamps); i++ {
		if e.Timestamps[i].Before(e.Timestamps[i-1]) {
			return fmt.Errorf("%w: feature usage timestamps out of order", ErrInvalidInput)
		}
	}
	return nil
}

// EventEnvelope is the wire form of an event: a kind tag plus the raw
// variant payload. Used by the HTTP API, the event bus, and the repository.
type EventEnvelope struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap serializes an event into its envelope form.
func Wrap(ev Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &EventEnvelope{Kind: ev.Kind(), Payload: payload}, nil
}

// Decode unpacks the envelope into its concrete variant and validates it.
func (env *EventEnvelope) Decode() (Event, error) {
	var ev Event
	switch env.Kind {
	case KindLogin:
		var e LoginEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ev = e
	case KindSession:
		var e SessionEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ev = e
	case KindTransaction:
		var e TransactionEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ev = e
	case KindFeatureUsage:
		var e FeatureUsageEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, env.Kind)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
