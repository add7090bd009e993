package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable signals a retryable persistence failure.
	ErrStoreUnavailable = errors.New("learning store unavailable")
	ErrUnknownCustomer  = errors.New("unknown customer")
)

// LearningRepository persists reports and promoted artifacts. The in-memory
// knowledge base is authoritative while the process runs.
type LearningRepository interface {
	SaveReport(ctx context.Context, r *InteractionReport) error
	// ListReports returns reports at or after since, oldest first. A limit of
	// zero or less means no limit.
	ListReports(ctx context.Context, since time.Time, limit int) ([]InteractionReport, error)
	SavePlaybook(ctx context.Context, p *CrisisPlaybook) error
	SaveSuccessPattern(ctx context.Context, p *SuccessPattern) error
	Ping(ctx context.Context) error
}

// InteractionHistory is the read side of shared customer memory used by the predictive engine.
type InteractionHistory interface {
	Profile(customerID string) (*CustomerProfile, bool)
	RecentlyActive(since time.Time) []string
}

// OperationsHistory supplies daily aggregates, metric series and bookings.
type OperationsHistory interface {
	DailyHistory(ctx context.Context, since time.Time) ([]DailyOperations, error)
	MetricHistory(ctx context.Context, name string, since time.Time) ([]MetricSample, error)
	UpcomingBookings(ctx context.Context, from, to time.Time) ([]Booking, error)
}

// OperationsRecorder is the write side of the operations ledger.
type OperationsRecorder interface {
	RecordDay(ctx context.Context, day DailyOperations) error
	RecordMetric(ctx context.Context, sample MetricSample) error
	AddBooking(ctx context.Context, b *Booking) error
}

// ActionSink receives proactive actions for delivery to agents.
type ActionSink interface {
	Dispatch(ctx context.Context, actions []ProactiveAction) error
}

// Broadcaster delivers egress messages to connected agents without blocking the caller.
type Broadcaster interface {
	// Broadcast enqueues msg for every connected agent except the one named and
	// returns how many agents it was queued for.
	Broadcast(msg Broadcast, except string) int
	SendTo(agentID string, msg Broadcast) bool
	ConnectedAgents() []string
}
