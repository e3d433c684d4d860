// Package domain defines the core types of the relay: normalized signal
// events, order requests, execution results, and the interfaces its
// infrastructure dependencies implement.
package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AlertGuard suppresses re-execution of an alert that was already acted on.
// Check must perform the membership test and the insertion as one atomic
// step so two concurrent deliveries of the same alert ID cannot both pass.
type AlertGuard interface {
	// Check returns true when alertID was already processed within the
	// guard's recency window; otherwise it records the ID and returns false.
	Check(ctx context.Context, alertID string) (bool, error)
}

// ExecutionStore persists the execution audit trail. Get returns
// ErrNotFound when no execution has the given ID.
type ExecutionStore interface {
	Record(ctx context.Context, res ExecutionResult) error
	Get(ctx context.Context, id string) (ExecutionResult, error)
	List(ctx context.Context, opts ListOpts) ([]ExecutionResult, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus carries execution events from the router to live subscribers
// (the websocket hub).
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
