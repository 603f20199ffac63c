package ratelimit

import (
	"context"
	"time"
)

// OperationState tracks attempts and cooldown for one logical backend operation.
type OperationState struct {
	Attempts     int
	LastAttempt  time.Time
	BackoffUntil time.Time
}

// Store persists governor state. Implementations must be safe for concurrent use.
type Store interface {
	Operation(ctx context.Context, name string) (OperationState, error)
	SaveOperation(ctx context.Context, name string, state OperationState) error
	GlobalBackoffUntil(ctx context.Context) (time.Time, error)
	SetGlobalBackoffUntil(ctx context.Context, until time.Time) error
}

// Classification is the outcome of inspecting a backend error.
type Classification struct {
	RateLimited bool
	Global      bool
}
