package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxRetries is the retry budget when a call does not set one.
	DefaultMaxRetries = 3

	baseBackoff    = time.Second
	maxBackoff     = 2 * time.Minute
	globalCooldown = time.Minute
)

// Governor wraps backend calls with per-operation and global cooldowns and
// retries throttled calls with exponential backoff.
type Governor struct {
	store      Store
	nowFn      func() time.Time
	sleepFn    func(ctx context.Context, d time.Duration) error
	maxRetries int

	// mu makes the cooldown check and the attempt increment one step.
	mu sync.Mutex
}

// Option customizes a Governor.
type Option func(*Governor)

// WithClock overrides the time source.
func WithClock(nowFn func() time.Time) Option {
	return func(g *Governor) {
		if nowFn != nil {
			g.nowFn = nowFn
		}
	}
}

// WithSleeper overrides how the governor waits between retries.
func WithSleeper(sleepFn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Governor) {
		if sleepFn != nil {
			g.sleepFn = sleepFn
		}
	}
}

// WithDefaultMaxRetries sets the retry budget used when a call does not set one.
func WithDefaultMaxRetries(n int) Option {
	return func(g *Governor) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// NewGovernor constructs a Governor. A nil store selects a MemoryStore.
func NewGovernor(store Store, opts ...Option) *Governor {
	if store == nil {
		store = NewMemoryStore()
	}
	g := &Governor{
		store:      store,
		nowFn:      time.Now,
		sleepFn:    sleepContext,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type callOptions struct {
	maxRetries int
}

// CallOption customizes a single guarded call.
type CallOption func(*callOptions)

// WithMaxRetries sets the retry budget for one call.
func WithMaxRetries(n int) CallOption {
	return func(o *callOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// BackoffDuration returns min(2m, 2^attempt seconds) for a zero-based attempt index.
func BackoffDuration(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 7 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Do runs action under the cooldowns for operation. Throttled failures are
// retried after a backoff until the retry budget is spent, after which
// ErrOperationUnavailable is returned. Any other error is returned unchanged
// on first occurrence.
func (g *Governor) Do(ctx context.Context, operation string, action func(context.Context) error, opts ...CallOption) error {
	if action == nil {
		return fmt.Errorf("rate limit: nil action for %s", operation)
	}
	if g == nil {
		return action(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callOpts := callOptions{maxRetries: g.maxRetries}
	for _, opt := range opts {
		opt(&callOpts)
	}

	for {
		attempts, errBegin := g.begin(ctx, operation)
		if errBegin != nil {
			return errBegin
		}

		errAction := action(ctx)
		if errAction == nil {
			g.succeed(ctx, operation)
			return nil
		}

		class := Classify(errAction)
		if !class.RateLimited {
			return errAction
		}

		wait := g.fail(ctx, operation, attempts, class.Global)
		if attempts > callOpts.maxRetries {
			log.WithError(errAction).Warnf("rate limit hit for %s, out of retries", operation)
			return ErrOperationUnavailable
		}
		log.Infof("rate limit hit for %s, retrying in %s", operation, wait)
		if errSleep := g.sleepFn(ctx, wait); errSleep != nil {
			return errSleep
		}
	}
}

// Call is Do for actions that return a value.
func Call[T any](ctx context.Context, g *Governor, operation string, action func(context.Context) (T, error), opts ...CallOption) (T, error) {
	var result T
	errDo := g.Do(ctx, operation, func(ctx context.Context) error {
		value, errAction := action(ctx)
		if errAction != nil {
			return errAction
		}
		result = value
		return nil
	}, opts...)
	if errDo != nil {
		var zero T
		return zero, errDo
	}
	return result, nil
}

// IsRateLimited reports whether the global cooldown, or the cooldown for
// operation when non-empty, is active. It never mutates state.
func (g *Governor) IsRateLimited(ctx context.Context, operation string) bool {
	return g.WaitTimeSeconds(ctx, operation) > 0
}

// WaitTimeSeconds returns the longer of the global and operation cooldowns in
// whole seconds, rounded up. It is 0 when nothing is limited.
func (g *Governor) WaitTimeSeconds(ctx context.Context, operation string) int {
	if g == nil {
		return 0
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := g.nowFn()
	wait := 0

	globalUntil, errGlobal := g.store.GlobalBackoffUntil(ctx)
	if errGlobal != nil {
		log.WithError(errGlobal).Warn("rate limit: read global state failed")
	} else if now.Before(globalUntil) {
		wait = ceilSeconds(globalUntil.Sub(now))
	}

	if operation == "" {
		return wait
	}
	state, errState := g.store.Operation(ctx, operation)
	if errState != nil {
		log.WithError(errState).Warnf("rate limit: read state for %s failed", operation)
		return wait
	}
	if now.Before(state.BackoffUntil) {
		if opWait := ceilSeconds(state.BackoffUntil.Sub(now)); opWait > wait {
			wait = opWait
		}
	}
	return wait
}

// begin refuses the call during a cooldown, otherwise records the attempt and
// returns the attempt count including this one.
func (g *Governor) begin(ctx context.Context, operation string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	globalUntil, errGlobal := g.store.GlobalBackoffUntil(ctx)
	if errGlobal != nil {
		return 0, fmt.Errorf("rate limit: read global state: %w", errGlobal)
	}
	if now.Before(globalUntil) {
		return 0, &RateLimitedError{Global: true, WaitSeconds: ceilSeconds(globalUntil.Sub(now))}
	}

	state, errState := g.store.Operation(ctx, operation)
	if errState != nil {
		return 0, fmt.Errorf("rate limit: read state for %s: %w", operation, errState)
	}
	if now.Before(state.BackoffUntil) {
		return 0, &RateLimitedError{Operation: operation, WaitSeconds: ceilSeconds(state.BackoffUntil.Sub(now))}
	}

	state.Attempts++
	state.LastAttempt = now
	if errSave := g.store.SaveOperation(ctx, operation, state); errSave != nil {
		return 0, fmt.Errorf("rate limit: save state for %s: %w", operation, errSave)
	}
	return state.Attempts, nil
}

func (g *Governor) succeed(ctx context.Context, operation string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, errState := g.store.Operation(ctx, operation)
	if errState != nil {
		log.WithError(errState).Warnf("rate limit: reset attempts for %s failed", operation)
		return
	}
	state.Attempts = 0
	if errSave := g.store.SaveOperation(ctx, operation, state); errSave != nil {
		log.WithError(errSave).Warnf("rate limit: reset attempts for %s failed", operation)
	}
}

// fail extends the cooldowns after a throttled attempt and returns the backoff.
// Deadlines only move forward.
func (g *Governor) fail(ctx context.Context, operation string, attempts int, global bool) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	backoff := BackoffDuration(attempts - 1)

	state, errState := g.store.Operation(ctx, operation)
	if errState != nil {
		log.WithError(errState).Warnf("rate limit: read state for %s failed", operation)
	} else {
		if until := now.Add(backoff); until.After(state.BackoffUntil) {
			state.BackoffUntil = until
		}
		if errSave := g.store.SaveOperation(ctx, operation, state); errSave != nil {
			log.WithError(errSave).Warnf("rate limit: save backoff for %s failed", operation)
		}
	}

	if global {
		log.Warn("rate limit: endpoint exhausted, setting global cooldown")
		globalUntil, errGlobal := g.store.GlobalBackoffUntil(ctx)
		if errGlobal != nil {
			log.WithError(errGlobal).Warn("rate limit: read global state failed")
			globalUntil = time.Time{}
		}
		if until := now.Add(globalCooldown); until.After(globalUntil) {
			if errSet := g.store.SetGlobalBackoffUntil(ctx, until); errSet != nil {
				log.WithError(errSet).Warn("rate limit: save global cooldown failed")
			}
		}
	}
	return backoff
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
