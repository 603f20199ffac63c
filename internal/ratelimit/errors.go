package ratelimit

import (
	"errors"
	"fmt"
)

// ErrRateLimited matches any *RateLimitedError via errors.Is.
var ErrRateLimited = errors.New("rate limited")

// ErrOperationUnavailable is returned once retries are exhausted.
var ErrOperationUnavailable = errors.New("operation temporarily unavailable due to rate limiting, please try again later")

// RateLimitedError reports an active cooldown. Operation is empty for the global cooldown.
type RateLimitedError struct {
	Operation   string
	Global      bool
	WaitSeconds int
}

func (e *RateLimitedError) Error() string {
	if e.Global {
		return fmt.Sprintf("rate limit for all operations reached, try again in %d seconds", e.WaitSeconds)
	}
	return fmt.Sprintf("rate limit reached for %s, try again in %d seconds", e.Operation, e.WaitSeconds)
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
