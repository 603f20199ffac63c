package ratelimit

import (
	"errors"
	"net/http"
	"strings"
)

// Message fragments the backend uses when it throttles a caller. The endpoint
// exhaustion fragment also signals a global cooldown.
const (
	fragmentRateLimit        = "rate limit"
	fragmentTooManyRequests  = "too many requests"
	fragmentEndpointExceeded = "for the current endpoint has been exceeded"
)

type statusCoder interface {
	StatusCode() int
}

// Classify reports whether err is a throttling error and whether it should
// trigger the global cooldown. It is the only place that knows the backend's
// error shape.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	msg := strings.ToLower(err.Error())
	global := strings.Contains(msg, fragmentEndpointExceeded)
	limited := global ||
		strings.Contains(msg, fragmentRateLimit) ||
		strings.Contains(msg, fragmentTooManyRequests)

	var coder statusCoder
	if errors.As(err, &coder) && coder.StatusCode() == http.StatusTooManyRequests {
		limited = true
	}
	return Classification{RateLimited: limited, Global: global}
}
