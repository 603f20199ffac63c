package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/ratelimit"
	"github.com/router-for-me/Storefront/internal/storefront"
	log "github.com/sirupsen/logrus"
)

// statusClientClosedRequest reports a request the client abandoned.
const statusClientClosedRequest = 499

const (
	contextUserKey    = "storefront_user"
	contextSessionKey = "storefront_session"
)

// WriteError maps service errors to HTTP responses.
func WriteError(c *gin.Context, err error) {
	var limited *ratelimit.RateLimitedError
	var backendErr *backend.Error
	switch {
	case errors.Is(err, context.Canceled):
		log.Debugf("request %s %s cancelled by client", c.Request.Method, c.Request.URL.Path)
		c.AbortWithStatus(statusClientClosedRequest)
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(limited.WaitSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": limited.Error(), "wait_seconds": limited.WaitSeconds})
	case errors.Is(err, ratelimit.ErrOperationUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &backendErr):
		status := backendErr.StatusCode()
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": backendErr.Error(), "type": backendErr.Type})
	case errors.Is(err, storefront.ErrUserNotFound),
		errors.Is(err, storefront.ErrBrandNotFound),
		errors.Is(err, storefront.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Errorf("request %s %s failed", c.Request.Method, c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// CurrentUser returns the user set by the auth middleware.
func CurrentUser(c *gin.Context) (storefront.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return storefront.User{}, false
	}
	user, ok := value.(storefront.User)
	return user, ok
}

// SetCurrentUser records the authenticated user and session on the context.
func SetCurrentUser(c *gin.Context, user storefront.User, session string) {
	c.Set(contextUserKey, user)
	c.Set(contextSessionKey, session)
}

// SetSession records the session secret read from the request.
func SetSession(c *gin.Context, session string) {
	c.Set(contextSessionKey, session)
}

// Session returns the session secret of the request.
func Session(c *gin.Context) string {
	return c.GetString(contextSessionKey)
}
