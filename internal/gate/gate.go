// Package gate authorizes page navigations from cookies alone. It never calls
// the backend: the session cookie is only checked for presence, and the username
// cookie only chooses a redirect target. Data access is authorized separately by
// the backend using the real session secret, so a forged cookie can mis-route a
// navigation but cannot read or write anything.
package gate

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultSessionCookie is the cookie carrying the backend session secret.
	DefaultSessionCookie = "auth-session"
	// UsernameCookie holds the username confirmed by the last identity check.
	UsernameCookie = "user-username"

	loginPath     = "/login"
	callbackParam = "callbackUrl"
)

// DefaultBypassPrefixes are never gated: API calls, static assets and probes.
var DefaultBypassPrefixes = []string{"/api", "/assets", "/public", "/favicon.ico", "/healthz"}

// Cookies is the authorization state read from a request.
type Cookies struct {
	SessionPresent bool
	Username       string
}

// Decision is the gate outcome for one request. An empty Redirect passes through.
type Decision struct {
	Class    RouteClass
	Redirect string
}

// Pass reports whether the request continues unchanged.
func (d Decision) Pass() bool {
	return d.Redirect == ""
}

// Decide applies the routing table to path and cookies.
func Decide(path string, cookies Cookies) Decision {
	class := Classify(path)
	decision := Decision{Class: class}

	if cookies.SessionPresent {
		// A missing username cookie degrades the target to "/".
		if class == RouteAuthOnly || path == "/" {
			decision.Redirect = "/" + url.PathEscape(cookies.Username)
		}
		return decision
	}

	if class == RouteProtected {
		decision.Redirect = loginPath + "?" + url.Values{callbackParam: {path}}.Encode()
	}
	return decision
}

// Config controls the gate middleware.
type Config struct {
	SessionCookie  string
	BypassPrefixes []string
}

func (c Config) normalize() Config {
	c.SessionCookie = strings.TrimSpace(c.SessionCookie)
	if c.SessionCookie == "" {
		c.SessionCookie = DefaultSessionCookie
	}
	if c.BypassPrefixes == nil {
		c.BypassPrefixes = DefaultBypassPrefixes
	}
	return c
}

// ReadCookies extracts the gate inputs from a request.
func ReadCookies(r *http.Request, sessionCookie string) Cookies {
	var cookies Cookies
	if r == nil {
		return cookies
	}
	if session, errCookie := r.Cookie(sessionCookie); errCookie == nil && session.Value != "" {
		cookies.SessionPresent = true
	}
	if username, errCookie := r.Cookie(UsernameCookie); errCookie == nil {
		cookies.Username = username.Value
	}
	return cookies
}

// Middleware returns the gin middleware that redirects or passes each request.
func Middleware(cfg Config) gin.HandlerFunc {
	cfg = cfg.normalize()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if bypassed(path, cfg.BypassPrefixes) {
			c.Next()
			return
		}
		decision := Decide(path, ReadCookies(c.Request, cfg.SessionCookie))
		if decision.Pass() {
			c.Next()
			return
		}
		c.Redirect(http.StatusTemporaryRedirect, decision.Redirect)
		c.Abort()
	}
}

func bypassed(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
