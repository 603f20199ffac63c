package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/gate"
	"github.com/router-for-me/Storefront/internal/storefront"
)

// CookieConfig controls the cookies written on identity checks.
type CookieConfig struct {
	SessionCookie string
	Secure        bool
}

func (c CookieConfig) sessionCookie() string {
	if c.SessionCookie == "" {
		return gate.DefaultSessionCookie
	}
	return c.SessionCookie
}

// ReadSession returns the session secret carried by the request cookie.
func (c CookieConfig) ReadSession(r *http.Request) string {
	cookie, errCookie := r.Cookie(c.sessionCookie())
	if errCookie != nil {
		return ""
	}
	return cookie.Value
}

// remember stores the session secret and the confirmed username.
func (c CookieConfig) remember(ctx *gin.Context, session backend.Session, user *storefront.User) {
	gate.SetSessionCookie(ctx, c.sessionCookie(), session.Secret, session.Expire, c.Secure)
	c.syncUsername(ctx, user)
}

// syncUsername writes or clears the username cookie after an identity check.
func (c CookieConfig) syncUsername(ctx *gin.Context, user *storefront.User) {
	if user == nil || user.Username == "" {
		gate.ClearUsernameCookie(ctx, c.Secure)
		return
	}
	gate.SetUsernameCookie(ctx, user.Username, c.Secure)
}

// forget clears both authorization cookies.
func (c CookieConfig) forget(ctx *gin.Context) {
	gate.ClearSessionCookie(ctx, c.sessionCookie(), c.Secure)
	gate.ClearUsernameCookie(ctx, c.Secure)
}
