package gate

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// UsernameCookieTTL is how long a confirmed username is remembered.
const UsernameCookieTTL = 7 * 24 * time.Hour

// SetUsernameCookie records the username confirmed by an identity check.
func SetUsernameCookie(c *gin.Context, username string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     UsernameCookie,
		Value:    username,
		Path:     "/",
		MaxAge:   int(UsernameCookieTTL / time.Second),
		Expires:  time.Now().Add(UsernameCookieTTL),
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearUsernameCookie removes the username cookie.
func ClearUsernameCookie(c *gin.Context, secure bool) {
	clearCookie(c, UsernameCookie, secure)
}

// SetSessionCookie stores the backend session secret for later data calls.
func SetSessionCookie(c *gin.Context, name, secret string, expires time.Time, secure bool) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    secret,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
	}
	http.SetCookie(c.Writer, cookie)
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(c *gin.Context, name string, secure bool) {
	clearCookie(c, name, secure)
}

func clearCookie(c *gin.Context, name string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
