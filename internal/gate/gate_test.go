package gate

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestClassify(t *testing.T) {
	cases := map[string]RouteClass{
		"/":                        RoutePublic,
		"/about":                   RoutePublic,
		"/terms":                   RoutePublic,
		"/privacy":                 RoutePublic,
		"/login":                   RouteAuthOnly,
		"/register":                RouteAuthOnly,
		"/forgot-password":         RouteAuthOnly,
		"/reset-password":          RouteAuthOnly,
		"/reset-password/confirm":  RouteAuthOnly,
		"/about/team":              RoutePublic,
		"/dashboard":               RouteProtected,
		"/alice":                   RouteProtected,
		"/brand/acme":              RouteProtected,
		"/loginx":                  RouteProtected,
		"/aboutus":                 RouteProtected,
		"/dashboard/brands/create": RouteProtected,
	}
	for path, want := range cases {
		if got := Classify(path); got != want {
			t.Fatalf("%s: expected %s, got %s", path, want, got)
		}
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		cookies  Cookies
		redirect string
	}{
		{name: "signed in on auth route", path: "/register", cookies: Cookies{SessionPresent: true, Username: "alice"}, redirect: "/alice"},
		{name: "signed in on landing", path: "/", cookies: Cookies{SessionPresent: true, Username: "alice"}, redirect: "/alice"},
		{name: "signed in on public page", path: "/terms", cookies: Cookies{SessionPresent: true, Username: "alice"}},
		{name: "signed in on protected page", path: "/dashboard", cookies: Cookies{SessionPresent: true, Username: "alice"}},
		{name: "anonymous on public page", path: "/privacy"},
		{name: "anonymous on auth route", path: "/login"},
		{name: "anonymous on landing", path: "/"},
		{name: "anonymous on protected page", path: "/alice/brands", redirect: "/login?callbackUrl=%2Falice%2Fbrands"},
		{name: "username without session", path: "/dashboard", cookies: Cookies{Username: "alice"}, redirect: "/login?callbackUrl=%2Fdashboard"},
		{name: "signed in without username", path: "/login", cookies: Cookies{SessionPresent: true}, redirect: "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Decide(tc.path, tc.cookies)
			if decision.Redirect != tc.redirect {
				t.Fatalf("expected redirect %q, got %q", tc.redirect, decision.Redirect)
			}
			if decision.Pass() != (tc.redirect == "") {
				t.Fatalf("expected Pass()=%v", tc.redirect == "")
			}
		})
	}
}

func newGateRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(Config{}))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "page") }
	router.GET("/", ok)
	router.GET("/login", ok)
	router.GET("/about", ok)
	router.GET("/dashboard", ok)
	router.GET("/api/brands", ok)
	return router
}

func serve(router *gin.Engine, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddlewareRedirectsAnonymousFromProtected(t *testing.T) {
	w := serve(newGateRouter(), "/dashboard")
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	location, errParse := url.Parse(w.Header().Get("Location"))
	if errParse != nil {
		t.Fatalf("parse location: %v", errParse)
	}
	if location.Path != "/login" {
		t.Fatalf("expected /login, got %q", location.Path)
	}
	if got := location.Query().Get("callbackUrl"); got != "/dashboard" {
		t.Fatalf("expected callbackUrl=/dashboard, got %q", got)
	}
}

func TestMiddlewareRedirectsSignedInFromLogin(t *testing.T) {
	w := serve(newGateRouter(), "/login",
		&http.Cookie{Name: DefaultSessionCookie, Value: "secret"},
		&http.Cookie{Name: UsernameCookie, Value: "alice"},
	)
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/alice" {
		t.Fatalf("expected /alice, got %q", got)
	}
}

func TestMiddlewarePassesAnonymousPublicPage(t *testing.T) {
	w := serve(newGateRouter(), "/about")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "" {
		t.Fatalf("expected no redirect, got %q", got)
	}
	if got := w.Body.String(); got != "page" {
		t.Fatalf("expected page body, got %q", got)
	}
}

func TestMiddlewareLandingWithoutUsernameCookie(t *testing.T) {
	// The username cookie is written after the identity check, so a fresh
	// session can arrive without it. The target degrades to "/".
	w := serve(newGateRouter(), "/", &http.Cookie{Name: DefaultSessionCookie, Value: "secret"})
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/" {
		t.Fatalf("expected /, got %q", got)
	}
}

func TestMiddlewareIgnoresEmptySessionCookie(t *testing.T) {
	w := serve(newGateRouter(), "/dashboard", &http.Cookie{Name: DefaultSessionCookie, Value: ""})
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
}

func TestMiddlewareForgedUsernameOnlyChangesTarget(t *testing.T) {
	w := serve(newGateRouter(), "/login",
		&http.Cookie{Name: DefaultSessionCookie, Value: "secret"},
		&http.Cookie{Name: UsernameCookie, Value: "mallory"},
	)
	if got := w.Header().Get("Location"); got != "/mallory" {
		t.Fatalf("expected /mallory, got %q", got)
	}

	// Without a session cookie a username grants nothing.
	w = serve(newGateRouter(), "/dashboard", &http.Cookie{Name: UsernameCookie, Value: "alice"})
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect to login, got %d", w.Code)
	}
}

func TestMiddlewareBypassesAPI(t *testing.T) {
	w := serve(newGateRouter(), "/api/brands")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUsernameCookieAttributes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetUsernameCookie(c, "alice", false)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != UsernameCookie || cookie.Value != "alice" {
		t.Fatalf("unexpected cookie %s=%s", cookie.Name, cookie.Value)
	}
	if cookie.Path != "/" {
		t.Fatalf("expected path /, got %q", cookie.Path)
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite=Strict, got %v", cookie.SameSite)
	}
	if cookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("expected 7 day max age, got %d", cookie.MaxAge)
	}
}
