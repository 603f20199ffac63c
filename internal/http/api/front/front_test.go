package front

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/backend/local"
	"github.com/router-for-me/Storefront/internal/db"
	"github.com/router-for-me/Storefront/internal/gate"
	"github.com/router-for-me/Storefront/internal/http/api/front/handlers"
	"github.com/router-for-me/Storefront/internal/ratelimit"
	"github.com/router-for-me/Storefront/internal/storefront"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "storefront-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	localBackend, errBackend := local.New(conn, local.Config{JWTSecret: "test-secret", RequestsPerMin: -1})
	if errBackend != nil {
		t.Fatalf("new backend: %v", errBackend)
	}
	svc, errSvc := storefront.NewService(localBackend, ratelimit.NewGovernor(ratelimit.NewMemoryStore()), storefront.Config{
		UserCollectionID:    "users",
		BrandCollectionID:   "brands",
		ProductCollectionID: "products",
		StorageID:           "images",
	})
	if errSvc != nil {
		t.Fatalf("new service: %v", errSvc)
	}

	r := gin.New()
	r.Use(gate.Middleware(gate.Config{}))
	RegisterFrontRoutes(r, svc, Options{Previewer: localBackend})
	return r
}

func request(r *gin.Engine, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieValue(w *httptest.ResponseRecorder, name string) (string, bool) {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}

func register(t *testing.T, r *gin.Engine, name, email string) []*http.Cookie {
	t.Helper()
	w := request(r, http.MethodPost, "/api/auth/register", gin.H{"name": name, "email": email, "password": "password123"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, w.Code, w.Body.String())
	}
	session, ok := cookieValue(w, gate.DefaultSessionCookie)
	if !ok || session == "" {
		t.Fatalf("expected session cookie")
	}
	username, _ := cookieValue(w, gate.UsernameCookie)
	return []*http.Cookie{
		{Name: gate.DefaultSessionCookie, Value: session},
		{Name: gate.UsernameCookie, Value: username},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRegisterSetsCookies(t *testing.T) {
	r := newTestRouter(t)
	cookies := register(t, r, "Alice", "alice@example.com")
	if cookies[1].Value != "alice" {
		t.Fatalf("expected username cookie alice, got %q", cookies[1].Value)
	}

	w := request(r, http.MethodGet, "/api/auth/me", nil, cookies[:1])
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if username, _ := cookieValue(w, gate.UsernameCookie); username != "alice" {
		t.Fatalf("expected me to refresh username cookie, got %q", username)
	}
}

func TestLoginAndLogout(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "Alice", "alice@example.com")

	w := request(r, http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "nope-nope"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if msg, _ := decode(t, w)["error"].(string); !strings.Contains(msg, "Invalid credentials") {
		t.Fatalf("unexpected error %q", msg)
	}

	w = request(r, http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "password123"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	session, _ := cookieValue(w, gate.DefaultSessionCookie)
	cookies := []*http.Cookie{{Name: gate.DefaultSessionCookie, Value: session}}

	w = request(r, http.MethodPost, "/api/auth/logout", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if value, ok := cookieValue(w, gate.UsernameCookie); !ok || value != "" {
		t.Fatalf("expected username cookie cleared")
	}

	w = request(r, http.MethodGet, "/api/auth/me", nil, cookies)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestProtectedPagesRequireSession(t *testing.T) {
	r := newTestRouter(t)
	cookies := register(t, r, "Alice", "alice@example.com")

	w := request(r, http.MethodGet, "/dashboard", nil, nil)
	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/login?callbackUrl=%2Fdashboard" {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = request(r, http.MethodGet, "/dashboard", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if page := decode(t, w)["page"]; page != "dashboard" {
		t.Fatalf("expected dashboard payload, got %v", page)
	}

	w = request(r, http.MethodGet, "/login", nil, cookies)
	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/alice" {
		t.Fatalf("expected redirect to profile, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestStaleSessionRedirectsToLogin(t *testing.T) {
	r := newTestRouter(t)
	stale := []*http.Cookie{{Name: gate.DefaultSessionCookie, Value: "stale"}}

	w := request(r, http.MethodGet, "/dashboard", nil, stale)
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if location := w.Header().Get("Location"); !strings.HasPrefix(location, "/login?") {
		t.Fatalf("expected login redirect, got %q", location)
	}
	if value, ok := cookieValue(w, gate.DefaultSessionCookie); !ok || value != "" {
		t.Fatalf("expected session cookie cleared")
	}
}

func TestForgedUsernameCannotModifyOtherUsersData(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "Alice", "alice@example.com")
	bob := register(t, r, "Bob", "bob@example.com")

	w := request(r, http.MethodPost, "/api/brands", gin.H{"name": "Acme", "description": "Anvils"}, alice)
	if w.Code != http.StatusCreated {
		t.Fatalf("create brand: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	brandID := decode(t, w)["brand"].(map[string]any)["$id"].(string)

	forged := []*http.Cookie{bob[0], {Name: gate.UsernameCookie, Value: "alice"}}
	w = request(r, http.MethodPut, "/api/brands/"+brandID, gin.H{"name": "Hijacked"}, forged)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for forged update, got %d", w.Code)
	}
	w = request(r, http.MethodDelete, "/api/brands/"+brandID, nil, forged)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for forged delete, got %d", w.Code)
	}
	w = request(r, http.MethodGet, "/alice/settings", nil, forged)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for forged settings, got %d", w.Code)
	}

	// Username cookie alone, without any session.
	w = request(r, http.MethodPut, "/api/brands/"+brandID, gin.H{"name": "Hijacked"}, forged[1:])
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", w.Code)
	}

	w = request(r, http.MethodGet, "/api/brands/"+brandID, nil, nil)
	if name := decode(t, w)["brand"].(map[string]any)["name"]; name != "Acme" {
		t.Fatalf("expected brand untouched, got %v", name)
	}
}

func TestBrandAndProductFlow(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "Alice", "alice@example.com")

	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	_ = writer.WriteField("name", "Acme Corp")
	part, _ := writer.CreateFormFile("logo", "logo.png")
	_, _ = part.Write(pngBuf.Bytes())
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/brands", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.AddCookie(alice[0])
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create brand: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	brand := decode(t, w)["brand"].(map[string]any)
	if brand["slug"] != "acme-corp" {
		t.Fatalf("unexpected slug %v", brand["slug"])
	}

	logoURL, errParse := url.Parse(brand["logoUrl"].(string))
	if errParse != nil {
		t.Fatalf("parse logo url: %v", errParse)
	}
	w = request(r, http.MethodGet, logoURL.RequestURI(), nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png preview, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	brandID := brand["$id"].(string)
	w = request(r, http.MethodPost, "/api/products", gin.H{
		"name": "Rocket Skates", "price": 19.99, "category": "gear", "brand": brandID, "stock": 5,
	}, alice)
	if w.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	productID := decode(t, w)["product"].(map[string]any)["$id"].(string)

	w = request(r, http.MethodGet, "/brand/acme-corp", nil, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("brand page: expected 200, got %d", w.Code)
	}
	payload := decode(t, w)
	if products := payload["products"].([]any); len(products) != 1 || payload["is_owner"] != true {
		t.Fatalf("unexpected brand page %v", payload)
	}

	w = request(r, http.MethodPut, "/api/products/"+productID, gin.H{"stock": 0, "isActive": false}, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("update product: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	product := decode(t, w)["product"].(map[string]any)
	if product["stock"] != float64(0) || product["isActive"] != false || product["name"] != "Rocket Skates" {
		t.Fatalf("unexpected product %v", product)
	}

	w = request(r, http.MethodGet, "/api/products?category=gear", nil, nil)
	if products := decode(t, w)["products"].([]any); len(products) != 1 {
		t.Fatalf("expected one product in category, got %d", len(products))
	}

	w = request(r, http.MethodDelete, "/api/products/"+productID, nil, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("delete product: expected 200, got %d", w.Code)
	}
}

func TestRateLimitStatusEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := request(r, http.MethodGet, "/api/auth/rate-limit?operation="+url.QueryEscape(storefront.OpSignIn), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decode(t, w)
	if payload["rate_limited"] != false || payload["wait_seconds"] != float64(0) || payload["operation"] != "sign in" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name       string
		err        error
		status     int
		retryAfter string
	}{
		{name: "operation cooldown", err: &ratelimit.RateLimitedError{Operation: "sign in", WaitSeconds: 42}, status: http.StatusTooManyRequests, retryAfter: "42"},
		{name: "global cooldown", err: &ratelimit.RateLimitedError{Global: true, WaitSeconds: 60}, status: http.StatusTooManyRequests, retryAfter: "60"},
		{name: "exhausted", err: ratelimit.ErrOperationUnavailable, status: http.StatusServiceUnavailable},
		{name: "backend", err: &backend.Error{Code: http.StatusConflict, Message: "exists"}, status: http.StatusConflict},
		{name: "wrapped not found", err: errors.Join(storefront.ErrBrandNotFound), status: http.StatusNotFound},
		{name: "client gone during backoff", err: fmt.Errorf("sign in: %w", context.Canceled), status: 499},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)
			handlers.WriteError(c, tc.err)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if got := w.Header().Get("Retry-After"); got != tc.retryAfter {
				t.Fatalf("expected Retry-After %q, got %q", tc.retryAfter, got)
			}
			if tc.retryAfter != "" {
				if wait := decode(t, w)["wait_seconds"]; wait == nil {
					t.Fatalf("expected wait_seconds in body")
				}
			}
		})
	}
}
