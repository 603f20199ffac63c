package local

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/db"
)

func newTestBackend(t *testing.T, cfg Config, opts ...Option) *Backend {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "storefront-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = -1
	}
	b, errNew := New(conn, cfg, opts...)
	if errNew != nil {
		t.Fatalf("new backend: %v", errNew)
	}
	return b
}

func signUp(t *testing.T, b *Backend, email string) (backend.Account, backend.Session) {
	t.Helper()
	ctx := context.Background()
	account, errCreate := b.CreateAccount(ctx, "", email, "password123", "Test User")
	if errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	session, errSession := b.CreateEmailSession(ctx, email, "password123")
	if errSession != nil {
		t.Fatalf("create session: %v", errSession)
	}
	return account, session
}

func TestAccountLifecycle(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()

	account, session := signUp(t, b, "Alice@Example.com")
	if account.Email != "alice@example.com" || len(account.ID) != 32 {
		t.Fatalf("unexpected account %+v", account)
	}

	current, errGet := b.GetAccount(ctx, session.Secret)
	if errGet != nil {
		t.Fatalf("get account: %v", errGet)
	}
	if current.ID != account.ID {
		t.Fatalf("expected %s, got %s", account.ID, current.ID)
	}

	if errDelete := b.DeleteSession(ctx, session.Secret); errDelete != nil {
		t.Fatalf("delete session: %v", errDelete)
	}
	if _, errGet = b.GetAccount(ctx, session.Secret); !backend.IsUnauthorized(errGet) {
		t.Fatalf("expected 401 after sign out, got %v", errGet)
	}
}

func TestCreateAccountRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()
	signUp(t, b, "alice@example.com")

	_, errDup := b.CreateAccount(ctx, "", "alice@example.com", "password123", "Again")
	if got := backend.StatusOf(errDup); got != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", got, errDup)
	}
	_, errWeak := b.CreateAccount(ctx, "", "bob@example.com", "short", "Bob")
	if got := backend.StatusOf(errWeak); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	_, errEmail := b.CreateAccount(ctx, "", "not-an-email", "password123", "Bob")
	if got := backend.StatusOf(errEmail); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
}

func TestCreateEmailSessionInvalidCredentials(t *testing.T) {
	b := newTestBackend(t, Config{})
	signUp(t, b, "alice@example.com")

	for _, tc := range []struct{ email, password string }{
		{"alice@example.com", "wrong-password"},
		{"nobody@example.com", "password123"},
	} {
		_, err := b.CreateEmailSession(context.Background(), tc.email, tc.password)
		if !backend.IsUnauthorized(err) {
			t.Fatalf("expected 401 for %s, got %v", tc.email, err)
		}
		if !strings.Contains(err.Error(), "Invalid credentials") {
			t.Fatalf("unexpected message %q", err.Error())
		}
	}
}

func TestGetAccountRejectsForgedAndExpiredSecrets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBackend(t, Config{SessionTTL: time.Hour}, WithClock(func() time.Time { return now }))
	_, session := signUp(t, b, "alice@example.com")
	ctx := context.Background()

	other := newTestBackend(t, Config{JWTSecret: "other-secret"})
	_, forged := signUp(t, other, "alice@example.com")
	if _, err := b.GetAccount(ctx, forged.Secret); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for foreign secret, got %v", err)
	}
	if _, err := b.GetAccount(ctx, "not-a-token"); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for garbage secret, got %v", err)
	}
	if _, err := b.GetAccount(ctx, ""); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for empty secret, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := b.GetAccount(ctx, session.Secret); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for expired session, got %v", err)
	}
}

func TestRecoveryFlow(t *testing.T) {
	var link string
	b := newTestBackend(t, Config{}, WithRecoveryNotifier(func(_ context.Context, _ string, l string) {
		link = l
	}))
	ctx := context.Background()
	account, session := signUp(t, b, "alice@example.com")

	if errRecovery := b.CreateRecovery(ctx, "alice@example.com", "http://localhost:8080/reset-password"); errRecovery != nil {
		t.Fatalf("create recovery: %v", errRecovery)
	}
	parsed, errParse := url.Parse(link)
	if errParse != nil || parsed.Path != "/reset-password" {
		t.Fatalf("unexpected link %q", link)
	}
	userID, secret := parsed.Query().Get("userId"), parsed.Query().Get("secret")
	if userID != account.ID || secret == "" {
		t.Fatalf("unexpected link params %q", parsed.RawQuery)
	}

	if err := b.UpdateRecovery(ctx, userID, "wrong", "newpassword1"); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for wrong secret, got %v", err)
	}
	if err := b.UpdateRecovery(ctx, userID, secret, "newpassword1"); err != nil {
		t.Fatalf("update recovery: %v", err)
	}
	if err := b.UpdateRecovery(ctx, userID, secret, "newpassword2"); !backend.IsUnauthorized(err) {
		t.Fatalf("expected secret to be single use, got %v", err)
	}
	if _, err := b.GetAccount(ctx, session.Secret); !backend.IsUnauthorized(err) {
		t.Fatalf("expected old sessions revoked, got %v", err)
	}
	if _, err := b.CreateEmailSession(ctx, "alice@example.com", "newpassword1"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}

	if err := b.CreateRecovery(ctx, "nobody@example.com", "http://localhost/reset-password"); !backend.IsNotFound(err) {
		t.Fatalf("expected 404 for unknown email, got %v", err)
	}
}

func TestDocumentsCRUDAndOwnership(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()
	alice, aliceSession := signUp(t, b, "alice@example.com")
	_, bobSession := signUp(t, b, "bob@example.com")

	doc, errCreate := b.CreateDocument(ctx, aliceSession.Secret, "brands", "", map[string]any{
		"name":    "Acme",
		"slug":    "acme",
		"ownerId": alice.ID,
	})
	if errCreate != nil {
		t.Fatalf("create document: %v", errCreate)
	}
	if doc.ID == "" || doc.String("slug") != "acme" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if _, err := b.CreateDocument(ctx, "", "brands", "", map[string]any{"name": "Anon"}); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for anonymous create, got %v", err)
	}

	list, errList := b.ListDocuments(ctx, "", "brands", backend.Equal("slug", "acme"))
	if errList != nil {
		t.Fatalf("list documents: %v", errList)
	}
	if list.Total != 1 || list.Documents[0].ID != doc.ID {
		t.Fatalf("unexpected list %+v", list)
	}
	empty, errEmpty := b.ListDocuments(ctx, "", "brands", backend.Equal("slug", "missing"))
	if errEmpty != nil || empty.Total != 0 {
		t.Fatalf("expected empty list, got %+v (%v)", empty, errEmpty)
	}
	byID, errByID := b.ListDocuments(ctx, "", "brands", backend.Equal("$id", doc.ID))
	if errByID != nil || byID.Total != 1 {
		t.Fatalf("expected lookup by $id, got %+v (%v)", byID, errByID)
	}
	if _, err := b.ListDocuments(ctx, "", "brands", backend.Equal("slug') OR 1=1 --", "x")); backend.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid attribute, got %v", err)
	}

	if _, err := b.UpdateDocument(ctx, bobSession.Secret, "brands", doc.ID, map[string]any{"name": "Stolen"}); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for foreign update, got %v", err)
	}
	if err := b.DeleteDocument(ctx, bobSession.Secret, "brands", doc.ID); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for foreign delete, got %v", err)
	}

	updated, errUpdate := b.UpdateDocument(ctx, aliceSession.Secret, "brands", doc.ID, map[string]any{"name": "Acme Corp"})
	if errUpdate != nil {
		t.Fatalf("update document: %v", errUpdate)
	}
	if updated.String("name") != "Acme Corp" || updated.String("slug") != "acme" {
		t.Fatalf("expected merged attributes, got %+v", updated.Data)
	}

	if err := b.DeleteDocument(ctx, aliceSession.Secret, "brands", doc.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if _, err := b.GetDocument(ctx, "", "brands", doc.ID); !backend.IsNotFound(err) {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestThrottleReturnsRateLimitError(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBackend(t, Config{RequestsPerMin: 1, Burst: 2}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := b.ListDocuments(ctx, "", "brands"); err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}
	_, err := b.ListDocuments(ctx, "", "brands")
	if got := backend.StatusOf(err); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", got)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "rate limit for the current endpoint has been exceeded") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	// Other endpoints keep their own budget.
	if _, errGet := b.GetDocument(ctx, "", "brands", "missing"); !backend.IsNotFound(errGet) {
		t.Fatalf("expected 404 from separate endpoint, got %v", errGet)
	}

	now = now.Add(time.Minute)
	if _, errList := b.ListDocuments(ctx, "", "brands"); errList != nil {
		t.Fatalf("expected refill after a minute, got %v", errList)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCreateFileAndPreview(t *testing.T) {
	b := newTestBackend(t, Config{PublicURL: "http://localhost:8080/"})
	ctx := context.Background()
	_, session := signUp(t, b, "alice@example.com")

	file, errCreate := b.CreateFile(ctx, session.Secret, "images", "", backend.Upload{Name: "logo.png", Data: testPNG(t, 40, 20)})
	if errCreate != nil {
		t.Fatalf("create file: %v", errCreate)
	}
	if file.MimeType != "image/png" {
		t.Fatalf("expected detected png, got %q", file.MimeType)
	}

	previewURL := b.FilePreviewURL("images", file.ID, backend.PreviewOptions{Width: 10, Height: 10, Gravity: "center", Quality: 80})
	if !strings.HasPrefix(previewURL, "http://localhost:8080/api/storage/buckets/images/files/"+file.ID+"/preview?") {
		t.Fatalf("unexpected preview url %q", previewURL)
	}
	parsed, _ := url.Parse(previewURL)
	preview, errPreview := b.Preview(ctx, "images", file.ID, ParsePreviewOptions(parsed.Query()))
	if errPreview != nil {
		t.Fatalf("preview: %v", errPreview)
	}
	if preview.ContentType != "image/png" {
		t.Fatalf("expected png preview, got %q", preview.ContentType)
	}
	decoded, errDecode := png.Decode(bytes.NewReader(preview.Data))
	if errDecode != nil {
		t.Fatalf("decode preview: %v", errDecode)
	}
	if got := decoded.Bounds().Size(); got != image.Pt(10, 10) {
		t.Fatalf("expected 10x10 preview, got %v", got)
	}

	if _, err := b.Preview(ctx, "images", "missing", backend.PreviewOptions{}); !backend.IsNotFound(err) {
		t.Fatalf("expected 404 for missing file, got %v", err)
	}
	if _, err := b.CreateFile(ctx, "", "images", "", backend.Upload{Name: "x", Data: []byte("x")}); !backend.IsUnauthorized(err) {
		t.Fatalf("expected 401 for anonymous upload, got %v", err)
	}
}

func TestTransformKeepsAspectWithOneDimension(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	dst := Transform(src, backend.PreviewOptions{Width: 100})
	if got := dst.Bounds().Size(); got != image.Pt(100, 50) {
		t.Fatalf("expected 100x50, got %v", got)
	}
	if same := Transform(src, backend.PreviewOptions{}); same != image.Image(src) {
		t.Fatalf("expected untouched image without dimensions")
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Alice Smith":      "AS",
		"bob":              "B",
		"  jean  luc pic ": "JL",
		"":                 "",
	}
	for name, want := range cases {
		if got := Initials(name); got != want {
			t.Fatalf("%q: expected %q, got %q", name, want, got)
		}
	}
	if svg := string(InitialsSVG("<Alice>")); !strings.Contains(svg, ">A</text>") {
		t.Fatalf("unexpected svg %q", svg)
	}
}
