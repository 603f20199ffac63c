// Package storefront is the data-access layer for users, brands and products.
// Every backend call runs through the backoff governor under a stable
// operation name so cooldowns are tracked per user-facing action.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/ratelimit"
)

// Operation names tracked by the governor.
const (
	OpSignUp         = "sign up"
	OpSignIn         = "sign in"
	OpCurrentUser    = "get current user"
	OpSignOut        = "sign out"
	OpForgotPassword = "forgot password"
	OpResetPassword  = "reset password"
	OpCreateBrand    = "create brand"
	OpGetBrand       = "get brand"
	OpListBrands     = "list brands"
	OpUpdateBrand    = "update brand"
	OpDeleteBrand    = "delete brand"
	OpUploadFile     = "upload file"
	OpCreateProduct  = "create product"
	OpGetProduct     = "get product"
	OpListProducts   = "list products"
	OpUpdateProduct  = "update product"
	OpDeleteProduct  = "delete product"
	OpGetUser        = "get user"
)

// Operations lists every operation name in a stable order.
var Operations = []string{
	OpSignUp, OpSignIn, OpCurrentUser, OpSignOut, OpForgotPassword, OpResetPassword,
	OpCreateBrand, OpGetBrand, OpListBrands, OpUpdateBrand, OpDeleteBrand, OpUploadFile,
	OpCreateProduct, OpGetProduct, OpListProducts, OpUpdateProduct, OpDeleteProduct, OpGetUser,
}

var (
	// ErrUserNotFound is returned when no user document matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrBrandNotFound is returned when no brand matches a slug.
	ErrBrandNotFound = errors.New("brand not found")
	// ErrProductNotFound is returned when no product matches a slug.
	ErrProductNotFound = errors.New("product not found")
)

// Config names the collections and bucket holding storefront data.
type Config struct {
	UserCollectionID    string
	BrandCollectionID   string
	ProductCollectionID string
	StorageID           string
}

func (c Config) validate() error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(c.UserCollectionID) == "" {
		missing = append(missing, "user collection")
	}
	if strings.TrimSpace(c.BrandCollectionID) == "" {
		missing = append(missing, "brand collection")
	}
	if strings.TrimSpace(c.ProductCollectionID) == "" {
		missing = append(missing, "product collection")
	}
	if strings.TrimSpace(c.StorageID) == "" {
		missing = append(missing, "storage bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("storefront: missing %s id", strings.Join(missing, ", "))
	}
	return nil
}

// Service wraps the backend with rate-limit governance.
type Service struct {
	backend  backend.Backend
	governor *ratelimit.Governor
	cfg      Config
	now      func() time.Time
}

// NewService constructs the storefront service.
func NewService(b backend.Backend, governor *ratelimit.Governor, cfg Config) (*Service, error) {
	if b == nil {
		return nil, fmt.Errorf("storefront: nil backend")
	}
	if governor == nil {
		return nil, fmt.Errorf("storefront: nil governor")
	}
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return &Service{backend: b, governor: governor, cfg: cfg, now: time.Now}, nil
}

// Governor exposes the governor for status queries.
func (s *Service) Governor() *ratelimit.Governor {
	return s.governor
}

// Backend exposes the underlying backend.
func (s *Service) Backend() backend.Backend {
	return s.backend
}

// uploadImage stores an upload and returns its preview URL.
func (s *Service) uploadImage(ctx context.Context, session string, upload backend.Upload) (string, error) {
	file, err := ratelimit.Call(ctx, s.governor, OpUploadFile, func(ctx context.Context) (backend.File, error) {
		return s.backend.CreateFile(ctx, session, s.cfg.StorageID, backend.NewID(), upload)
	})
	if err != nil {
		return "", err
	}
	return s.backend.FilePreviewURL(s.cfg.StorageID, file.ID, backend.DefaultPreview), nil
}

// timestamp matches the millisecond ISO-8601 format stored on documents.
func (s *Service) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Slugify lowercases name, drops everything outside [a-z0-9 ] and turns each
// run of spaces into a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			inSpace = false
		case r == ' ':
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
		}
	}
	return b.String()
}
