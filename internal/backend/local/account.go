package local

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/models"
	"github.com/router-for-me/Storefront/internal/security"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
	sessionIssuer     = "storefront"
)

type sessionClaims struct {
	jwt.RegisteredClaims
}

// CreateAccount registers a new account.
func (b *Backend) CreateAccount(ctx context.Context, accountID, email, password, name string) (backend.Account, error) {
	if errThrottle := b.throttle("account.create"); errThrottle != nil {
		return backend.Account{}, errThrottle
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, errParse := mail.ParseAddress(email); errParse != nil || email == "" {
		return backend.Account{}, newError(http.StatusBadRequest, backend.TypeGeneralArgumentInvalid, "Invalid `email` param: Value must be a valid email address")
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return backend.Account{}, newError(http.StatusBadRequest, backend.TypeGeneralArgumentInvalid,
			fmt.Sprintf("Invalid `password` param: Password must be between %d and %d characters long.", minPasswordLength, maxPasswordLength))
	}
	if isUniqueID(accountID) {
		accountID = backend.NewID()
	}

	db := b.db.WithContext(ctx)
	var existing int64
	if errCount := db.Model(&models.Account{}).
		Where("email = ? OR id = ?", email, accountID).
		Count(&existing).Error; errCount != nil {
		return backend.Account{}, internalError("count accounts", errCount)
	}
	if existing > 0 {
		return backend.Account{}, errAccountExists()
	}

	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return backend.Account{}, internalError("hash password", errHash)
	}
	row := models.Account{ID: accountID, Name: strings.TrimSpace(name), Email: email, Password: hashed}
	if errCreate := db.Create(&row).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return backend.Account{}, errAccountExists()
		}
		return backend.Account{}, internalError("create account", errCreate)
	}
	return accountView(row), nil
}

// CreateEmailSession verifies credentials and issues a session secret.
func (b *Backend) CreateEmailSession(ctx context.Context, email, password string) (backend.Session, error) {
	if errThrottle := b.throttle("account.sessions.create"); errThrottle != nil {
		return backend.Session{}, errThrottle
	}
	email = strings.ToLower(strings.TrimSpace(email))

	db := b.db.WithContext(ctx)
	var account models.Account
	errFind := db.Where("email = ?", email).First(&account).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return backend.Session{}, internalError("load account", errFind)
	}
	if errFind != nil || !security.CheckPassword(account.Password, password) {
		return backend.Session{}, newError(http.StatusUnauthorized, backend.TypeUserInvalidCredentials,
			"Invalid credentials. Please check the email and password.")
	}

	now := b.now().UTC()
	row := models.Session{ID: backend.NewID(), AccountID: account.ID, ExpiresAt: now.Add(b.cfg.SessionTTL)}
	if errCreate := db.Create(&row).Error; errCreate != nil {
		return backend.Session{}, internalError("create session", errCreate)
	}

	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        row.ID,
		Subject:   account.ID,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(row.ExpiresAt),
	}}
	secret, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(b.cfg.JWTSecret))
	if errSign != nil {
		return backend.Session{}, internalError("sign session", errSign)
	}
	return backend.Session{ID: row.ID, UserID: account.ID, Secret: secret, Expire: row.ExpiresAt}, nil
}

// GetAccount returns the account owning session.
func (b *Backend) GetAccount(ctx context.Context, session string) (backend.Account, error) {
	if errThrottle := b.throttle("account.get"); errThrottle != nil {
		return backend.Account{}, errThrottle
	}
	row, errAuth := b.authenticate(ctx, session)
	if errAuth != nil {
		return backend.Account{}, errAuth
	}
	var account models.Account
	if errFind := b.db.WithContext(ctx).Where("id = ?", row.AccountID).First(&account).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return backend.Account{}, errGuest()
		}
		return backend.Account{}, internalError("load account", errFind)
	}
	return accountView(account), nil
}

// DeleteSession revokes session.
func (b *Backend) DeleteSession(ctx context.Context, session string) error {
	if errThrottle := b.throttle("account.sessions.delete"); errThrottle != nil {
		return errThrottle
	}
	row, errAuth := b.authenticate(ctx, session)
	if errAuth != nil {
		return errAuth
	}
	now := b.now().UTC()
	if errUpdate := b.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", row.ID).
		Update("revoked_at", &now).Error; errUpdate != nil {
		return internalError("revoke session", errUpdate)
	}
	return nil
}

// CreateRecovery issues a recovery secret and hands the link to the notifier.
func (b *Backend) CreateRecovery(ctx context.Context, email, redirectURL string) error {
	if errThrottle := b.throttle("account.recovery.create"); errThrottle != nil {
		return errThrottle
	}
	target, errURL := url.Parse(strings.TrimSpace(redirectURL))
	if errURL != nil || redirectURL == "" {
		return newError(http.StatusBadRequest, backend.TypeGeneralArgumentInvalid, "Invalid `url` param: URL must be a valid URL")
	}

	db := b.db.WithContext(ctx)
	var account models.Account
	if errFind := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&account).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return newError(http.StatusNotFound, backend.TypeUserNotFound, "User with the requested ID could not be found.")
		}
		return internalError("load account", errFind)
	}

	secret, errSecret := security.GenerateRandomString(32)
	if errSecret != nil {
		return internalError("generate recovery secret", errSecret)
	}
	hashed, errHash := security.HashPassword(secret)
	if errHash != nil {
		return internalError("hash recovery secret", errHash)
	}
	expires := b.now().UTC().Add(b.cfg.RecoveryTTL)
	token := models.RecoveryToken{AccountID: account.ID, SecretHash: hashed, ExpiresAt: expires}
	if errCreate := db.Create(&token).Error; errCreate != nil {
		return internalError("create recovery token", errCreate)
	}

	query := target.Query()
	query.Set("userId", account.ID)
	query.Set("secret", secret)
	query.Set("expire", expires.Format(time.RFC3339))
	target.RawQuery = query.Encode()
	b.notify(ctx, account.Email, target.String())
	return nil
}

// UpdateRecovery redeems a recovery secret and sets a new password. Every
// session of the account is revoked.
func (b *Backend) UpdateRecovery(ctx context.Context, userID, secret, password string) error {
	if errThrottle := b.throttle("account.recovery.update"); errThrottle != nil {
		return errThrottle
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return newError(http.StatusBadRequest, backend.TypeGeneralArgumentInvalid,
			fmt.Sprintf("Invalid `password` param: Password must be between %d and %d characters long.", minPasswordLength, maxPasswordLength))
	}
	now := b.now().UTC()
	invalid := newError(http.StatusUnauthorized, backend.TypeUserInvalidToken, "Invalid token passed in the request.")

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tokens []models.RecoveryToken
		if errFind := tx.Where("account_id = ? AND used_at IS NULL AND expires_at > ?", userID, now).
			Find(&tokens).Error; errFind != nil {
			return internalError("load recovery tokens", errFind)
		}
		var matched *models.RecoveryToken
		for i := range tokens {
			if security.CheckPassword(tokens[i].SecretHash, secret) {
				matched = &tokens[i]
				break
			}
		}
		if matched == nil {
			return invalid
		}

		hashed, errHash := security.HashPassword(password)
		if errHash != nil {
			return internalError("hash password", errHash)
		}
		if errUpdate := tx.Model(&models.Account{}).Where("id = ?", userID).
			Update("password", hashed).Error; errUpdate != nil {
			return internalError("update password", errUpdate)
		}
		if errUpdate := tx.Model(&models.RecoveryToken{}).Where("id = ?", matched.ID).
			Update("used_at", &now).Error; errUpdate != nil {
			return internalError("redeem recovery token", errUpdate)
		}
		if errUpdate := tx.Model(&models.Session{}).Where("account_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", &now).Error; errUpdate != nil {
			return internalError("revoke sessions", errUpdate)
		}
		return nil
	})
}

// authenticate resolves a session secret to its live session row.
func (b *Backend) authenticate(ctx context.Context, secret string) (models.Session, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return models.Session{}, errGuest()
	}
	claims := &sessionClaims{}
	token, errParse := jwt.ParseWithClaims(secret, claims, func(_ *jwt.Token) (any, error) {
		return []byte(b.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(b.now),
	)
	if errParse != nil || !token.Valid || claims.ID == "" {
		return models.Session{}, errGuest()
	}

	var row models.Session
	errFind := b.db.WithContext(ctx).
		Where("id = ? AND account_id = ? AND revoked_at IS NULL AND expires_at > ?", claims.ID, claims.Subject, b.now().UTC()).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Session{}, errGuest()
		}
		return models.Session{}, internalError("load session", errFind)
	}
	return row, nil
}

func errGuest() error {
	return newError(http.StatusUnauthorized, backend.TypeUserUnauthorized, invalidSessionMessage)
}

func errAccountExists() error {
	return newError(http.StatusConflict, backend.TypeUserAlreadyExists,
		"A user with the same id, email, or phone already exists in this project.")
}

func accountView(row models.Account) backend.Account {
	return backend.Account{ID: row.ID, Name: row.Name, Email: row.Email, CreatedAt: row.CreatedAt}
}
