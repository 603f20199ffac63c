package storefront

import (
	"context"
	"errors"
	"strings"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/ratelimit"
	log "github.com/sirupsen/logrus"
)

// SignUpInput is a registration request.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUp creates the account, signs it in and stores the profile document.
// The username is the local part of the email address.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (User, backend.Session, error) {
	account, err := ratelimit.Call(ctx, s.governor, OpSignUp, func(ctx context.Context) (backend.Account, error) {
		return s.backend.CreateAccount(ctx, backend.NewID(), in.Email, in.Password, in.Name)
	})
	if err != nil {
		return User{}, backend.Session{}, err
	}

	session, err := s.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		return User{}, backend.Session{}, err
	}

	user := User{
		ID:       account.ID,
		Name:     account.Name,
		Email:    account.Email,
		ImageURL: s.backend.AvatarInitialsURL(account.Name),
		Username: UsernameFromEmail(account.Email),
	}
	data := map[string]any{
		"name":     user.Name,
		"email":    user.Email,
		"imageUrl": user.ImageURL,
		"username": user.Username,
	}
	doc, err := ratelimit.Call(ctx, s.governor, OpSignUp, func(ctx context.Context) (backend.Document, error) {
		return s.backend.CreateDocument(ctx, session.Secret, s.cfg.UserCollectionID, account.ID, data)
	})
	if err != nil {
		return User{}, session, err
	}
	return userFromDocument(doc), session, nil
}

// SignIn opens a session with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	return ratelimit.Call(ctx, s.governor, OpSignIn, func(ctx context.Context) (backend.Session, error) {
		return s.backend.CreateEmailSession(ctx, email, password)
	})
}

// CurrentUser resolves session to its profile document. Lookup failures yield
// a nil user; only governor refusals are returned as errors.
func (s *Service) CurrentUser(ctx context.Context, session string) (*User, error) {
	if strings.TrimSpace(session) == "" {
		return nil, nil
	}
	account, err := ratelimit.Call(ctx, s.governor, OpCurrentUser, func(ctx context.Context) (backend.Account, error) {
		return s.backend.GetAccount(ctx, session)
	})
	if err != nil {
		return nil, governorRefusal(err)
	}
	list, err := ratelimit.Call(ctx, s.governor, OpCurrentUser, func(ctx context.Context) (backend.DocumentList, error) {
		return s.backend.ListDocuments(ctx, session, s.cfg.UserCollectionID, backend.Equal("$id", account.ID))
	})
	if err != nil {
		return nil, governorRefusal(err)
	}
	if len(list.Documents) == 0 {
		log.WithField("account", account.ID).Warn("storefront: account has no user document")
		return nil, nil
	}
	user := userFromDocument(list.Documents[0])
	return &user, nil
}

// SignOut deletes the current session.
func (s *Service) SignOut(ctx context.Context, session string) error {
	return s.governor.Do(ctx, OpSignOut, func(ctx context.Context) error {
		return s.backend.DeleteSession(ctx, session)
	})
}

// ForgotPassword starts a password recovery that links back to redirectURL.
func (s *Service) ForgotPassword(ctx context.Context, email, redirectURL string) error {
	return s.governor.Do(ctx, OpForgotPassword, func(ctx context.Context) error {
		return s.backend.CreateRecovery(ctx, email, redirectURL)
	})
}

// ResetPassword completes a password recovery.
func (s *Service) ResetPassword(ctx context.Context, userID, secret, password string) error {
	return s.governor.Do(ctx, OpResetPassword, func(ctx context.Context) error {
		return s.backend.UpdateRecovery(ctx, userID, secret, password)
	})
}

// UserByUsername finds a profile by username.
func (s *Service) UserByUsername(ctx context.Context, session, username string) (User, error) {
	list, err := ratelimit.Call(ctx, s.governor, OpGetUser, func(ctx context.Context) (backend.DocumentList, error) {
		return s.backend.ListDocuments(ctx, session, s.cfg.UserCollectionID, backend.Equal("username", username))
	})
	if err != nil {
		return User{}, err
	}
	if len(list.Documents) == 0 {
		return User{}, ErrUserNotFound
	}
	return userFromDocument(list.Documents[0]), nil
}

// UsernameFromEmail returns the local part of an email address.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return local
}

func governorRefusal(err error) error {
	if errors.Is(err, ratelimit.ErrRateLimited) || errors.Is(err, ratelimit.ErrOperationUnavailable) {
		return err
	}
	log.WithError(err).Debug("storefront: current user lookup failed")
	return nil
}
