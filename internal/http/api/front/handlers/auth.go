package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/storefront"
	log "github.com/sirupsen/logrus"
)

// AuthHandler serves account endpoints and keeps the gate cookies in sync.
type AuthHandler struct {
	svc       *storefront.Service
	cookies   CookieConfig
	publicURL string
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *storefront.Service, cookies CookieConfig, publicURL string) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, publicURL: strings.TrimRight(publicURL, "/")}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	email := strings.TrimSpace(body.Email)
	if name == "" || email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password are required"})
		return
	}

	user, session, errSignUp := h.svc.SignUp(c.Request.Context(), storefront.SignUpInput{
		Name:     name,
		Email:    email,
		Password: body.Password,
	})
	if errSignUp != nil {
		if session.Secret != "" {
			// The session exists even when the profile write failed.
			h.cookies.remember(c, session, nil)
		}
		WriteError(c, errSignUp)
		return
	}
	h.cookies.remember(c, session, &user)
	log.WithField("user", user.ID).Info("account registered")
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login opens a session and confirms the username.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	session, errSignIn := h.svc.SignIn(ctx, email, body.Password)
	if errSignIn != nil {
		WriteError(c, errSignIn)
		return
	}
	user, errUser := h.svc.CurrentUser(ctx, session.Secret)
	if errUser != nil {
		h.cookies.remember(c, session, nil)
		WriteError(c, errUser)
		return
	}
	h.cookies.remember(c, session, user)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout deletes the session and clears the gate cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := h.cookies.ReadSession(c.Request)
	if session != "" {
		if errSignOut := h.svc.SignOut(c.Request.Context(), session); errSignOut != nil && !backend.IsUnauthorized(errSignOut) {
			WriteError(c, errSignOut)
			return
		}
	}
	h.cookies.forget(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the signed-in user and refreshes the username cookie.
func (h *AuthHandler) Me(c *gin.Context) {
	user, errUser := h.svc.CurrentUser(c.Request.Context(), h.cookies.ReadSession(c.Request))
	if errUser != nil {
		WriteError(c, errUser)
		return
	}
	h.cookies.syncUsername(c, user)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword sends a recovery link pointing at the reset page.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var body forgotPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	if errRecovery := h.svc.ForgotPassword(c.Request.Context(), email, h.resetURL(c)); errRecovery != nil {
		WriteError(c, errRecovery)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

type resetPasswordRequest struct {
	UserID          string `json:"userId"`
	Secret          string `json:"secret"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

var errPasswordMismatch = errors.New("passwords do not match")

// ResetPassword completes a recovery.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body resetPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.UserID == "" || body.Secret == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId, secret and password are required"})
		return
	}
	if body.ConfirmPassword != "" && body.ConfirmPassword != body.Password {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPasswordMismatch.Error()})
		return
	}
	if errReset := h.svc.ResetPassword(c.Request.Context(), body.UserID, body.Secret, body.Password); errReset != nil {
		WriteError(c, errReset)
		return
	}
	h.cookies.forget(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RateLimit reports the cooldown for an operation so forms can show a countdown.
func (h *AuthHandler) RateLimit(c *gin.Context) {
	operation := strings.TrimSpace(c.Query("operation"))
	governor := h.svc.Governor()
	wait := governor.WaitTimeSeconds(c.Request.Context(), operation)
	c.JSON(http.StatusOK, gin.H{
		"operation":    operation,
		"rate_limited": wait > 0,
		"wait_seconds": wait,
	})
}

func (h *AuthHandler) resetURL(c *gin.Context) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/reset-password"
}
