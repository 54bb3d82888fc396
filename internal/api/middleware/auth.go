package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/orrn/labelrelay/internal/db"
)

const (
	cookieName        = "labelrelay_auth"
	sessionTTL        = 24 * time.Hour
	tokenIssuer       = "labelrelay"
	operatorSubject   = "operator"
	keyPasswordHash   = "admin_password"
	keySigningSecret  = "jwt_secret"
	secretSize        = 32
	minPasswordLength = 6
)

var (
	errSetupRequired = errors.New("no operator password set")
	errSetupDone     = errors.New("operator password already set")
	errWrongPassword = errors.New("wrong password")
	errNoSession     = errors.New("no session token")
)

// SettingsStore is the subset of the settings table the middleware needs.
type SettingsStore interface {
	Get(ctx context.Context, key string) (*db.Setting, error)
	Set(ctx context.Context, key, value string) error
}

// AuthMiddleware guards the operator UI with a single shared password. A
// successful login yields a signed session token, carried in a cookie or a
// bearer header.
type AuthMiddleware struct {
	settings SettingsStore
	secret   []byte
	secure   bool
}

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

type SetupRequest struct {
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type StatusResponse struct {
	Authenticated bool `json:"authenticated"`
	SetupRequired bool `json:"setup_required"`
}

// NewAuthMiddleware loads the signing secret, creating it on first start.
// secureCookies should be true when the UI is served over TLS.
func NewAuthMiddleware(ctx context.Context, settings SettingsStore, secureCookies bool) (*AuthMiddleware, error) {
	secret, err := loadSecret(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("signing secret: %w", err)
	}
	return &AuthMiddleware{settings: settings, secret: secret, secure: secureCookies}, nil
}

func loadSecret(ctx context.Context, settings SettingsStore) ([]byte, error) {
	stored, err := settings.Get(ctx, keySigningSecret)
	switch {
	case err == nil:
		return hex.DecodeString(stored.Value)
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, settings.Set(ctx, keySigningSecret, hex.EncodeToString(secret))
}

// checkPassword compares against the stored hash. It returns
// errSetupRequired before the first password is set.
func (a *AuthMiddleware) checkPassword(ctx context.Context, password string) error {
	stored, err := a.settings.Get(ctx, keyPasswordHash)
	if errors.Is(err, db.ErrNotFound) {
		return errSetupRequired
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Value), []byte(password)) != nil {
		return errWrongPassword
	}
	return nil
}

func (a *AuthMiddleware) setPassword(ctx context.Context, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return a.settings.Set(ctx, keyPasswordHash, string(hash))
}

func (a *AuthMiddleware) passwordSet(ctx context.Context) bool {
	_, err := a.settings.Get(ctx, keyPasswordHash)
	return !errors.Is(err, db.ErrNotFound)
}

func (a *AuthMiddleware) newToken() (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   operatorSubject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}).SignedString(a.secret)
}

// verify checks the session token on the request, from the cookie first and
// then the Authorization header.
func (a *AuthMiddleware) verify(c *gin.Context) error {
	raw, err := c.Cookie(cookieName)
	if err != nil || raw == "" {
		raw = ""
		if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
			raw = bearer
		}
	}
	if raw == "" {
		return errNoSession
	}
	_, err = jwt.Parse(raw, func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(operatorSubject),
	)
	return err
}

// startSession sets a fresh session cookie and answers with message.
func (a *AuthMiddleware) startSession(c *gin.Context, message string) {
	token, err := a.newToken()
	if err != nil {
		AbortError(c, http.StatusInternalServerError, "token_error", err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, token, int(sessionTTL.Seconds()), "/", "", a.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func passwordStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errSetupRequired):
		return http.StatusForbidden, "setup_required"
	case errors.Is(err, errWrongPassword):
		return http.StatusUnauthorized, "wrong_password"
	default:
		return http.StatusInternalServerError, "settings_error"
	}
}

func (a *AuthMiddleware) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if err := a.checkPassword(c.Request.Context(), req.Password); err != nil {
		status, code := passwordStatus(err)
		AbortError(c, status, code, err)
		return
	}
	a.startSession(c, "Logged in")
}

func (a *AuthMiddleware) Logout(c *gin.Context) {
	c.SetCookie(cookieName, "", -1, "/", "", a.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (a *AuthMiddleware) Status(c *gin.Context) {
	if a.verify(c) == nil {
		c.JSON(http.StatusOK, StatusResponse{Authenticated: true})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{SetupRequired: !a.passwordSet(c.Request.Context())})
}

// Setup sets the first operator password. Later changes go through
// ChangePassword.
func (a *AuthMiddleware) Setup(c *gin.Context) {
	ctx := c.Request.Context()
	if a.passwordSet(ctx) {
		AbortError(c, http.StatusConflict, "setup_done", errSetupDone)
		return
	}
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if err := a.setPassword(ctx, req.Password); err != nil {
		AbortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	a.startSession(c, "Setup completed")
}

func (a *AuthMiddleware) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	ctx := c.Request.Context()
	if err := a.checkPassword(ctx, req.CurrentPassword); err != nil {
		status, code := passwordStatus(err)
		AbortError(c, status, code, err)
		return
	}
	if err := a.setPassword(ctx, req.NewPassword); err != nil {
		AbortError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	a.startSession(c, "Password changed")
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.verify(c); err != nil {
			AbortError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		c.Next()
	}
}

func (a *AuthMiddleware) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	auth.GET("/status", a.Status)
	auth.POST("/setup", a.Setup)
	auth.POST("/login", a.Login)
	auth.POST("/logout", a.Logout)
	auth.POST("/password", a.RequireAuth(), a.ChangePassword)
}
