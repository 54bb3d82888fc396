package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/labelrelay/internal/db"
)

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memSettings) Get(ctx context.Context, key string) (*db.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, key)
	}
	return &db.Setting{Key: key, Value: v}, nil
}

func (m *memSettings) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memSettings) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := &memSettings{values: map[string]string{}}
	auth, err := NewAuthMiddleware(context.Background(), settings, false)
	require.NoError(t, err)

	r := gin.New()
	auth.RegisterRoutes(r.Group("/api"))
	r.GET("/protected", auth.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r, settings
}

func do(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestAuth_SecretIsCreatedOnce(t *testing.T) {
	settings := &memSettings{values: map[string]string{}}

	a1, err := NewAuthMiddleware(context.Background(), settings, false)
	require.NoError(t, err)
	a2, err := NewAuthMiddleware(context.Background(), settings, false)
	require.NoError(t, err)

	assert.Len(t, a1.secret, secretSize)
	assert.Equal(t, a1.secret, a2.secret)
}

func TestAuth_SetupLoginFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/auth/status", nil)
	assert.JSONEq(t, `{"authenticated": false, "setup_required": true}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/auth/login", LoginRequest{Password: "secret1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, authCookie(w))

	w = do(r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "another"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", LoginRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "wrong_password", resp.Error)

	w = do(r, http.MethodPost, "/api/auth/login", LoginRequest{Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	cookie := authCookie(w)
	require.NotNil(t, cookie)

	w = do(r, http.MethodGet, "/api/auth/status", nil, cookie)
	assert.JSONEq(t, `{"authenticated": true, "setup_required": false}`, w.Body.String())

	w = do(r, http.MethodGet, "/protected", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RequireAuthRejects(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/protected", nil, &http.Cookie{Name: cookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_BearerHeader(t *testing.T) {
	settings := &memSettings{values: map[string]string{}}
	a, err := NewAuthMiddleware(context.Background(), settings, false)
	require.NoError(t, err)
	token, err := a.newToken()
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", a.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuth_RejectsForeignTokens(t *testing.T) {
	settings := &memSettings{values: map[string]string{}}
	a, err := NewAuthMiddleware(context.Background(), settings, false)
	require.NoError(t, err)

	other, err := NewAuthMiddleware(context.Background(), &memSettings{values: map[string]string{}}, false)
	require.NoError(t, err)
	foreign, err := other.newToken()
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", a.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for name, header := range map[string]string{
		"other secret": "Bearer " + foreign,
		"wrong scheme": "Basic " + foreign,
	} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestAuth_ChangePassword(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/auth/setup", SetupRequest{Password: "secret1"})
	cookie := authCookie(w)
	require.NotNil(t, cookie)

	w = do(r, http.MethodPost, "/api/auth/password",
		ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "secret2"}, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/auth/password",
		ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "abc"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/auth/password",
		ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", LoginRequest{Password: "secret2"})
	assert.Equal(t, http.StatusOK, w.Code)
}
