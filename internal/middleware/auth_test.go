package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/saas-auth-api/internal/model"
	"github.com/iliyamo/saas-auth-api/internal/repository"
	"github.com/iliyamo/saas-auth-api/internal/token"
)

type mockLoader struct {
	users map[string]model.User
}

func (m *mockLoader) GetByID(ctx context.Context, id string) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func guardFixture(t *testing.T) (*token.Issuer, *mockLoader, *time.Time) {
	t.Helper()
	now := time.Now()
	iss := token.NewIssuer("access-secret", "refresh-secret",
		token.WithClock(func() time.Time { return now }))
	loader := &mockLoader{users: map[string]model.User{
		"u1": {ID: "u1", Email: "ann@example.com", FirstName: "Ann", LastName: "Lee", Role: model.RoleUser, IsEmailVerified: true},
		"u2": {ID: "u2", Email: "bob@example.com", Role: model.RoleUser, IsEmailVerified: false},
	}}
	return iss, loader, &now
}

func runGuard(mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "next")
	})
	_ = handler(c)
	return rec, c
}

func TestAuthenticateWithHeader(t *testing.T) {
	iss, loader, _ := guardFixture(t)
	access, _, err := iss.AccessToken("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec, c := runGuard(Authenticate(iss, loader), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	ident, ok := CurrentIdentity(c)
	require.True(t, ok)
	assert.Equal(t, "u1", ident.ID)
	assert.Equal(t, "ann@example.com", ident.Email)
	assert.Equal(t, model.RoleUser, ident.Role)
	assert.Equal(t, "u1", c.Get("user_id"))
}

func TestAuthenticateCookieTakesPrecedence(t *testing.T) {
	iss, loader, _ := guardFixture(t)
	access, _, err := iss.AccessToken("u1")
	require.NoError(t, err)

	// Valid header but garbage cookie: the cookie wins and the request
	// is rejected.
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
	rec, _ := runGuard(Authenticate(iss, loader), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid cookie alone is enough.
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: access})
	rec, _ = runGuard(Authenticate(iss, loader), req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejections(t *testing.T) {
	iss, loader, now := guardFixture(t)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec, _ := runGuard(Authenticate(iss, loader), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		access, _, err := iss.AccessToken("u1")
		require.NoError(t, err)
		*now = now.Add(16 * time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		rec, _ := runGuard(Authenticate(iss, loader), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		refresh, _, err := iss.RefreshToken("u1")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+refresh)
		rec, _ := runGuard(Authenticate(iss, loader), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		access, _, err := iss.AccessToken("missing")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		rec, _ := runGuard(Authenticate(iss, loader), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticateVerificationGate(t *testing.T) {
	iss, loader, _ := guardFixture(t)
	access, _, err := iss.AccessToken("u2") // unverified user
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec, _ := runGuard(Authenticate(iss, loader), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The payment variant lets the same user through.
	req = httptest.NewRequest(http.MethodPost, "/v1/payments/create-checkout-session", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec, c := runGuard(AuthenticateForPayment(iss, loader), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	ident, ok := CurrentIdentity(c)
	require.True(t, ok)
	assert.False(t, ident.IsEmailVerified)
}

func TestRequireRole(t *testing.T) {
	run := func(ident *Identity, roles ...string) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if ident != nil {
			c.Set(identityKey, *ident)
		}
		_ = RequireRole(roles...)(func(c echo.Context) error {
			return c.String(http.StatusOK, "next")
		})(c)
		return rec
	}

	assert.Equal(t, http.StatusOK, run(&Identity{Role: model.RoleAdmin}, model.RoleAdmin).Code)
	assert.Equal(t, http.StatusForbidden, run(&Identity{Role: model.RoleUser}, model.RoleAdmin).Code)
	assert.Equal(t, http.StatusOK, run(&Identity{Role: model.RolePremium}, model.RoleUser, model.RolePremium).Code)
	assert.Equal(t, http.StatusForbidden, run(nil, model.RoleAdmin).Code)
}
