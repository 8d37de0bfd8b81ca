package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-auth-api/internal/model"
	"github.com/iliyamo/saas-auth-api/internal/token"
)

// identityKey is the context key the guard stores the resolved identity
// under. The plain user_id key is also set for the rate limiter.
const identityKey = "identity"

// Identity is the authenticated user attached to the request context for
// downstream handlers. It never carries the password hash.
type Identity struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UserLoader hydrates the identity after the access token checks out.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Authenticate gates standard protected routes: it resolves the bearer
// access token (the `token` cookie takes precedence over the
// Authorization header), loads the user and rejects accounts whose email
// is not verified yet.
func Authenticate(issuer *token.Issuer, users UserLoader) echo.MiddlewareFunc {
	return authenticate(issuer, users, true)
}

// AuthenticateForPayment is the same gate minus the email-verification
// requirement. Checkout must work for accounts that registered moments
// ago and have not clicked the verification link yet.
func AuthenticateForPayment(issuer *token.Issuer, users UserLoader) echo.MiddlewareFunc {
	return authenticate(issuer, users, false)
}

func authenticate(issuer *token.Issuer, users UserLoader, requireVerified bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token required"})
			}

			userID, err := issuer.ParseAccess(raw)
			if err != nil {
				c.Logger().Warnf("auth: reject %s %s: %v", c.Request().Method, c.Path(), err)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			u, err := users.GetByID(c.Request().Context(), userID)
			if err != nil {
				c.Logger().Warnf("auth: user %s not found: %v", userID, err)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
			}
			if requireVerified && !u.IsEmailVerified {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "email not verified"})
			}

			c.Set(identityKey, Identity{
				ID:              u.ID,
				Email:           u.Email,
				FirstName:       u.FirstName,
				LastName:        u.LastName,
				Role:            u.Role,
				IsEmailVerified: u.IsEmailVerified,
				CreatedAt:       u.CreatedAt,
				UpdatedAt:       u.UpdatedAt,
			})
			c.Set("user_id", u.ID)
			return next(c)
		}
	}
}

// RequireRole enforces that the identity attached by Authenticate holds
// one of the allowed roles. It must run after the guard; a missing
// identity is treated as forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := CurrentIdentity(c)
			if !ok || !allowed[ident.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// CurrentIdentity returns the identity attached by the guard, if any.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	ident, ok := c.Get(identityKey).(Identity)
	return ident, ok
}

// bearerToken extracts the access token from the `token` cookie first,
// falling back to a Bearer Authorization header.
func bearerToken(c echo.Context) string {
	if cookie, err := c.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
