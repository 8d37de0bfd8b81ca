// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/saas-auth-api/internal/config"
	"github.com/iliyamo/saas-auth-api/internal/handler"
	"github.com/iliyamo/saas-auth-api/internal/middleware"
	"github.com/iliyamo/saas-auth-api/internal/token"
)

// RegisterRoutes registers routes that require no dependencies beyond
// the Echo instance. Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth lifecycle endpoints. The whole group
// sits behind the redis token bucket; verify-email is reachable by GET
// as well as POST because the emailed link is a plain browser click.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o *handler.OAuthHandler, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.GET("/verify-email/:token", a.VerifyEmail)
	g.POST("/verify-email/:token", a.VerifyEmail)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password/:token", a.ResetPassword)
	g.POST("/refresh-token", a.Refresh)

	// Explicit provider routes; the handler resolves the adapter by name.
	g.GET("/google", o.Start("google"))
	g.GET("/google/callback", o.Callback("google"))
	g.GET("/github", o.Start("github"))
	g.GET("/github/callback", o.Callback("github"))
}

// RegisterUsers registers the protected profile, account and admin
// endpoints. Everything runs behind the access guard; the admin subgroup
// additionally requires the ADMIN role.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, iss *token.Issuer, users middleware.UserLoader) {
	// /v1/auth/me belongs to the auth surface but needs the guard, so it
	// is registered here where the guard dependencies are at hand.
	e.GET("/v1/auth/me", u.Me, middleware.Authenticate(iss, users))

	g := e.Group("/v1/users")
	g.Use(middleware.Authenticate(iss, users))
	g.GET("/profile", u.Profile)
	g.PUT("/profile", u.UpdateProfile)
	g.PUT("/password", u.ChangePassword)
	g.GET("/dashboard", u.Dashboard)
	g.DELETE("/account", u.DeleteAccount)

	admin := g.Group("/admin")
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.GET("/all", u.ListUsers)
	admin.PUT("/:userId/role", u.ChangeUserRole)
}

// RegisterPayments registers the checkout handoff. It uses the payment
// variant of the guard: checkout must work before email verification.
func RegisterPayments(e *echo.Echo, b *handler.BillingHandler, iss *token.Issuer, users middleware.UserLoader) {
	g := e.Group("/v1/payments")
	g.Use(middleware.AuthenticateForPayment(iss, users))
	g.POST("/create-checkout-session", b.CreateCheckoutSession)
}
