package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-auth-api/internal/config"
	"github.com/iliyamo/saas-auth-api/internal/token"
)

// setAuthCookies attaches the token pair as httpOnly cookies. Max-age
// mirrors each token's TTL. Secure is off only in dev so local plain-http
// frontends keep working.
func setAuthCookies(c echo.Context, cfg config.Config, iss *token.Issuer, access, refresh string) {
	c.SetCookie(authCookie(cfg, "token", access, iss.AccessTTL()))
	c.SetCookie(authCookie(cfg, "refreshToken", refresh, iss.RefreshTTL()))
}

// clearAuthCookies expires both auth cookies.
func clearAuthCookies(c echo.Context, cfg config.Config) {
	c.SetCookie(authCookie(cfg, "token", "", -time.Hour))
	c.SetCookie(authCookie(cfg, "refreshToken", "", -time.Hour))
}

func authCookie(cfg config.Config, name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   cfg.Env != "dev",
		SameSite: http.SameSiteStrictMode,
	}
}
