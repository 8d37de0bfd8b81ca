package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-auth-api/internal/config"
	"github.com/iliyamo/saas-auth-api/internal/model"
	"github.com/iliyamo/saas-auth-api/internal/oauth"
	"github.com/iliyamo/saas-auth-api/internal/repository"
	"github.com/iliyamo/saas-auth-api/internal/token"
	"github.com/iliyamo/saas-auth-api/internal/utils"
)

const oauthStateCookie = "oauth_state"

// OAuthHandler runs the provider handoff. Providers are keyed by name so
// the handler carries no provider-specific branching; adding a provider
// means adding a map entry in main.
type OAuthHandler struct {
	Cfg       config.Config
	Users     UserStore
	Sessions  SessionStore
	Issuer    *token.Issuer
	Providers map[string]oauth.Provider
}

func NewOAuthHandler(cfg config.Config, u UserStore, s SessionStore, iss *token.Issuer, providers map[string]oauth.Provider) *OAuthHandler {
	return &OAuthHandler{Cfg: cfg, Users: u, Sessions: s, Issuer: iss, Providers: providers}
}

// Start sets the anti-CSRF state cookie and redirects to the provider.
func (h *OAuthHandler) Start(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := h.Providers[name]
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
		}
		state, err := utils.RandomHex(16)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "state generation failed"})
		}
		c.SetCookie(&http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int((10 * time.Minute) / time.Second),
			HttpOnly: true,
			Secure:   h.Cfg.Env != "dev",
			SameSite: http.SameSiteLaxMode, // strict would drop the cookie on the provider redirect
		})
		return c.Redirect(http.StatusFound, p.AuthURL(state))
	}
}

// Callback validates the state, resolves the external identity and then
// runs the same session-opening path as password login. New accounts are
// created verified — the provider vouched for the email — with a sentinel
// password that can never pass a bcrypt check.
func (h *OAuthHandler) Callback(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := h.Providers[name]
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
		}

		state := c.QueryParam("state")
		cookie, err := c.Cookie(oauthStateCookie)
		if err != nil || state == "" || cookie.Value != state {
			log.Printf("oauth: %s callback rejected, state mismatch", name)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid oauth state"})
		}
		// State is single-use.
		c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

		code := c.QueryParam("code")
		if code == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authorization code missing"})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
		defer cancel()

		profile, err := p.ResolveProfile(ctx, code)
		if err != nil {
			log.Printf("oauth: %s profile resolution failed: %v", name, err)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "oauth login failed"})
		}

		u, err := h.findOrCreate(ctx, name, profile)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "oauth login failed"})
		}

		if _, err := openSession(ctx, c, h.Cfg, h.Issuer, h.Sessions, u.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "open session failed"})
		}

		log.Printf("oauth: %s login: %s", name, u.Email)
		return c.Redirect(http.StatusFound, h.Cfg.FrontendURL)
	}
}

func (h *OAuthHandler) findOrCreate(ctx context.Context, provider string, profile oauth.Profile) (model.User, error) {
	u, err := h.Users.GetByEmail(ctx, profile.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}

	// Sentinel password: not a bcrypt hash, so password login always fails.
	id, err := h.Users.Create(ctx, profile.Email, "oauth-"+provider, profile.FirstName, profile.LastName, "", true)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// Raced another callback for the same new account.
			return h.Users.GetByEmail(ctx, profile.Email)
		}
		return model.User{}, err
	}
	log.Printf("oauth: new user created via %s: %s", provider, profile.Email)
	return h.Users.GetByID(ctx, id)
}
