package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-auth-api/internal/config"
	"github.com/iliyamo/saas-auth-api/internal/email"
	"github.com/iliyamo/saas-auth-api/internal/model"
	"github.com/iliyamo/saas-auth-api/internal/repository"
	"github.com/iliyamo/saas-auth-api/internal/token"
	"github.com/iliyamo/saas-auth-api/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Issuer   *token.Issuer
	Email    email.Sender
}

func NewAuthHandler(cfg config.Config, u UserStore, s SessionStore, iss *token.Issuer, mail email.Sender) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Issuer: iss, Email: mail}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Password string `json:"password"`
}

type userPart struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// Register: create an unverified user and trigger the verification email.
// No session is created; the account cannot use verification-gated routes
// until the emailed token is submitted.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	verificationToken, err := h.Issuer.VerificationToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, hash, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), verificationToken, false)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	// Fire-and-forget: a failed send is logged, the account stays created.
	h.sendAsync(func() error { return h.Email.SendVerification(req.Email, verificationToken) })

	log.Printf("auth: user registered: %s", req.Email)
	return c.JSON(http.StatusCreated, echo.Map{
		"userId":  uid,
		"message": "account created, check your email to verify it",
	})
}

// Login: verify credentials and open a new session. Unknown email and
// wrong password produce the same response so callers cannot probe for
// registered addresses.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("auth: login rejected, unknown email: %s", req.Email)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		log.Printf("auth: login rejected, bad password: %s", req.Email)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsEmailVerified {
		log.Printf("auth: login rejected, unverified email: %s", req.Email)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "email not verified"})
	}

	pair, err := openSession(ctx, c, h.Cfg, h.Issuer, h.Sessions, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "open session failed"})
	}

	log.Printf("auth: user logged in: %s", u.Email)
	return c.JSON(http.StatusOK, echo.Map{
		"user":   toUserPart(u),
		"tokens": pair,
	})
}

// Logout: drop the session matching the presented refresh token and clear
// cookies. Idempotent; an absent or unknown token is not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := refreshTokenFromRequest(c)
	if raw != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.Sessions.DeleteByToken(ctx, utils.HashToken(raw)); err != nil {
			log.Printf("auth: logout delete session failed: %v", err)
		}
	}
	clearAuthCookies(c, h.Cfg)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// VerifyEmail: consume a verification token. A bad signature, an expired
// token and a token no user holds all produce the same 400 so the
// endpoint leaks nothing about which check failed. Consumption clears the
// token, so a second submission of the same token fails.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	tok := c.Param("token")
	if tok == "" {
		var body struct {
			Token string `json:"token"`
		}
		_ = c.Bind(&body)
		tok = body.Token
	}
	if tok == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification token required"})
	}

	invalid := func(reason string, err error) error {
		log.Printf("auth: email verification rejected (%s): %v", reason, err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired verification token"})
	}

	if err := h.Issuer.ParseVerification(tok); err != nil {
		return invalid("token check", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByVerificationToken(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("no matching user", err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Users.ConsumeVerificationToken(ctx, u.ID, tok); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost a race with a concurrent submission of the same token.
			return invalid("already consumed", err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.sendAsync(func() error { return h.Email.SendWelcome(u.Email, u.FirstName) })

	log.Printf("auth: email verified: %s", u.Email)
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// ForgotPassword: always answers with the same generic message so the
// endpoint cannot be used to enumerate accounts. When the email is known
// a reset token is stored with an independent server-side expiry.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	generic := echo.Map{"message": "if an account with that email exists, a reset link has been sent"}

	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("auth: password reset requested for unknown email: %s", req.Email)
			return c.JSON(http.StatusOK, generic)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	resetToken, expires, err := h.Issuer.ResetToken(u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	if err := h.Users.SetResetToken(ctx, u.ID, resetToken, expires); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.sendAsync(func() error { return h.Email.SendPasswordReset(u.Email, resetToken) })

	log.Printf("auth: password reset requested: %s", u.Email)
	return c.JSON(http.StatusOK, generic)
}

// ResetPassword: both checks must pass — a valid signature of the right
// purpose AND a user row still holding this exact token with a live
// expiry. The row update is conditional, so the token is single-use and
// concurrent submissions cannot both win. All sessions are revoked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	tok := c.Param("token")
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if tok == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reset token required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	invalid := func(reason string, err error) error {
		log.Printf("auth: password reset rejected (%s): %v", reason, err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
	}

	userID, err := h.Issuer.ParseReset(tok)
	if err != nil {
		return invalid("token check", err)
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.ConsumeResetToken(ctx, userID, tok, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("no matching user", err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := h.Sessions.DeleteAllForUser(ctx, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke sessions failed"})
	}

	log.Printf("auth: password reset completed for user %s", userID)
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset, please log in again"})
}

// Refresh: exchange a valid refresh token for a new pair. The session row
// is rotated with a conditional update, so the old token dies the moment
// the rotation lands and a concurrent refresh with the same token fails.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshTokenFromRequest(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token required"})
	}

	reject := func(reason string, err error) error {
		log.Printf("auth: refresh rejected (%s): %v", reason, err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	userID, err := h.Issuer.ParseRefresh(raw)
	if err != nil {
		return reject("token check", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	oldHash := utils.HashToken(raw)
	sess, err := h.Sessions.GetValidByToken(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return reject("no session", err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if sess.UserID != userID {
		return reject("session owner mismatch", nil)
	}

	access, _, err := h.Issuer.AccessToken(userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, refreshExp, err := h.Issuer.RefreshToken(userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Sessions.Rotate(ctx, sess.ID, oldHash, utils.HashToken(refresh), refreshExp); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return reject("rotation lost", err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate session failed"})
	}

	setAuthCookies(c, h.Cfg, h.Issuer, access, refresh)
	return c.JSON(http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refresh})
}

// sendAsync runs an email send detached from the request. Failures are
// logged only; the triggering write stands regardless.
func (h *AuthHandler) sendAsync(send func() error) {
	go func() {
		if err := send(); err != nil {
			log.Printf("auth: email send failed: %v", err)
		}
	}()
}

// openSession issues an access+refresh pair, persists the session and
// sets the auth cookies. Shared by password login and OAuth login.
func openSession(ctx context.Context, c echo.Context, cfg config.Config, iss *token.Issuer, sessions SessionStore, userID string) (tokenPair, error) {
	access, _, err := iss.AccessToken(userID)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, refreshExp, err := iss.RefreshToken(userID)
	if err != nil {
		return tokenPair{}, err
	}
	if _, err := sessions.Create(ctx, userID, utils.HashToken(refresh), refreshExp); err != nil {
		return tokenPair{}, err
	}
	setAuthCookies(c, cfg, iss, access, refresh)
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// refreshTokenFromRequest reads the refresh token from the JSON body
// first, falling back to the refreshToken cookie.
func refreshTokenFromRequest(c echo.Context) string {
	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		return raw
	}
	if cookie, err := c.Cookie("refreshToken"); err == nil {
		return cookie.Value
	}
	return ""
}
