// Package token issues and verifies the signed tokens used across the
// auth flows: short-lived access tokens, long-lived refresh tokens, and
// single-purpose email-verification and password-reset tokens. All tokens
// are HS256 JWTs. Refresh tokens are signed with a secret distinct from
// the one shared by the access/verification/reset class, so a token of
// one class can never verify under the other.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose markers carried in the "typ" claim. Access and refresh tokens
// carry no "typ"; their purpose is implied by the signing secret.
const (
	TypeVerification  = "verification"
	TypePasswordReset = "password-reset"
)

var (
	// ErrInvalidToken means the token is malformed or its signature does
	// not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the signature is fine but the exp claim has
	// passed.
	ErrExpiredToken = errors.New("expired token")
	// ErrWrongTokenType means a valid token was presented for a purpose it
	// was not issued for, e.g. a verification token on the reset endpoint.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Issuer signs and parses tokens. The clock is injectable so expiry
// behavior can be tested without sleeping.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	verifyTTL     time.Duration
	resetTTL      time.Duration
	now           func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithTTLs overrides the default token lifetimes.
func WithTTLs(access, refresh, verify, reset time.Duration) Option {
	return func(i *Issuer) {
		i.accessTTL, i.refreshTTL, i.verifyTTL, i.resetTTL = access, refresh, verify, reset
	}
}

// NewIssuer builds an Issuer with the default lifetimes: access 15m,
// refresh 7d, verification 24h, reset 1h.
func NewIssuer(accessSecret, refreshSecret string, opts ...Option) *Issuer {
	i := &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     15 * time.Minute,
		refreshTTL:    7 * 24 * time.Hour,
		verifyTTL:     24 * time.Hour,
		resetTTL:      time.Hour,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AccessTTL returns the access token lifetime (used for cookie max-age).
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// ResetTTL returns the password-reset token lifetime.
func (i *Issuer) ResetTTL() time.Duration { return i.resetTTL }

// AccessToken signs a short-lived access token for the user.
func (i *Issuer) AccessToken(userID string) (string, time.Time, error) {
	return i.sign(i.accessSecret, i.accessTTL, jwt.MapClaims{"sub": userID})
}

// RefreshToken signs a long-lived refresh token for the user. The jti
// claim makes every issued token unique, so rotating a session always
// changes the stored hash even within the same second. The caller is
// responsible for mirroring the token with a session row.
func (i *Issuer) RefreshToken(userID string) (string, time.Time, error) {
	return i.sign(i.refreshSecret, i.refreshTTL, jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
	})
}

// VerificationToken signs an email-verification token. It is not bound to
// a user; consumption matches the exact string against the user row. The
// issuance timestamp claim only adds entropy so two tokens minted in the
// same second still differ per user row.
func (i *Issuer) VerificationToken() (string, error) {
	tok, _, err := i.sign(i.accessSecret, i.verifyTTL, jwt.MapClaims{
		"typ": TypeVerification,
		"ts":  i.now().UnixNano(),
	})
	return tok, err
}

// ResetToken signs a password-reset token bound to the user.
func (i *Issuer) ResetToken(userID string) (string, time.Time, error) {
	return i.sign(i.accessSecret, i.resetTTL, jwt.MapClaims{
		"sub": userID,
		"typ": TypePasswordReset,
	})
}

// ParseAccess verifies an access token and returns the user ID. Tokens
// carrying a purpose marker (verification/reset) are rejected with
// ErrWrongTokenType even though they verify under the same secret.
func (i *Issuer) ParseAccess(raw string) (string, error) {
	claims, err := i.parse(raw, i.accessSecret)
	if err != nil {
		return "", err
	}
	if typ, _ := claims["typ"].(string); typ != "" {
		return "", ErrWrongTokenType
	}
	return subject(claims)
}

// ParseRefresh verifies a refresh token and returns the user ID.
func (i *Issuer) ParseRefresh(raw string) (string, error) {
	claims, err := i.parse(raw, i.refreshSecret)
	if err != nil {
		return "", err
	}
	return subject(claims)
}

// ParseVerification verifies an email-verification token.
func (i *Issuer) ParseVerification(raw string) error {
	claims, err := i.parse(raw, i.accessSecret)
	if err != nil {
		return err
	}
	if typ, _ := claims["typ"].(string); typ != TypeVerification {
		return ErrWrongTokenType
	}
	return nil
}

// ParseReset verifies a password-reset token and returns the user ID.
func (i *Issuer) ParseReset(raw string) (string, error) {
	claims, err := i.parse(raw, i.accessSecret)
	if err != nil {
		return "", err
	}
	if typ, _ := claims["typ"].(string); typ != TypePasswordReset {
		return "", ErrWrongTokenType
	}
	return subject(claims)
}

func (i *Issuer) sign(secret []byte, ttl time.Duration, claims jwt.MapClaims) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	claims["iat"] = now.Unix()
	claims["exp"] = exp.Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) parse(raw string, secret []byte) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func subject(claims jwt.MapClaims) (string, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
