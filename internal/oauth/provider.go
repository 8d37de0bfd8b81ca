// Package oauth resolves external identities for the OAuth login flow.
// Each supported provider implements the same small interface so the
// handler layer carries no provider-specific branching.
package oauth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidCode means the authorization code exchange was rejected.
	ErrInvalidCode = errors.New("oauth: invalid authorization code")
	// ErrNoEmail means the provider returned no usable email address.
	ErrNoEmail = errors.New("oauth: no email available from provider")
)

// Profile is the minimal identity a provider resolves: a verified email
// plus whatever name parts it exposes.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
}

// Provider turns an authorization code into a Profile. AuthURL builds the
// redirect target for the given anti-CSRF state value.
type Provider interface {
	Name() string
	AuthURL(state string) string
	ResolveProfile(ctx context.Context, code string) (Profile, error)
}

// splitName divides a display name into first/last parts the way the
// user table stores them.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
