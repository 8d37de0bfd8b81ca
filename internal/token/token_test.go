package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer(now *time.Time) *Issuer {
	return NewIssuer("access-secret", "refresh-secret", WithClock(func() time.Time { return *now }))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	for _, userID := range []string{"u1", "3f8e9a30-1111-4222-8333-abcdefabcdef", "user-with-dashes"} {
		tok, exp, err := iss.AccessToken(userID)
		require.NoError(t, err)
		assert.WithinDuration(t, now.Add(15*time.Minute), exp, time.Second)

		got, err := iss.ParseAccess(tok)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	tok, _, err := iss.AccessToken("u1")
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = iss.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshTokenUsesDistinctSecret(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	refresh, exp, err := iss.RefreshToken("u1")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), exp, time.Second)

	got, err := iss.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	// A refresh token must not verify as an access token and vice versa.
	_, err = iss.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, _, err := iss.AccessToken("u1")
	require.NoError(t, err)
	_, err = iss.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPurposeMarkersAreEnforced(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	verification, err := iss.VerificationToken()
	require.NoError(t, err)
	reset, _, err := iss.ResetToken("u1")
	require.NoError(t, err)

	require.NoError(t, iss.ParseVerification(verification))
	got, err := iss.ParseReset(reset)
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	// Wrong purpose is a distinct failure even though the signature holds.
	_, err = iss.ParseReset(verification)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	assert.ErrorIs(t, iss.ParseVerification(reset), ErrWrongTokenType)
	_, err = iss.ParseAccess(verification)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = iss.ParseAccess(reset)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	// Even at the exact same instant two refresh tokens must differ, or
	// session rotation could replace a hash with itself.
	a, _, err := iss.RefreshToken("u1")
	require.NoError(t, err)
	b, _, err := iss.RefreshToken("u1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerificationTokensDiffer(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	a, err := iss.VerificationToken()
	require.NoError(t, err)
	now = now.Add(time.Nanosecond)
	b, err := iss.VerificationToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "issuance timestamp should make tokens unique")
}

func TestResetTokenExpires(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	reset, _, err := iss.ResetToken("u1")
	require.NoError(t, err)

	now = now.Add(61 * time.Minute)
	_, err = iss.ParseReset(reset)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestMalformedTokensRejected(t *testing.T) {
	now := time.Now()
	iss := testIssuer(&now)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := iss.ParseAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "raw=%q", raw)
	}

	// Valid structure, wrong signing key.
	other := NewIssuer("other-secret", "refresh-secret", WithClock(func() time.Time { return now }))
	tok, _, err := other.AccessToken("u1")
	require.NoError(t, err)
	_, err = iss.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
