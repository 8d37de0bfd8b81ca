package model

import "time"

// Session mirrors the `sessions` table. One row per live refresh token;
// TokenHash is the SHA-256 of the raw refresh JWT, the raw value is never
// stored. A session is valid only while the row exists and ExpiresAt is in
// the future. A user may hold several sessions at once (multi-device).
type Session struct {
	ID        string    // sessions.id (uuid)
	UserID    string    // sessions.user_id
	TokenHash string    // sessions.token_hash
	ExpiresAt time.Time // sessions.expires_at
	CreatedAt time.Time // sessions.created_at
}
