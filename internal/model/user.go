package model

import (
	"database/sql"
	"time"
)

// Role values stored in users.role. PREMIUM is granted after a successful
// checkout; ADMIN is assigned through the admin API or manually.
const (
	RoleUser    = "USER"
	RolePremium = "PREMIUM"
	RoleAdmin   = "ADMIN"
)

// ValidRole reports whether s is one of the known role names.
func ValidRole(s string) bool {
	return s == RoleUser || s == RolePremium || s == RoleAdmin
}

// User mirrors the `users` table. Email is stored lowercased so uniqueness
// is case-insensitive. EmailVerificationToken holds the pending verification
// token and is cleared once the email is confirmed. PasswordResetToken and
// PasswordResetExpires are always set and cleared together.
type User struct {
	ID                     string         // users.id (uuid)
	Email                  string         // users.email
	PasswordHash           string         // users.password_hash (bcrypt, or oauth sentinel)
	FirstName              string         // users.first_name
	LastName               string         // users.last_name
	Role                   string         // users.role
	IsEmailVerified        bool           // users.is_email_verified
	EmailVerificationToken sql.NullString // users.email_verification_token
	PasswordResetToken     sql.NullString // users.password_reset_token
	PasswordResetExpires   sql.NullTime   // users.password_reset_expires
	CreatedAt              time.Time      // users.created_at
	UpdatedAt              time.Time      // users.updated_at
}
