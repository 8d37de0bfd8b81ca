package handler

import (
	"context"
	"time"

	"github.com/iliyamo/saas-auth-api/internal/model"
)

// UserStore is the credential-store contract the handlers depend on. It
// is satisfied by repository.UserRepo; tests substitute in-memory fakes.
// All hashing and token generation happens in the handler layer; the
// store only owns uniqueness and lookup.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, firstName, lastName, verificationToken string, verified bool) (string, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByVerificationToken(ctx context.Context, token string) (model.User, error)
	ConsumeVerificationToken(ctx context.Context, userID, token string) error
	SetResetToken(ctx context.Context, userID, token string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, userID, token, newHash string) error
	UpdatePassword(ctx context.Context, userID, newHash string) error
	UpdateProfile(ctx context.Context, userID, firstName, lastName, email string) (model.User, error)
	UpdateRole(ctx context.Context, userID, role string) (model.User, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]model.User, error)
}

// SessionStore is the session-registry contract, satisfied by
// repository.SessionRepo.
type SessionStore interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (model.Session, error)
	GetValidByToken(ctx context.Context, tokenHash string) (model.Session, error)
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) error
	DeleteByToken(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}
