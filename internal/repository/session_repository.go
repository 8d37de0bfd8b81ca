package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/saas-auth-api/internal/model"
)

// SessionRepo persists refresh sessions (single 'token_hash' column).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a refresh session row and returns it.
func (r *SessionRepo) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (model.Session, error) {
	s := model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, token_hash, expires_at) VALUES (?,?,?,?)",
		s.ID, s.UserID, s.TokenHash, s.ExpiresAt)
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// GetValidByToken returns the non-expired session holding the token hash.
func (r *SessionRepo) GetValidByToken(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, created_at FROM sessions WHERE token_hash=? AND expires_at > UTC_TIMESTAMP() LIMIT 1",
		tokenHash).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// Rotate replaces the session's token hash and extends its expiry in one
// conditional update. The WHERE clause re-checks the old hash so that of
// two concurrent refresh calls carrying the same token only one can match
// the row; the loser gets ErrSessionNotFound and must reject the refresh.
func (r *SessionRepo) Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET token_hash=?, expires_at=? WHERE id=? AND token_hash=?",
		newHash, expiresAt.UTC(), sessionID, oldHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteByToken removes the session holding the token hash. Deleting an
// absent token is not an error, so logout stays idempotent.
func (r *SessionRepo) DeleteByToken(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash=?", tokenHash)
	return err
}

// DeleteAllForUser removes every session owned by the user, logging them
// out of all devices.
func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE user_id=?", userID)
	return err
}
