package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/saas-auth-api/internal/model"
)

const userColumns = "id,email,password_hash,first_name,last_name,role,is_email_verified,email_verification_token,password_reset_token,password_reset_expires,created_at,updated_at"

// UserRepo persists user records in the `users` table. It owns uniqueness
// and lookup only; hashing and token generation happen above this layer.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its generated ID. The password field
// must already be hashed (or be an oauth sentinel). verificationToken may
// be empty for accounts that are born verified (OAuth).
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, firstName, lastName, verificationToken string, verified bool) (string, error) {
	id := uuid.NewString()
	email = strings.ToLower(strings.TrimSpace(email))
	var vt sql.NullString
	if verificationToken != "" {
		vt = sql.NullString{String: verificationToken, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_email_verified, email_verification_token) VALUES (?,?,?,?,?,?,?,?)",
		id, email, passwordHash, firstName, lastName, model.RoleUser, verified, vt)
	if err != nil {
		// MySQL error 1062 -> duplicate key on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByVerificationToken fetches the user currently holding the exact
// verification token, if any.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email_verification_token=? LIMIT 1", token)
}

// ConsumeVerificationToken marks the user's email verified and clears the
// token in one conditional update. Returns ErrNotFound when the token no
// longer matches, which makes consumption single-use: a second submission
// of the same token matches zero rows.
func (r *UserRepo) ConsumeVerificationToken(ctx context.Context, userID, token string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_email_verified=1, email_verification_token=NULL WHERE id=? AND email_verification_token=?",
		userID, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetResetToken stores the reset token and its independent expiry on the
// user row. Both fields are always written together.
func (r *UserRepo) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=?, password_reset_expires=? WHERE id=?",
		token, expires.UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ConsumeResetToken swaps in the new password hash and clears both reset
// fields in one conditional update. The WHERE clause re-checks the token
// match and the expiry so a spent or expired token matches zero rows and
// a concurrent consumption cannot succeed twice.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, userID, token, newHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_reset_token=NULL, password_reset_expires=NULL WHERE id=? AND password_reset_token=? AND password_reset_expires > UTC_TIMESTAMP()",
		newHash, userID, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID, newHash string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", newHash, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateProfile updates the provided fields, keeping current values for
// empty ones, and returns the fresh row.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID, firstName, lastName, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET first_name=COALESCE(NULLIF(?,''), first_name), last_name=COALESCE(NULLIF(?,''), last_name), email=COALESCE(NULLIF(?,''), email) WHERE id=?",
		firstName, lastName, email, userID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return r.GetByID(ctx, userID)
}

// UpdateRole sets the user's role and returns the fresh row.
func (r *UserRepo) UpdateRole(ctx context.Context, userID, role string) (model.User, error) {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, userID)
	if err != nil {
		return model.User{}, err
	}
	if err := requireRow(res); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, userID)
}

// Delete removes the user. Sessions cascade via the FK on sessions.user_id.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// List returns all users, newest first. Admin use only.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.IsEmailVerified, &u.EmailVerificationToken, &u.PasswordResetToken, &u.PasswordResetExpires,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
