package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/saas-auth-api/internal/config"
	"github.com/iliyamo/saas-auth-api/internal/model"
	"github.com/iliyamo/saas-auth-api/internal/repository"
	"github.com/iliyamo/saas-auth-api/internal/token"
)

// memUserStore is an in-memory UserStore with the same semantics as
// repository.UserRepo, including conditional single-use token
// consumption. The clock is shared with the test's token issuer so
// expiry behavior can be driven without sleeping.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
	now   func() time.Time
}

func newMemUserStore(now func() time.Time) *memUserStore {
	return &memUserStore{users: map[string]model.User{}, now: now}
}

func (m *memUserStore) Create(ctx context.Context, email, passwordHash, firstName, lastName, verificationToken string, verified bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return "", repository.ErrEmailExists
		}
	}
	u := model.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    passwordHash,
		FirstName:       firstName,
		LastName:        lastName,
		Role:            model.RoleUser,
		IsEmailVerified: verified,
		CreatedAt:       m.now(),
		UpdatedAt:       m.now(),
	}
	if verificationToken != "" {
		u.EmailVerificationToken.String = verificationToken
		u.EmailVerificationToken.Valid = true
	}
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *memUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUserStore) GetByID(ctx context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUserStore) GetByVerificationToken(ctx context.Context, tok string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.EmailVerificationToken.Valid && u.EmailVerificationToken.String == tok {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUserStore) ConsumeVerificationToken(ctx context.Context, userID, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !u.EmailVerificationToken.Valid || u.EmailVerificationToken.String != tok {
		return repository.ErrNotFound
	}
	u.IsEmailVerified = true
	u.EmailVerificationToken.Valid = false
	u.EmailVerificationToken.String = ""
	m.users[userID] = u
	return nil
}

func (m *memUserStore) SetResetToken(ctx context.Context, userID, tok string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordResetToken.String = tok
	u.PasswordResetToken.Valid = true
	u.PasswordResetExpires.Time = expires
	u.PasswordResetExpires.Valid = true
	m.users[userID] = u
	return nil
}

func (m *memUserStore) ConsumeResetToken(ctx context.Context, userID, tok, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !u.PasswordResetToken.Valid || u.PasswordResetToken.String != tok ||
		!u.PasswordResetExpires.Valid || !u.PasswordResetExpires.Time.After(m.now()) {
		return repository.ErrNotFound
	}
	u.PasswordHash = newHash
	u.PasswordResetToken = sql.NullString{}
	u.PasswordResetExpires = sql.NullTime{}
	m.users[userID] = u
	return nil
}

func (m *memUserStore) UpdatePassword(ctx context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = newHash
	m.users[userID] = u
	return nil
}

func (m *memUserStore) UpdateProfile(ctx context.Context, userID, firstName, lastName, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if email != "" {
		for id, other := range m.users {
			if id != userID && other.Email == email {
				return model.User{}, repository.ErrEmailExists
			}
		}
		u.Email = email
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	u.UpdatedAt = m.now()
	m.users[userID] = u
	return u, nil
}

func (m *memUserStore) UpdateRole(ctx context.Context, userID, role string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	u.Role = role
	m.users[userID] = u
	return u, nil
}

func (m *memUserStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, userID)
	return nil
}

func (m *memUserStore) List(ctx context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// memSessionStore mirrors repository.SessionRepo, including the
// conditional rotation that makes refresh tokens single-use.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	now      func() time.Time
}

func newMemSessionStore(now func() time.Time) *memSessionStore {
	return &memSessionStore{sessions: map[string]model.Session{}, now: now}
}

func (m *memSessionStore) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memSessionStore) GetValidByToken(ctx context.Context, tokenHash string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash && s.ExpiresAt.After(m.now()) {
			return s, nil
		}
	}
	return model.Session{}, repository.ErrSessionNotFound
}

func (m *memSessionStore) Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.TokenHash != oldHash {
		return repository.ErrSessionNotFound
	}
	s.TokenHash = newHash
	s.ExpiresAt = expiresAt
	m.sessions[sessionID] = s
	return nil
}

func (m *memSessionStore) DeleteByToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.TokenHash == tokenHash {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessionStore) countForUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// recordedMail is one captured send.
type recordedMail struct {
	Kind  string
	To    string
	Token string
	Name  string
}

// recorderSender captures sends instead of publishing them. Handlers
// send from goroutines, so readers must use waitFor.
type recorderSender struct {
	mu   sync.Mutex
	sent []recordedMail
}

func (r *recorderSender) SendVerification(to, token string) error {
	return r.record(recordedMail{Kind: "verification", To: to, Token: token})
}
func (r *recorderSender) SendPasswordReset(to, token string) error {
	return r.record(recordedMail{Kind: "password-reset", To: to, Token: token})
}
func (r *recorderSender) SendWelcome(to, name string) error {
	return r.record(recordedMail{Kind: "welcome", To: to, Name: name})
}

func (r *recorderSender) record(m recordedMail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return nil
}

// waitFor blocks until a mail of the given kind for the given address
// has been recorded, failing the test after a second.
func (r *recorderSender) waitFor(t *testing.T, kind, to string) recordedMail {
	t.Helper()
	var found recordedMail
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, m := range r.sent {
			if m.Kind == kind && m.To == to {
				found = m
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "no %s mail for %s", kind, to)
	return found
}

func (r *recorderSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// authFixture bundles everything an auth-flow test needs.
type authFixture struct {
	h        *AuthHandler
	users    *memUserStore
	sessions *memSessionStore
	mail     *recorderSender
	issuer   *token.Issuer
	now      *time.Time
	e        *echo.Echo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	now := time.Now()
	iss := token.NewIssuer("access-secret", "refresh-secret", token.WithClock(func() time.Time { return now }))
	users := newMemUserStore(func() time.Time { return now })
	sessions := newMemSessionStore(func() time.Time { return now })
	mail := &recorderSender{}
	cfg := config.Config{Env: "dev", BcryptCost: 4, FrontendURL: "http://localhost:3000"}
	return &authFixture{
		h:        NewAuthHandler(cfg, users, sessions, iss, mail),
		users:    users,
		sessions: sessions,
		mail:     mail,
		issuer:   iss,
		now:      &now,
		e:        echo.New(),
	}
}

// request builds an Echo context carrying a JSON body.
func (f *authFixture) request(method, target string, body any, cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return f.e.NewContext(req, rec), rec
}

// decode unmarshals a recorded JSON response body.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// cookieByName digs a set cookie out of the response.
func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	res := http.Response{Header: rec.Header()}
	for _, ck := range res.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}
