package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"formlink/internal/auth"
	"formlink/internal/domain"
	"formlink/internal/service"
)

// memUsersStore is an in-memory service.UsersStore for handler tests.
type memUsersStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*memUser
}

type memUser struct {
	domain.UserWithPassword
	resetHash    string
	resetExpires time.Time
}

func newMemUsersStore() *memUsersStore {
	return &memUsersStore{users: make(map[string]*memUser)}
}

func (s *memUsersStore) CreateUser(_ context.Context, name, email, passwordHash string, role domain.Role) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	s.seq++
	id := fmt.Sprintf("user-%d", s.seq)
	u := &memUser{UserWithPassword: domain.UserWithPassword{
		User: domain.User{
			ID:        id,
			Name:      name,
			Email:     email,
			Role:      role,
			Status:    domain.AccountActive,
			CreatedAt: time.Now(),
		},
		PasswordHash: passwordHash,
	}}
	s.users[id] = u
	return u.User, nil
}

func (s *memUsersStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *memUsersStore) GetUserByIDWithPassword(_ context.Context, id string) (domain.UserWithPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	return u.UserWithPassword, nil
}

func (s *memUsersStore) GetUserByEmail(_ context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u.UserWithPassword, nil
		}
	}
	return domain.UserWithPassword{}, domain.ErrNotFound
}

func (s *memUsersStore) GetUserByResetToken(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.resetHash != "" && u.resetHash == tokenHash && now.Before(u.resetExpires) {
			return u.User, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *memUsersStore) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.User)
	}
	return out, nil
}

func (s *memUsersStore) UpdateProfile(_ context.Context, userID string, upd domain.ProfileUpdate) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	return u.User, nil
}

func (s *memUsersStore) SetPassword(_ context.Context, userID, passwordHash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	at := changedAt
	u.PasswordChangedAt = &at
	u.resetHash = ""
	u.resetExpires = time.Time{}
	return nil
}

func (s *memUsersStore) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.resetHash = tokenHash
	u.resetExpires = expiresAt
	return nil
}

func (s *memUsersStore) ClearResetToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.resetHash = ""
	u.resetExpires = time.Time{}
	return nil
}

func (s *memUsersStore) SetStatus(_ context.Context, userID string, status domain.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *memUsersStore) DeleteUser(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	delete(s.users, id)
	return u.User, nil
}

// memLinksStore is an in-memory service.LinksStore.
type memLinksStore struct {
	mu    sync.Mutex
	links map[string]*domain.Link
}

func newMemLinksStore() *memLinksStore {
	return &memLinksStore{links: make(map[string]*domain.Link)}
}

func (s *memLinksStore) CreateLink(_ context.Context, id, ownerID string, createdAt time.Time) (domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &domain.Link{ID: id, OwnerID: ownerID, CreatedAt: createdAt}
	s.links[id] = l
	return *l, nil
}

func (s *memLinksStore) AddResponse(_ context.Context, linkID, text string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkID]
	if !ok {
		return domain.ErrNotFound
	}
	l.Responses = append(l.Responses, domain.LinkResponse{
		ID:        int64(len(l.Responses) + 1),
		Text:      text,
		CreatedAt: createdAt,
	})
	return nil
}

func (s *memLinksStore) ListLinksByOwner(_ context.Context, ownerID string) ([]domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Link
	for _, l := range s.links {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// captureMailer records the reset URLs the account service sends.
type captureMailer struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.urls = append(m.urls, resetURL)
	return nil
}

func (m *captureMailer) last(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.urls) == 0 {
		t.Fatalf("no reset email was sent")
	}
	return m.urls[len(m.urls)-1]
}

type testEnv struct {
	handler  http.Handler
	users    *memUsersStore
	accounts *service.AccountService
	mailer   *captureMailer
}

const testTokenSecret = "test-secret-test-secret-test-secret"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUsersStore()
	mailer := &captureMailer{}
	accounts := &service.AccountService{
		Users:  users,
		Tokens: auth.NewTokenService([]byte(testTokenSecret), time.Hour),
		Mailer: mailer,
	}
	links := &service.LinkService{Links: newMemLinksStore()}

	handler := NewRouter(RouterOpts{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Accounts: accounts,
		Links:    links,
	})

	return &testEnv{handler: handler, users: users, accounts: accounts, mailer: mailer}
}

var testPasswordHash = sync.OnceValue(func() string {
	h, err := auth.HashPassword("password123")
	if err != nil {
		panic(err)
	}
	return h
})

// seedUser inserts a user directly, sharing one precomputed bcrypt hash so
// tests do not pay the hashing cost per seed. The password is "password123".
func (e *testEnv) seedUser(t *testing.T, name, email string, role domain.Role) domain.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), name, email, testPasswordHash(), role)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func (e *testEnv) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.accounts.Tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// backdatedTokenFor issues a token whose issued-at lies in the past, for
// exercising the password-change epoch check without sleeping.
func (e *testEnv) backdatedTokenFor(t *testing.T, userID string, age time.Duration) string {
	t.Helper()
	issuer := auth.NewTokenService([]byte(testTokenSecret), time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-age) })
	token, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("issue backdated token: %v", err)
	}
	return token
}
