package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"indi-radio-go/pkg/token"
)

type mockTokenRepo struct {
	blacklisted map[string]time.Duration
}

func (m *mockTokenRepo) Blacklist(_ context.Context, tok string, ttl time.Duration) error {
	m.blacklisted[tok] = ttl
	return nil
}

func (m *mockTokenRepo) IsBlacklisted(_ context.Context, tok string) (bool, error) {
	_, ok := m.blacklisted[tok]
	return ok, nil
}

func newUserFixture() (UserService, *mockUserRepo, *mockTokenRepo) {
	users := newMockUserRepo()
	tokens := &mockTokenRepo{blacklisted: map[string]time.Duration{}}
	return NewUserService(users, tokens, token.NewJWTManager("test-secret", 1, "indi-radio")), users, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, users, _ := newUserFixture()

	user, err := svc.Register(context.Background(), " alice ", "secret1", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" || user.Password == "secret1" {
		t.Errorf("user = %+v", user)
	}
	if len(users.users) != 1 {
		t.Fatalf("users = %d", len(users.users))
	}

	tok, err := svc.Login(context.Background(), "alice", "secret1")
	if err != nil || tok == "" {
		t.Fatalf("Login: %q, %v", tok, err)
	}
	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newUserFixture()
	var ve *ValidationError

	if _, err := svc.Register(context.Background(), "", "secret1", ""); !errors.As(err, &ve) {
		t.Errorf("empty username: %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "123", ""); !errors.As(err, &ve) || ve.Message != "Password must be at least 6 characters" {
		t.Errorf("short password: %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "secret1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(context.Background(), "bob", "secret2", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate: %v", err)
	}
}

func TestLogoutBlacklistsToken(t *testing.T) {
	svc, _, tokens := newUserFixture()
	if _, err := svc.Register(context.Background(), "alice", "secret1", ""); err != nil {
		t.Fatal(err)
	}
	tok, err := svc.Login(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(context.Background(), tok); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	ttl, ok := tokens.blacklisted[tok]
	if !ok || ttl <= 0 || ttl > time.Hour {
		t.Errorf("blacklist ttl = %v, ok = %v", ttl, ok)
	}
	if err := svc.Logout(context.Background(), "garbage"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestGetProfile(t *testing.T) {
	svc, _, _ := newUserFixture()
	if _, err := svc.GetProfile(context.Background(), 42); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v", err)
	}
}
