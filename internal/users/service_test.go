package users

import (
	"context"
	"testing"
	"time"

	"intercom-platform/internal/auth"
	"intercom-platform/internal/config"
)

func testService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()

	tokens, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := NewMemoryRepo(User{ID: 1, Username: "alice", Email: "alice@example.com", Role: "operator", PasswordHash: hash})
	return NewService(repo, tokens), repo
}

func TestLogin_OK(t *testing.T) {
	s, _ := testService(t)

	res, err := s.Login(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.User.ID != 1 {
		t.Fatalf("unexpected user: %+v", res.User)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s, _ := testService(t)
	if _, err := s.Login(context.Background(), "alice", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownUserIndistinguishable(t *testing.T) {
	s, _ := testService(t)
	if _, err := s.Login(context.Background(), "mallory", "hunter2"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_EmptyArguments(t *testing.T) {
	s, _ := testService(t)
	if _, err := s.Login(context.Background(), "", ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
