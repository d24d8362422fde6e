package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"intercom-platform/internal/auth"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("users: not found")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrInvalidArgument    = errors.New("users: invalid argument")
)

// Repository is the persistence contract for accounts.
type Repository interface {
	ByUsername(ctx context.Context, username string) (User, error)
	ByID(ctx context.Context, id int) (User, error)
}

// Service authenticates users and issues tokens.
// It never stores or logs plaintext passwords.
type Service struct {
	repo   Repository
	tokens *auth.Manager
	clock  func() time.Time
}

func NewService(repo Repository, tokens *auth.Manager) *Service {
	return &Service{repo: repo, tokens: tokens, clock: time.Now}
}

type LoginResult struct {
	User   User
	Tokens auth.TokenPair
}

// Login verifies credentials and issues an access/refresh pair.
// Credential failures are indistinguishable from unknown users on purpose.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidArgument
	}

	u, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(s.clock(), u.ID, u.Username, u.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Tokens: pair}, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int) (User, error) {
	if id <= 0 {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByID(ctx, id)
}

// HashPassword produces a bcrypt hash for account provisioning.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidArgument
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
