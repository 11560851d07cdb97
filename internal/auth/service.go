package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service authenticates users and manages accounts.
type Service struct {
	users  UserRepository
	secret string
	ttl    time.Duration
}

// NewService creates an auth service signing tokens with secret.
func NewService(users UserRepository, secret string, ttl time.Duration) *Service {
	return &Service{users: users, secret: secret, ttl: ttl}
}

// Login verifies the credentials and returns a signed access token.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verifying password for %s: %w", username, err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	return GenerateAccessToken(user, s.secret, s.ttl)
}

// Authenticate parses an access token issued by Login.
func (s *Service) Authenticate(token string) (*CustomClaims, error) {
	return ParseToken(token, s.secret)
}

// CreateUser validates and stores a new account.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, minPasswordLength)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{Username: username, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns the account named username.
func (s *Service) GetUser(ctx context.Context, username string) (*User, error) {
	return s.users.GetByUsername(ctx, username)
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// DeleteUser removes the account named username.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	return s.users.Delete(ctx, username)
}
