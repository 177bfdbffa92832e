package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/vrischmann/servare/internal/model"
)

// Service implements password-based login: verify credentials and
// issue a session, end a session, and create user accounts.
type Service struct {
	Store         *Store
	SessionMaxAge time.Duration
}

// New builds a Service.
func New(store *Store, sessionMaxAge time.Duration) *Service {
	return &Service{Store: store, SessionMaxAge: sessionMaxAge}
}

// Login verifies email/password and issues a new session on success.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, err
	}

	ok, err := VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.Store.CreateSession(ctx, user.ID, s.SessionMaxAge)
}

// Logout ends a session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.Store.DeleteSession(ctx, sessionID)
}

// CreateUser hashes password and creates a new user account, used by
// both self-service signup and the setup-admin CLI command.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.Store.CreateUser(ctx, email, hash)
}
