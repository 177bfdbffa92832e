package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vrischmann/servare/internal/model"
)

// ErrNotFound is returned when a user or session lookup finds no row.
var ErrNotFound = errors.New("auth: not found")

// Store is the Postgres-backed persistence for users and sessions.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle as a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new user row with the given email and
// already-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindUserByEmail looks up a user by email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

// CreateSession inserts a new session row for userID, expiring after
// maxAge.
func (s *Store) CreateSession(ctx context.Context, userID string, maxAge time.Duration) (*model.Session, error) {
	sess := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(maxAge),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING created_at`,
		sess.ID, sess.UserID, sess.ExpiresAt,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// FindByID looks up a non-expired session, satisfying
// middleware.SessionFinder.
func (s *Store) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session row, ending the session it backs.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
