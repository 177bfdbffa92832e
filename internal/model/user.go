package model

import "time"

// User is identified by an opaque id; the core only consumes it as an
// ownership key on Feed and FeedEntry rows.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is a server-side session row backing the cookie-based login
// the HTTP service issues after password verification.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
