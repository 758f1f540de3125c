package models

import "time"

// Session represents an authenticated user session. The token is an opaque
// 256-bit value; everything the server knows about the session lives in this
// row, so deleting the row revokes the session immediately.
type Session struct {
	ID        string
	UserID    string
	Token     string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
