package models

import "time"

// LoginAttempt records a single authentication attempt. The email is stored
// as presented, whether or not it belongs to a real account; the lockout
// policy is keyed on the presented email, not the source address.
type LoginAttempt struct {
	ID          string
	Email       string
	IPAddress   string
	UserAgent   string
	Success     bool
	AttemptedAt time.Time
}
