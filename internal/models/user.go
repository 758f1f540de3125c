package models

import (
	"time"
)

// Account status values. Only active accounts may authenticate.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

// Role values
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user account
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`      // never serialized; empty means no password set
	Role         string    `json:"role"`   // "user" or "admin"
	Status       string    `json:"status"` // "active", "inactive", "pending"
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
