package model

import (
	"errors"
	"time"
)

// User represents an account that can post and claim items.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	return levels[role] >= levels[minimum] && levels[minimum] > 0
}

// ValidRole reports whether role is assignable.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
