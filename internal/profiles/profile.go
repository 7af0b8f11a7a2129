package profiles

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrNotFound    = errors.New("profile not found")
	ErrInvalidRole = errors.New(`invalid role. Must be "user" or "admin"`)
)

// Profile carries the role of an account.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the profile has the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ValidRole reports whether role is assignable.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
