package models

import "time"

// UserRole represents the role of an operator-console user.
type UserRole string

const (
	// RoleAdmin can manage users, images, machines, and sessions.
	RoleAdmin UserRole = "admin"
	// RoleOperator can manage machines and sessions but not users.
	RoleOperator UserRole = "operator"
	// RoleViewer has read-only access to the control plane.
	RoleViewer UserRole = "viewer"
)

// IsValid checks if the role is a recognized UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleAdmin || r == RoleOperator || r == RoleViewer
}

// User represents an operator-console account.
//
// Users authenticate against the HTTP API only; there is no relationship
// between a User and the machines it manages beyond audit attribution.
// Failed login attempts accumulate until LockedUntil, at which point further
// attempts are rejected regardless of credential correctness.
type User struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	Username            string     `gorm:"uniqueIndex;not null;size:255" json:"username"`
	PasswordHash        string     `gorm:"not null" json:"-"`
	Role                string     `gorm:"not null;size:50" json:"role"` // admin, operator, viewer
	Active              bool       `gorm:"default:true" json:"active"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// IsLocked reports whether the account is currently locked out.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// IsAdmin checks if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// GetRole returns the user's role as a UserRole type.
func (u *User) GetRole() UserRole {
	return UserRole(u.Role)
}

// CanWrite reports whether the role permits mutating operations.
func (r UserRole) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator
}
