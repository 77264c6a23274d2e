package domain

import (
	"strings"
	"time"
)

// UserRole tags an account with its platform role.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleLandlord UserRole = "landlord"
	RoleTenant   UserRole = "tenant"
)

// Roles lists the accepted role values in a stable order.
var Roles = []UserRole{RoleAdmin, RoleLandlord, RoleTenant}

// RolesList renders the accepted role values for error messages.
func RolesList() string {
	parts := make([]string, len(Roles))
	for i, role := range Roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, ", ")
}

// ValidRole reports whether role is a known value.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleLandlord, RoleTenant:
		return true
	}
	return false
}

// Documented status values. Status is stored as a free-form string; the
// status endpoint names these but nothing enforces the set.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusInactive  = "inactive"
)

// User is the domain model for platform accounts.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
