package domain

import (
	"errors"
	"time"
)

// Role classifies a user within a tenant.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an end user registered within a single tenant store.
type User struct {
	ID           int64
	ExternalID   string
	Email        string
	Name         string
	Role         Role
	PasswordSalt string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sentinel errors surfaced by repositories. The unique constraints on
// email and external_id in each tenant store are the authoritative
// duplicate guard; ErrDuplicate wraps their violation.
var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("duplicate user")
)
