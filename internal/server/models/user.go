// Package models holds the server-side domain types for the token engine:
// platform users and the two token kinds persisted for them.
package models

import "time"

// Role is the platform role carried into access token claims. The role is
// authoritative only at the instant of issuance; the signed token does not
// track later role changes.
type Role string

const (
	RoleVisitor Role = "VISITOR"
	RoleEditor  Role = "EDITOR"
	RoleAdmin   Role = "ADMIN"
)

// Description returns the human-readable role description embedded in the
// access token claims.
func (r Role) Description() string {
	switch r {
	case RoleVisitor:
		return "Read-only access to published content"
	case RoleEditor:
		return "Can create and manage articles"
	case RoleAdmin:
		return "Full administrative access"
	default:
		return "Unknown role"
	}
}

// Valid reports whether r is one of the three platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// User is the platform account consumed read-only by the token engine.
// The only field this package's callers ever write back is LastLoginAt.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	LastLoginAt  *time.Time
}
