// Package users manages CRM user accounts: agents, managers and admins.
// Accounts are never deleted, only deactivated, so lead ownership
// references stay resolvable forever.
package users

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
)

// User is a CRM account. Permissions holds explicit capability overrides
// granted on top of the role set.
type User struct {
	ID           string             `json:"id" db:"id"`
	Email        string             `json:"email" db:"email"`
	FirstName    string             `json:"first_name" db:"first_name"`
	LastName     string             `json:"last_name" db:"last_name"`
	Role         rbac.Role          `json:"role" db:"role"`
	TeamID       *string            `json:"team_id,omitempty" db:"team_id"`
	Permissions  []rbac.Capability  `json:"permissions" db:"permissions"`
	IsActive     bool               `json:"is_active" db:"is_active"`
	PasswordHash string             `json:"-" db:"password_hash"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// Actor converts the account into the snapshot permission evaluation runs
// against.
func (u User) Actor() rbac.Actor {
	return rbac.Actor{
		ID:        u.ID,
		Role:      u.Role,
		TeamID:    u.TeamID,
		Overrides: u.Permissions,
		IsActive:  u.IsActive,
	}
}

// Stats aggregates account counts for the admin dashboard.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Admins   int `json:"admins"`
	Managers int `json:"managers"`
	Agents   int `json:"agents"`
}
