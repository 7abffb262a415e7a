// Package teams manages sales team records and their membership.
package teams

import "time"

// Team groups agents under a manager. Lead visibility never derives
// from team membership; teams exist for reporting and user listing.
type Team struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	ManagerID   *string   `json:"manager_id,omitempty" db:"manager_id"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Stats summarizes team size for the reporting dashboard.
type Stats struct {
	TeamID      string `json:"team_id"`
	MemberCount int    `json:"member_count"`
	ActiveCount int    `json:"active_count"`
}
