// Package leads implements the permission-scoped lead access and
// assignment engine. Every data path through this package derives a
// permission filter from the acting user before touching the store and
// re-checks each row on the way out.
package leads

import (
	"fmt"
	"time"
)

// Status is the lead pipeline stage.
type Status string

const (
	StatusNew       Status = "New"
	StatusContacted Status = "Contacted"
	StatusQualified Status = "Qualified"
	StatusLost      Status = "Lost"
	StatusConverted Status = "Converted"
	StatusFollowup  Status = "Followup"
)

// ParseStatus validates a status token.
func ParseStatus(token string) (Status, error) {
	switch Status(token) {
	case StatusNew, StatusContacted, StatusQualified, StatusLost, StatusConverted, StatusFollowup:
		return Status(token), nil
	default:
		return "", fmt.Errorf("leads: unknown status %q", token)
	}
}

// AllStatuses enumerates the pipeline stages in funnel order.
func AllStatuses() []Status {
	return []Status{StatusNew, StatusContacted, StatusQualified, StatusLost, StatusConverted, StatusFollowup}
}

// Lead is a sales prospect record, the protected resource of this package.
// AssignedTo references a user id; referential integrity is the store's
// concern, this package only propagates the id.
type Lead struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Phone        string     `json:"phone" db:"phone"`
	Email        *string    `json:"email,omitempty" db:"email"`
	Company      *string    `json:"company,omitempty" db:"company"`
	State        *string    `json:"state,omitempty" db:"state"`
	Status       Status     `json:"status" db:"status"`
	Source       *string    `json:"source,omitempty" db:"source"`
	Value        *float64   `json:"value,omitempty" db:"value"`
	Notes        *string    `json:"notes,omitempty" db:"notes"`
	Consent      bool       `json:"consent" db:"consent"`
	ConsentAt    *time.Time `json:"consent_at,omitempty" db:"consent_at"`
	NextFollowUp *time.Time `json:"next_follow_up,omitempty" db:"next_follow_up"`
	AssignedTo   string     `json:"assigned_to" db:"assigned_to"`
	CreatedBy    string     `json:"created_by" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Stats aggregates per-status lead counts, scoped to what the acting user
// may see.
type Stats struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Contacted int `json:"contacted"`
	Qualified int `json:"qualified"`
	Lost      int `json:"lost"`
	Converted int `json:"converted"`
	Followup  int `json:"followup"`
}
