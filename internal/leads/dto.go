package leads

import "time"

type CreateLeadRequest struct {
	Name         string     `json:"name" validate:"required,max=100"`
	Phone        string     `json:"phone" validate:"required,max=50"`
	Email        *string    `json:"email,omitempty" validate:"omitempty,email"`
	Company      *string    `json:"company,omitempty" validate:"omitempty,max=100"`
	State        *string    `json:"state,omitempty" validate:"omitempty,max=100"`
	Status       *Status    `json:"status,omitempty"`
	Source       *string    `json:"source,omitempty" validate:"omitempty,max=50"`
	Value        *float64   `json:"value,omitempty" validate:"omitempty,gte=0"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Consent      bool       `json:"consent"`
	NextFollowUp *time.Time `json:"next_follow_up,omitempty"`
	// AssignedTo is honored only when set; it defaults to the creator.
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// UpdateLeadRequest is a partial patch. It deliberately carries no
// assigned-to field: ownership changes go through Assign and nowhere else,
// so a patch payload cannot move a lead between agents as a side channel.
type UpdateLeadRequest struct {
	Name         *string    `json:"name,omitempty" validate:"omitempty,max=100"`
	Phone        *string    `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email        *string    `json:"email,omitempty" validate:"omitempty,email"`
	Company      *string    `json:"company,omitempty" validate:"omitempty,max=100"`
	State        *string    `json:"state,omitempty" validate:"omitempty,max=100"`
	Status       *Status    `json:"status,omitempty"`
	Source       *string    `json:"source,omitempty" validate:"omitempty,max=50"`
	Value        *float64   `json:"value,omitempty" validate:"omitempty,gte=0"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Consent      *bool      `json:"consent,omitempty"`
	NextFollowUp *time.Time `json:"next_follow_up,omitempty"`
}

type ListLeadsRequest struct {
	Status     *Status `json:"status,omitempty"`
	Search     *string `json:"search,omitempty"`
	Company    *string `json:"company,omitempty"`
	State      *string `json:"state,omitempty"`
	Consent    *bool   `json:"consent,omitempty"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	Limit      int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int     `json:"offset" validate:"gte=0"`
}

type AssignLeadRequest struct {
	AssignedTo string `json:"assigned_to" validate:"required"`
}
