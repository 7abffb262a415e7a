package teams

type CreateTeamRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ManagerID   *string `json:"manager_id,omitempty"`
}

type UpdateTeamRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ManagerID   *string `json:"manager_id,omitempty"`
}

type ListTeamsRequest struct {
	IsActive *bool `json:"is_active,omitempty"`
	Limit    int   `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int   `json:"offset" validate:"gte=0"`
}
