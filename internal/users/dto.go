package users

type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Password  string  `json:"password" validate:"required,min=8"`
	Role      string  `json:"role" validate:"required"`
	TeamID    *string `json:"team_id,omitempty"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Role      *string `json:"role,omitempty"`
}

type ListUsersRequest struct {
	Role     *string `json:"role,omitempty"`
	TeamID   *string `json:"team_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Search   *string `json:"search,omitempty"`
	Limit    int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int     `json:"offset" validate:"gte=0"`
}

type AssignTeamRequest struct {
	TeamID *string `json:"team_id"`
}

type UpdatePermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}
