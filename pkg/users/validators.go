package users

import "github.com/tomebooks/tome/pkg/models"

type ListUsersQuery struct {
	Page   int          `query:"page" json:"page,omitempty" default:"1" validate:"min=1"`
	Limit  int          `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Search *string      `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	Role   *models.Role `query:"role" json:"role,omitempty" validate:"omitempty,oneof=ADMIN USER MEMBER"`
}

type UpdateUserRolePayload struct {
	Role models.Role `json:"role" validate:"required,oneof=ADMIN USER MEMBER"`
}
