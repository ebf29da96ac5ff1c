package model

// Input schemas for the module API. The validate tags are enforced by the service
// layer before anything reaches the repository.

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CreateModuleInput is the create payload.
type CreateModuleInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Code        string  `json:"code" validate:"required,max=32"`
	Icon        *string `json:"icon,omitempty" validate:"omitempty,max=64"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=64"`
	Credits     *int    `json:"credits,omitempty" validate:"omitempty,min=0,max=1000"`
}

// UpdateModuleInput is the update payload. A non-nil Description pointing at ""
// clears the description.
type UpdateModuleInput struct {
	ID          string  `json:"id" validate:"required,uuid"`
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Code        *string `json:"code,omitempty" validate:"omitempty,min=1,max=32"`
	Icon        *string `json:"icon,omitempty" validate:"omitempty,max=64"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=64"`
	Credits     *int    `json:"credits,omitempty" validate:"omitempty,min=0,max=1000"`
}

// ModuleIDInput addresses a single module.
type ModuleIDInput struct {
	ID string `json:"id" validate:"required,uuid"`
}

// ListModulesInput is the listing payload. Limit 0 means DefaultPageSize.
type ListModulesInput struct {
	Limit    int     `json:"limit,omitempty" validate:"min=0,max=100"`
	Cursor   *string `json:"cursor,omitempty" validate:"omitempty,uuid"`
	Archived *bool   `json:"archived,omitempty"`
}
