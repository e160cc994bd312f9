package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerTeamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createTeam",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams",
		Summary:     "Create team",
		Description: "Creates a team with its first admin user and returns the admin's API key",
		Tags:        []string{"Teams"},
	}, s.handleCreateTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user",
		Tags:        []string{"Teams"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)
}

// === DTOs ===

// CreateTeamRequest is the request body for creating a team.
type CreateTeamRequest struct {
	Name       string `json:"name" validate:"required,max=200" doc:"Team name"`
	AdminEmail string `json:"admin_email" validate:"required,email" doc:"First admin's email"`
	AdminName  string `json:"admin_name,omitempty" validate:"max=200" doc:"First admin's display name"`
}

// CreateTeamInput wraps the create team request for Huma.
type CreateTeamInput struct {
	Body CreateTeamRequest
}

// CreateTeamResponse contains the new team and its admin credentials.
type CreateTeamResponse struct {
	TeamID    string `json:"team_id" doc:"New team ID"`
	Name      string `json:"name" doc:"Team name"`
	AdminID   string `json:"admin_id" doc:"Admin user ID"`
	APIKey    string `json:"api_key" doc:"Admin API key, shown only once"`
	CreatedAt string `json:"created_at" doc:"Creation time"`
}

// CreateTeamOutput wraps the create team response for Huma.
type CreateTeamOutput struct {
	Body CreateTeamResponse
}

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID     string `json:"id" doc:"User ID"`
	TeamID string `json:"team_id" doc:"Owning team ID"`
	Email  string `json:"email" doc:"Email address"`
	Name   string `json:"name,omitempty" doc:"Display name"`
	Role   string `json:"role" doc:"Role: admin or member"`
}

// UserOutput wraps the user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// GetCurrentUserInput contains parameters for the current-user endpoint.
type GetCurrentUserInput struct {
	Authorization string `header:"Authorization"`
}

// === Handlers ===

func (s *Server) handleCreateTeam(ctx context.Context, input *CreateTeamInput) (*CreateTeamOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	team, admin, err := s.services.Team.CreateTeam(ctx, input.Body.Name, input.Body.AdminEmail, input.Body.AdminName)
	if err != nil {
		return nil, err
	}

	return &CreateTeamOutput{
		Body: CreateTeamResponse{
			TeamID:    team.ID,
			Name:      team.Name,
			AdminID:   admin.ID,
			APIKey:    admin.APIKey,
			CreatedAt: team.CreatedAt.Format(time.RFC3339),
		},
	}, nil
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *GetCurrentUserInput) (*UserOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	return &UserOutput{
		Body: UserResponse{
			ID:     user.ID,
			TeamID: user.TeamID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   string(user.Role),
		},
	}, nil
}
