package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quotelineapp/quoteline-server/internal/domain"
)

func (s *Server) registerComponentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listComponents",
		Method:      http.MethodGet,
		Path:        "/api/v1/components",
		Summary:     "List components",
		Description: "Returns the team's component catalog",
		Tags:        []string{"Components"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListComponents)

	huma.Register(s.api, huma.Operation{
		OperationID: "createComponent",
		Method:      http.MethodPost,
		Path:        "/api/v1/components",
		Summary:     "Create component",
		Description: "Adds a component to the team's catalog",
		Tags:        []string{"Components"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateComponent)

	huma.Register(s.api, huma.Operation{
		OperationID: "getComponent",
		Method:      http.MethodGet,
		Path:        "/api/v1/components/{id}",
		Summary:     "Get component",
		Description: "Returns a component by ID",
		Tags:        []string{"Components"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetComponent)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateComponent",
		Method:      http.MethodPut,
		Path:        "/api/v1/components/{id}",
		Summary:     "Update component",
		Description: "Replaces a component's editable fields",
		Tags:        []string{"Components"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateComponent)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteComponent",
		Method:      http.MethodDelete,
		Path:        "/api/v1/components/{id}",
		Summary:     "Delete component",
		Description: "Removes a component from the catalog",
		Tags:        []string{"Components"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteComponent)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolveCandidate",
		Method:      http.MethodPost,
		Path:        "/api/v1/components/resolve",
		Summary:     "Resolve candidate",
		Description: "Matches an extracted candidate against the team's catalog",
		Tags:        []string{"Components"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleResolveCandidate)
}

// === DTOs ===

// ComponentRequest is the request body for creating or updating a component.
type ComponentRequest struct {
	Name             string  `json:"name" validate:"required,max=200" doc:"Component name"`
	Manufacturer     string  `json:"manufacturer,omitempty" validate:"max=200" doc:"Manufacturer name"`
	PartNumber       string  `json:"part_number,omitempty" validate:"max=200" doc:"Manufacturer part number"`
	Description      string  `json:"description,omitempty" doc:"Free-text description"`
	Category         string  `json:"category,omitempty" validate:"max=100" doc:"Catalog category"`
	Supplier         string  `json:"supplier,omitempty" validate:"max=200" doc:"Preferred supplier"`
	OriginalCurrency string  `json:"original_currency,omitempty" validate:"omitempty,currency_code" doc:"Currency the part was quoted in"`
	OriginalCost     float64 `json:"original_cost,omitempty" validate:"gte=0" doc:"Cost in the original currency"`
}

// ComponentResponse contains component data in API responses.
type ComponentResponse struct {
	ID               string             `json:"id" doc:"Component ID"`
	Name             string             `json:"name" doc:"Component name"`
	Manufacturer     string             `json:"manufacturer,omitempty" doc:"Manufacturer name"`
	PartNumber       string             `json:"part_number,omitempty" doc:"Manufacturer part number"`
	Description      string             `json:"description,omitempty" doc:"Free-text description"`
	Category         string             `json:"category,omitempty" doc:"Catalog category"`
	Supplier         string             `json:"supplier,omitempty" doc:"Preferred supplier"`
	CostByCurrency   map[string]float64 `json:"cost_by_currency,omitempty" doc:"Derived costs per currency"`
	OriginalCurrency string             `json:"original_currency,omitempty" doc:"Currency the part was quoted in"`
	OriginalCost     float64            `json:"original_cost,omitempty" doc:"Cost in the original currency"`
	CreatedAt        time.Time          `json:"created_at" doc:"Creation time"`
	UpdatedAt        time.Time          `json:"updated_at" doc:"Last update time"`
}

// ListComponentsInput contains parameters for listing components.
type ListComponentsInput struct {
	Authorization string `header:"Authorization"`
}

// ListComponentsResponse contains the team's catalog.
type ListComponentsResponse struct {
	Components []ComponentResponse `json:"components" doc:"Component catalog"`
}

// ListComponentsOutput wraps the list response for Huma.
type ListComponentsOutput struct {
	Body ListComponentsResponse
}

// CreateComponentInput wraps the create component request for Huma.
type CreateComponentInput struct {
	Authorization string `header:"Authorization"`
	Body          ComponentRequest
}

// ComponentOutput wraps the component response for Huma.
type ComponentOutput struct {
	Body ComponentResponse
}

// GetComponentInput contains parameters for getting a component.
type GetComponentInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Component ID"`
}

// UpdateComponentInput wraps the update component request for Huma.
type UpdateComponentInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Component ID"`
	Body          ComponentRequest
}

// DeleteComponentInput contains parameters for deleting a component.
type DeleteComponentInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Component ID"`
}

// DeleteComponentOutput wraps the delete confirmation for Huma.
type DeleteComponentOutput struct {
	Body struct {
		Message string `json:"message" doc:"Success message"`
	}
}

// CandidateRequest is an extracted component candidate to resolve.
type CandidateRequest struct {
	Name             string             `json:"name" validate:"required,max=500" doc:"Extracted name"`
	Manufacturer     string             `json:"manufacturer,omitempty" validate:"max=200" doc:"Extracted manufacturer"`
	PartNumber       string             `json:"part_number,omitempty" validate:"max=200" doc:"Extracted part number"`
	Description      string             `json:"description,omitempty" doc:"Extracted description"`
	PriceByCurrency  map[string]float64 `json:"price_by_currency,omitempty" doc:"Extracted prices per currency"`
	SourceConfidence float64            `json:"source_confidence,omitempty" validate:"gte=0,lte=1" doc:"Extraction confidence"`
}

// ResolveCandidateInput wraps the candidate for Huma.
type ResolveCandidateInput struct {
	Authorization string `header:"Authorization"`
	Body          CandidateRequest
}

// MatchResponse is one candidate-to-component match.
type MatchResponse struct {
	Component  ComponentResponse `json:"component" doc:"Matched catalog component"`
	Score      float64           `json:"score" doc:"Match score in [0,1]"`
	Type       string            `json:"type" doc:"Match tier: exact, fuzzy, or ai"`
	Confidence string            `json:"confidence" doc:"Confidence band: high, medium, or low"`
	Reason     string            `json:"reason,omitempty" doc:"Human-readable match explanation"`
}

// ResolveCandidateResponse contains the match result for a candidate.
type ResolveCandidateResponse struct {
	Matches  []MatchResponse `json:"matches" doc:"Matches sorted by score descending"`
	Warnings []string        `json:"warnings,omitempty" doc:"Non-fatal resolution warnings"`
}

// ResolveCandidateOutput wraps the resolution response for Huma.
type ResolveCandidateOutput struct {
	Body ResolveCandidateResponse
}

// === Handlers ===

func componentResponse(c *domain.Component) ComponentResponse {
	return ComponentResponse{
		ID:               c.ID,
		Name:             c.Name,
		Manufacturer:     c.Manufacturer,
		PartNumber:       c.PartNumber,
		Description:      c.Description,
		Category:         c.Category,
		Supplier:         c.Supplier,
		CostByCurrency:   c.CostByCurrency,
		OriginalCurrency: c.OriginalCurrency,
		OriginalCost:     c.OriginalCost,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func componentFromRequest(req ComponentRequest) *domain.Component {
	return &domain.Component{
		Name:             req.Name,
		Manufacturer:     req.Manufacturer,
		PartNumber:       req.PartNumber,
		Description:      req.Description,
		Category:         req.Category,
		Supplier:         req.Supplier,
		OriginalCurrency: req.OriginalCurrency,
		OriginalCost:     req.OriginalCost,
	}
}

func (s *Server) handleListComponents(ctx context.Context, _ *ListComponentsInput) (*ListComponentsOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	components, err := s.services.Catalog.ListComponents(ctx, user.TeamID)
	if err != nil {
		return nil, err
	}

	resp := make([]ComponentResponse, len(components))
	for i, c := range components {
		resp[i] = componentResponse(c)
	}
	return &ListComponentsOutput{Body: ListComponentsResponse{Components: resp}}, nil
}

func (s *Server) handleCreateComponent(ctx context.Context, input *CreateComponentInput) (*ComponentOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	c, err := s.services.Catalog.CreateComponent(ctx, user.TeamID, user.ID, componentFromRequest(input.Body))
	if err != nil {
		return nil, err
	}
	return &ComponentOutput{Body: componentResponse(c)}, nil
}

func (s *Server) handleGetComponent(ctx context.Context, input *GetComponentInput) (*ComponentOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.services.Catalog.GetComponent(ctx, user.TeamID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ComponentOutput{Body: componentResponse(c)}, nil
}

func (s *Server) handleUpdateComponent(ctx context.Context, input *UpdateComponentInput) (*ComponentOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	c, err := s.services.Catalog.UpdateComponent(ctx, user.TeamID, user.ID, input.ID, componentFromRequest(input.Body))
	if err != nil {
		return nil, err
	}
	return &ComponentOutput{Body: componentResponse(c)}, nil
}

func (s *Server) handleDeleteComponent(ctx context.Context, input *DeleteComponentInput) (*DeleteComponentOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteComponent(ctx, user.TeamID, user.ID, input.ID); err != nil {
		return nil, err
	}

	out := &DeleteComponentOutput{}
	out.Body.Message = "Component deleted"
	return out, nil
}

func (s *Server) handleResolveCandidate(ctx context.Context, input *ResolveCandidateInput) (*ResolveCandidateOutput, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Catalog.ResolveCandidate(ctx, user.TeamID, &domain.Candidate{
		Name:             input.Body.Name,
		Manufacturer:     input.Body.Manufacturer,
		PartNumber:       input.Body.PartNumber,
		Description:      input.Body.Description,
		PriceByCurrency:  input.Body.PriceByCurrency,
		SourceConfidence: input.Body.SourceConfidence,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]MatchResponse, len(result.Matches))
	for i, m := range result.Matches {
		matches[i] = MatchResponse{
			Component:  componentResponse(m.Component),
			Score:      m.Score,
			Type:       string(m.Type),
			Confidence: string(m.Confidence),
			Reason:     m.Reason,
		}
	}
	return &ResolveCandidateOutput{
		Body: ResolveCandidateResponse{Matches: matches, Warnings: result.Warnings},
	}, nil
}
