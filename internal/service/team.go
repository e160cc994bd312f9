package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quotelineapp/quoteline-server/internal/audit"
	"github.com/quotelineapp/quoteline-server/internal/domain"
	apperrors "github.com/quotelineapp/quoteline-server/internal/errors"
	"github.com/quotelineapp/quoteline-server/internal/id"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

// TeamService creates tenants and resolves identities. Authentication
// happens upstream; this service only maps opaque API keys and verified
// emails to user records.
type TeamService struct {
	store  *store.Store
	audit  *audit.Log
	logger *slog.Logger
}

// NewTeamService creates a new team service.
func NewTeamService(s *store.Store, al *audit.Log, logger *slog.Logger) *TeamService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamService{store: s, audit: al, logger: logger}
}

// CreateTeam creates a team together with its first admin user and issues
// the admin's API key. The key is returned once and stored only on the user
// record.
func (s *TeamService) CreateTeam(ctx context.Context, teamName, adminEmail, adminName string) (*domain.Team, *domain.User, error) {
	if teamName == "" {
		return nil, nil, apperrors.Validation("team name is required")
	}
	if adminEmail == "" {
		return nil, nil, apperrors.Validation("admin email is required")
	}

	team := &domain.Team{Name: teamName}
	team.ID = id.MustGenerate(id.PrefixTeam)
	team.InitTimestamps()
	if err := s.store.Teams.Create(ctx, team.ID, team); err != nil {
		return nil, nil, fmt.Errorf("create team: %w", err)
	}

	key, err := id.GenerateKey()
	if err != nil {
		return nil, nil, err
	}

	admin := &domain.User{
		TeamID: team.ID,
		Email:  adminEmail,
		Name:   adminName,
		Role:   domain.RoleAdmin,
		APIKey: key,
	}
	admin.ID = id.MustGenerate(id.PrefixUser)
	admin.InitTimestamps()
	if err := s.store.Users.Create(ctx, admin.ID, admin); err != nil {
		return nil, nil, fmt.Errorf("create admin user: %w", err)
	}

	s.logger.Info("Created team", "team_id", team.ID, "name", team.Name)
	if s.audit != nil {
		s.audit.RecordBestEffort(ctx, &audit.Entry{
			TeamID: team.ID,
			UserID: admin.ID,
			Action: "team.create",
			Detail: team.Name,
		})
	}
	return team, admin, nil
}

// AddUser adds a member to an existing team and issues their API key.
func (s *TeamService) AddUser(ctx context.Context, teamID, email, name string, role domain.Role) (*domain.User, error) {
	if _, err := s.store.Teams.Get(ctx, teamID); err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return nil, apperrors.Validationf("unknown role %q", role)
	}

	key, err := id.GenerateKey()
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		TeamID: teamID,
		Email:  email,
		Name:   name,
		Role:   role,
		APIKey: key,
	}
	user.ID = id.MustGenerate(id.PrefixUser)
	user.InitTimestamps()
	if err := s.store.Users.Create(ctx, user.ID, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetTeam returns one team.
func (s *TeamService) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	return s.store.Teams.Get(ctx, teamID)
}

// ResolveAPIKey maps an opaque bearer token to its user.
func (s *TeamService) ResolveAPIKey(ctx context.Context, key string) (*domain.User, error) {
	if key == "" {
		return nil, apperrors.ErrUnauthorized
	}
	user, err := s.store.Users.GetByIndex(ctx, "apikey", key)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ResolveEmail maps a verified email address to its user.
func (s *TeamService) ResolveEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.store.Users.GetByIndex(ctx, "email", email)
}
