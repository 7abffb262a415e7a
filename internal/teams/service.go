package teams

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Service handles team administration on behalf of one actor.
type Service struct {
	logger *slog.Logger
	repo   Repository
	eval   rbac.Evaluator
}

func NewService(logger *slog.Logger, repo Repository, actor rbac.Actor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, eval: rbac.NewEvaluator(actor)}
}

func (s *Service) List(ctx context.Context, req ListTeamsRequest) ([]Team, int, error) {
	if !s.eval.HasCapability(rbac.CapViewAllTeams) {
		return nil, 0, fmt.Errorf("list teams: %w", shared.ErrPermissionDenied)
	}
	return s.repo.List(ctx, req)
}

func (s *Service) Get(ctx context.Context, id string) (*Team, error) {
	if !s.eval.HasCapability(rbac.CapViewAllTeams) {
		return nil, fmt.Errorf("team %s: %w", id, shared.ErrPermissionDenied)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateTeamRequest) (*Team, error) {
	if !s.eval.CanManageTeams() {
		return nil, fmt.Errorf("create team: %w", shared.ErrPermissionDenied)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("team name is required: %w", shared.ErrValidation)
	}

	now := time.Now().UTC()
	team := Team{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		ManagerID:   req.ManagerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, team); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "actor_id", s.eval.Actor().ID)
	return &team, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateTeamRequest) (*Team, error) {
	if !s.eval.CanManageTeams() {
		return nil, fmt.Errorf("team %s: %w", id, shared.ErrPermissionDenied)
	}

	updates := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("team name cannot be empty: %w", shared.ErrValidation)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ManagerID != nil {
		updates["manager_id"] = *req.ManagerID
	}
	return s.repo.Update(ctx, id, updates)
}

// Delete deactivates the team rather than removing the row, so member
// accounts keep a resolvable team reference in historical data.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !s.eval.CanManageTeams() {
		return fmt.Errorf("team %s: %w", id, shared.ErrPermissionDenied)
	}
	if _, err := s.repo.Update(ctx, id, map[string]any{"is_active": false}); err != nil {
		return err
	}
	s.logger.Info("team deactivated", "team_id", id, "actor_id", s.eval.Actor().ID)
	return nil
}

func (s *Service) Members(ctx context.Context, id string) ([]Member, error) {
	if !s.eval.HasCapability(rbac.CapViewAllTeams) {
		return nil, fmt.Errorf("team %s members: %w", id, shared.ErrPermissionDenied)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, id)
}

func (s *Service) Stats(ctx context.Context, id string) (*Stats, error) {
	if !s.eval.CanViewReports() {
		return nil, fmt.Errorf("team %s stats: %w", id, shared.ErrPermissionDenied)
	}
	members, err := s.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := Stats{TeamID: id, MemberCount: len(members)}
	for _, m := range members {
		if m.IsActive {
			stats.ActiveCount++
		}
	}
	return &stats, nil
}
