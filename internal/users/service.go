package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Service handles user administration on behalf of one actor. All
// operations are capability-gated through the evaluator; managers are
// additionally scoped to their own team when listing.
type Service struct {
	logger *slog.Logger
	repo   Repository
	eval   rbac.Evaluator
}

// NewService builds a Service acting on behalf of the given actor.
func NewService(logger *slog.Logger, repo Repository, actor rbac.Actor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, eval: rbac.NewEvaluator(actor)}
}

// List returns user accounts. Managers with a team see only that team.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	if !s.eval.HasCapability(rbac.CapViewAllUsers) {
		return nil, 0, fmt.Errorf("list users: %w", shared.ErrPermissionDenied)
	}
	actor := s.eval.Actor()
	if actor.Role == rbac.RoleManager && actor.TeamID != nil {
		req.TeamID = actor.TeamID
	}
	return s.repo.List(ctx, req)
}

// Get fetches a single account. Any actor may fetch themselves; everyone
// else needs the view capability.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if id != s.eval.Actor().ID && !s.eval.HasCapability(rbac.CapViewAllUsers) {
		return nil, fmt.Errorf("user %s: %w", id, shared.ErrPermissionDenied)
	}
	return s.repo.Get(ctx, id)
}

// Create provisions a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if !s.eval.HasCapability(rbac.CapCreateUsers) {
		return nil, fmt.Errorf("create user: %w", shared.ErrPermissionDenied)
	}

	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, shared.ErrValidation)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", shared.ErrValidation)
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, fmt.Errorf("email already registered: %w", shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		TeamID:       req.TeamID,
		Permissions:  []rbac.Capability{},
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update patches account fields, including role reassignment.
func (s *Service) Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	if !s.eval.HasCapability(rbac.CapEditUsers) {
		return nil, fmt.Errorf("user %s: %w", id, shared.ErrPermissionDenied)
	}

	updates := make(map[string]any)
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		role, err := rbac.ParseRole(*req.Role)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, shared.ErrValidation)
		}
		updates["role"] = string(role)
	}
	return s.repo.Update(ctx, id, updates)
}

// Deactivate soft-deletes an account. The operation is idempotent:
// deactivating an already inactive account succeeds quietly.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if !s.eval.HasCapability(rbac.CapEditUsers) && !s.eval.HasCapability(rbac.CapDeleteUsers) {
		return fmt.Errorf("user %s: %w", id, shared.ErrPermissionDenied)
	}
	return s.repo.SetActive(ctx, id, false)
}

// Reactivate restores a deactivated account. Idempotent like Deactivate.
func (s *Service) Reactivate(ctx context.Context, id string) error {
	if !s.eval.HasCapability(rbac.CapEditUsers) {
		return fmt.Errorf("user %s: %w", id, shared.ErrPermissionDenied)
	}
	return s.repo.SetActive(ctx, id, true)
}

// AssignTeam moves an account between teams; nil detaches.
func (s *Service) AssignTeam(ctx context.Context, id string, teamID *string) error {
	if !s.eval.CanManageTeams() {
		return fmt.Errorf("user %s: %w", id, shared.ErrPermissionDenied)
	}
	return s.repo.SetTeam(ctx, id, teamID)
}

// UpdatePermissions replaces an account's capability overrides. Unknown
// tokens are rejected, not silently dropped.
func (s *Service) UpdatePermissions(ctx context.Context, id string, tokens []string) (*User, error) {
	if !s.eval.CanManageSettings() {
		return nil, fmt.Errorf("user %s: %w", id, shared.ErrPermissionDenied)
	}

	perms := make([]rbac.Capability, 0, len(tokens))
	for _, token := range tokens {
		c, err := rbac.ParseCapability(token)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, shared.ErrValidation)
		}
		perms = append(perms, c)
	}
	if err := s.repo.SetPermissions(ctx, id, perms); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Stats reduces the visible accounts into dashboard counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if !s.eval.CanViewReports() {
		return nil, fmt.Errorf("user stats: %w", shared.ErrPermissionDenied)
	}

	rows, _, err := s.List(ctx, ListUsersRequest{})
	if err != nil {
		return nil, err
	}

	stats := Stats{Total: len(rows)}
	for _, u := range rows {
		if u.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
		switch u.Role {
		case rbac.RoleAdmin:
			stats.Admins++
		case rbac.RoleManager:
			stats.Managers++
		case rbac.RoleAgent:
			stats.Agents++
		}
	}
	return &stats, nil
}
