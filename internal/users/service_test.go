package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type mockRepository struct {
	users map[string]*User
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[string]*User)}
}

func (m *mockRepository) Get(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var result []User
	for _, u := range m.users {
		if req.TeamID != nil && (u.TeamID == nil || *u.TeamID != *req.TeamID) {
			continue
		}
		if req.Role != nil && string(u.Role) != *req.Role {
			continue
		}
		result = append(result, *u)
	}
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, user User) error {
	cp := user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockRepository) Update(ctx context.Context, id string, updates map[string]any) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "first_name":
			u.FirstName = val.(string)
		case "last_name":
			u.LastName = val.(string)
		case "email":
			u.Email = val.(string)
		case "role":
			u.Role = rbac.Role(val.(string))
		}
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (m *mockRepository) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *mockRepository) SetTeam(ctx context.Context, id string, teamID *string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.TeamID = teamID
	return nil
}

func (m *mockRepository) SetPermissions(ctx context.Context, id string, perms []rbac.Capability) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Permissions = perms
	return nil
}

func (m *mockRepository) seed(u User) {
	cp := u
	m.users[u.ID] = &cp
}

func adminActor() rbac.Actor {
	return rbac.Actor{ID: "AD1", Role: rbac.RoleAdmin, IsActive: true}
}

func seededUser(id string, role rbac.Role, teamID *string) User {
	return User{
		ID: id, Email: id + "@meridian.test", FirstName: "F" + id, LastName: "L" + id,
		Role: role, TeamID: teamID, IsActive: true,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(nil, repo, adminActor())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "Jane@Meridian.Test", FirstName: "Jane", LastName: "Doe",
		Password: "supersecret", Role: "agent",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@meridian.test", user.Email)
	assert.Equal(t, rbac.RoleAgent, user.Role)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := NewService(nil, newMockRepository(), adminActor())
	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "x@y.test", FirstName: "X", LastName: "Y", Password: "longenough", Role: "superuser",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededUser("U1", rbac.RoleAgent, nil))
	svc := NewService(nil, repo, adminActor())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "U1@meridian.test", FirstName: "X", LastName: "Y", Password: "longenough", Role: "agent",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateUserRequiresCapability(t *testing.T) {
	svc := NewService(nil, newMockRepository(), rbac.Actor{ID: "A1", Role: rbac.RoleAgent, IsActive: true})
	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "x@y.test", FirstName: "X", LastName: "Y", Password: "longenough", Role: "agent",
	})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededUser("U1", rbac.RoleAgent, nil))
	svc := NewService(nil, repo, adminActor())

	require.NoError(t, svc.Deactivate(context.Background(), "U1"))
	assert.False(t, repo.users["U1"].IsActive)

	// Second deactivation succeeds quietly.
	require.NoError(t, svc.Deactivate(context.Background(), "U1"))
	assert.False(t, repo.users["U1"].IsActive)

	require.NoError(t, svc.Reactivate(context.Background(), "U1"))
	require.NoError(t, svc.Reactivate(context.Background(), "U1"))
	assert.True(t, repo.users["U1"].IsActive)
}

func TestManagerListScopedToOwnTeam(t *testing.T) {
	teamA, teamB := "T1", "T2"
	repo := newMockRepository()
	repo.seed(seededUser("U1", rbac.RoleAgent, &teamA))
	repo.seed(seededUser("U2", rbac.RoleAgent, &teamB))

	mgr := rbac.Actor{ID: "M1", Role: rbac.RoleManager, TeamID: &teamA, IsActive: true}
	rows, total, err := NewService(nil, repo, mgr).List(context.Background(), ListUsersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "U1", rows[0].ID)
}

func TestAgentCannotListUsers(t *testing.T) {
	svc := NewService(nil, newMockRepository(), rbac.Actor{ID: "A1", Role: rbac.RoleAgent, IsActive: true})
	_, _, err := svc.List(context.Background(), ListUsersRequest{})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestAgentCanFetchSelf(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededUser("A1", rbac.RoleAgent, nil))
	repo.seed(seededUser("A2", rbac.RoleAgent, nil))

	svc := NewService(nil, repo, rbac.Actor{ID: "A1", Role: rbac.RoleAgent, IsActive: true})
	self, err := svc.Get(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", self.ID)

	_, err = svc.Get(context.Background(), "A2")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUpdatePermissionsValidatesTokens(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededUser("U1", rbac.RoleAgent, nil))
	svc := NewService(nil, repo, adminActor())

	user, err := svc.UpdatePermissions(context.Background(), "U1", []string{"view_reports"})
	require.NoError(t, err)
	assert.Equal(t, []rbac.Capability{rbac.CapViewReports}, user.Permissions)

	_, err = svc.UpdatePermissions(context.Background(), "U1", []string{"not_a_capability"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatsCountsByRoleAndActivity(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededUser("U1", rbac.RoleAdmin, nil))
	repo.seed(seededUser("U2", rbac.RoleManager, nil))
	inactive := seededUser("U3", rbac.RoleAgent, nil)
	inactive.IsActive = false
	repo.seed(inactive)

	stats, err := NewService(nil, repo, adminActor()).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 1, stats.Admins)
	assert.Equal(t, 1, stats.Managers)
	assert.Equal(t, 1, stats.Agents)
}
