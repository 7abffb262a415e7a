package teams

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type mockRepository struct {
	teams   map[string]*Team
	members map[string][]Member
}

func newMockRepository() *mockRepository {
	return &mockRepository{teams: make(map[string]*Team), members: make(map[string][]Member)}
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, req ListTeamsRequest) ([]Team, int, error) {
	var result []Team
	for _, t := range m.teams {
		if req.IsActive != nil && t.IsActive != *req.IsActive {
			continue
		}
		result = append(result, *t)
	}
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, team Team) error {
	cp := team
	m.teams[team.ID] = &cp
	return nil
}

func (m *mockRepository) Update(ctx context.Context, id string, updates map[string]any) (*Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "name":
			t.Name = val.(string)
		case "is_active":
			t.IsActive = val.(bool)
		case "manager_id":
			v := val.(string)
			t.ManagerID = &v
		}
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.teams[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.teams, id)
	return nil
}

func (m *mockRepository) Members(ctx context.Context, teamID string) ([]Member, error) {
	return m.members[teamID], nil
}

func seededTeam(id, name string) Team {
	now := time.Now().UTC()
	return Team{ID: id, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
}

func TestAgentCannotSeeTeams(t *testing.T) {
	repo := newMockRepository()
	repo.teams["T1"] = &Team{ID: "T1", Name: "West", IsActive: true}

	svc := NewService(nil, repo, rbac.Actor{ID: "A1", Role: rbac.RoleAgent, IsActive: true})
	_, _, err := svc.List(context.Background(), ListTeamsRequest{})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.Get(context.Background(), "T1")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestManagerCanViewButNotManageTeams(t *testing.T) {
	repo := newMockRepository()
	team := seededTeam("T1", "West")
	repo.teams["T1"] = &team

	svc := NewService(nil, repo, rbac.Actor{ID: "M1", Role: rbac.RoleManager, IsActive: true})

	rows, total, err := svc.List(context.Background(), ListTeamsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, rows, 1)

	_, err = svc.Create(context.Background(), CreateTeamRequest{Name: "East"})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = svc.Delete(context.Background(), "T1")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestAdminCreatesTeam(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(nil, repo, rbac.Actor{ID: "AD1", Role: rbac.RoleAdmin, IsActive: true})

	team, err := svc.Create(context.Background(), CreateTeamRequest{Name: "  North  "})
	require.NoError(t, err)
	assert.Equal(t, "North", team.Name)
	assert.True(t, team.IsActive)
	assert.NotEmpty(t, team.ID)

	_, err = svc.Create(context.Background(), CreateTeamRequest{Name: "   "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteDeactivatesInsteadOfRemoving(t *testing.T) {
	repo := newMockRepository()
	team := seededTeam("T1", "West")
	repo.teams["T1"] = &team

	svc := NewService(nil, repo, rbac.Actor{ID: "AD1", Role: rbac.RoleAdmin, IsActive: true})
	require.NoError(t, svc.Delete(context.Background(), "T1"))

	kept, ok := repo.teams["T1"]
	require.True(t, ok, "row must survive a delete")
	assert.False(t, kept.IsActive)
}

func TestStatsCountsActiveMembers(t *testing.T) {
	repo := newMockRepository()
	team := seededTeam("T1", "West")
	repo.teams["T1"] = &team
	repo.members["T1"] = []Member{
		{ID: "U1", IsActive: true},
		{ID: "U2", IsActive: true},
		{ID: "U3", IsActive: false},
	}

	svc := NewService(nil, repo, rbac.Actor{ID: "M1", Role: rbac.RoleManager, IsActive: true})
	stats, err := svc.Stats(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MemberCount)
	assert.Equal(t, 2, stats.ActiveCount)
}

func TestMembersRequiresExistingTeam(t *testing.T) {
	svc := NewService(nil, newMockRepository(), rbac.Actor{ID: "AD1", Role: rbac.RoleAdmin, IsActive: true})
	_, err := svc.Members(context.Background(), "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
