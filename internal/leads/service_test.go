package leads

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	leads map[string]*Lead

	// lastFilter records the permission filter the service handed down.
	lastFilter rbac.LeadFilter

	// applyFilter toggles store-side filter application; disabling it
	// simulates a buggy store so the row-level re-check can be observed.
	applyFilter bool

	getError    error
	listError   error
	createError error
	updateError error
	deleteError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{leads: make(map[string]*Lead), applyFilter: true}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Lead, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *lead
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, req ListLeadsRequest, filter rbac.LeadFilter) ([]Lead, int, error) {
	if m.listError != nil {
		return nil, 0, m.listError
	}
	m.lastFilter = filter
	if filter.Scope == rbac.ScopeNone {
		return nil, 0, nil
	}

	var result []Lead
	for _, l := range m.leads {
		if m.applyFilter && filter.Scope == rbac.ScopeOwner && l.AssignedTo != filter.OwnerID {
			continue
		}
		if req.Status != nil && l.Status != *req.Status {
			continue
		}
		if req.AssignedTo != nil && l.AssignedTo != *req.AssignedTo {
			continue
		}
		if req.Company != nil && (l.Company == nil || *l.Company != *req.Company) {
			continue
		}
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, len(result), nil
}

func (m *mockRepository) Create(ctx context.Context, lead Lead) error {
	if m.createError != nil {
		return m.createError
	}
	cp := lead
	m.leads[lead.ID] = &cp
	return nil
}

func (m *mockRepository) Update(ctx context.Context, id string, updates map[string]any) (*Lead, error) {
	if m.updateError != nil {
		return nil, m.updateError
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "name":
			lead.Name = val.(string)
		case "phone":
			lead.Phone = val.(string)
		case "status":
			lead.Status = Status(val.(string))
		case "assigned_to":
			lead.AssignedTo = val.(string)
		case "consent":
			lead.Consent = val.(bool)
		case "notes":
			s := val.(string)
			lead.Notes = &s
		}
	}
	lead.UpdatedAt = time.Now().UTC()
	cp := *lead
	return &cp, nil
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	if m.deleteError != nil {
		return m.deleteError
	}
	if _, ok := m.leads[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *mockRepository) seed(lead Lead) {
	cp := lead
	m.leads[lead.ID] = &cp
}

type capturingPublisher struct {
	events []ChangeEvent
}

func (p *capturingPublisher) PublishChange(ctx context.Context, evt ChangeEvent) {
	p.events = append(p.events, evt)
}

// ============================================================================
// HELPERS
// ============================================================================

func agent(id string) rbac.Actor {
	return rbac.Actor{ID: id, Role: rbac.RoleAgent, IsActive: true}
}

func manager(id string) rbac.Actor {
	return rbac.Actor{ID: id, Role: rbac.RoleManager, IsActive: true}
}

func admin(id string) rbac.Actor {
	return rbac.Actor{ID: id, Role: rbac.RoleAdmin, IsActive: true}
}

func seededLead(id, owner string, status Status) Lead {
	return Lead{
		ID:         id,
		Name:       "Lead " + id,
		Phone:      "555-" + id,
		Status:     status,
		AssignedTo: owner,
		CreatedBy:  owner,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func newTestService(repo Repository, pub Publisher, actor rbac.Actor) *Service {
	return NewService(nil, repo, pub, nil, nil, actor)
}

// ============================================================================
// LIST
// ============================================================================

func TestListAgentSeesOnlyOwnLeads(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))
	repo.seed(seededLead("L2", "A2", StatusNew))
	repo.seed(seededLead("L3", "A1", StatusContacted))

	svc := newTestService(repo, nil, agent("A1"))
	rows, total, err := svc.List(context.Background(), ListLeadsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, lead := range rows {
		assert.Equal(t, "A1", lead.AssignedTo)
	}
	// Derived filter reached the store as an owner constraint.
	assert.Equal(t, rbac.LeadFilter{Scope: rbac.ScopeOwner, OwnerID: "A1"}, repo.lastFilter)
}

func TestListManagerSeesAllLeads(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))
	repo.seed(seededLead("L2", "A2", StatusNew))

	svc := newTestService(repo, nil, manager("M1"))
	rows, total, err := svc.List(context.Background(), ListLeadsRequest{Status: statusPtr(StatusNew)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)
	assert.Equal(t, rbac.ScopeAll, repo.lastFilter.Scope)
}

func TestListRowLevelRecheckDiscardsLeakedRows(t *testing.T) {
	repo := newMockRepository()
	repo.applyFilter = false // simulate a store that ignores the filter
	repo.seed(seededLead("L1", "A1", StatusNew))
	repo.seed(seededLead("L2", "A2", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))
	rows, total, err := svc.List(context.Background(), ListLeadsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "A1", rows[0].AssignedTo)
}

func TestListCallerFilterCannotWidenScope(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))
	repo.seed(seededLead("L2", "A2", StatusNew))

	// Agent explicitly asks for A2's leads; the AND of both constraints is empty.
	svc := newTestService(repo, nil, agent("A1"))
	rows, total, err := svc.List(context.Background(), ListLeadsRequest{AssignedTo: strPtr("A2")})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, rows)
}

func TestListEmptyResultIsNotAnError(t *testing.T) {
	svc := newTestService(newMockRepository(), nil, manager("M1"))
	rows, total, err := svc.List(context.Background(), ListLeadsRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}

func TestListOrderedMostRecentFirst(t *testing.T) {
	repo := newMockRepository()
	older := seededLead("L1", "A1", StatusNew)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := seededLead("L2", "A1", StatusNew)
	repo.seed(older)
	repo.seed(newer)

	svc := newTestService(repo, nil, agent("A1"))
	rows, _, err := svc.List(context.Background(), ListLeadsRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "L2", rows[0].ID)
	assert.Equal(t, "L1", rows[1].ID)
}

// ============================================================================
// GET
// ============================================================================

func TestGetDistinguishesNotFoundFromPermissionDenied(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L2", "A2", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NotErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.Get(context.Background(), "L2")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestGetOwnLead(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))
	lead, err := svc.Get(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, "L1", lead.ID)
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateDefaultsOwnerToCreator(t *testing.T) {
	repo := newMockRepository()
	pub := &capturingPublisher{}
	svc := newTestService(repo, pub, agent("A1"))

	lead, err := svc.Create(context.Background(), CreateLeadRequest{Name: "x", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "A1", lead.AssignedTo)
	assert.Equal(t, "A1", lead.CreatedBy)
	assert.Equal(t, StatusNew, lead.Status)
	assert.NotEmpty(t, lead.ID)

	// Round-trip: the creator reads back what was stored.
	got, err := svc.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, "X", got.Name) // normalized
	assert.Equal(t, "555", got.Phone)

	require.Len(t, pub.events, 1)
	assert.Equal(t, ChangeInsert, pub.events[0].Kind)
}

func TestCreateHonorsExplicitAssignment(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil, manager("M1"))

	lead, err := svc.Create(context.Background(), CreateLeadRequest{
		Name: "Jane Doe", Phone: "555", AssignedTo: strPtr("A2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "A2", lead.AssignedTo)
	assert.Equal(t, "M1", lead.CreatedBy)
}

func TestCreateConsentStampsTimestamp(t *testing.T) {
	svc := newTestService(newMockRepository(), nil, agent("A1"))
	lead, err := svc.Create(context.Background(), CreateLeadRequest{Name: "x", Phone: "5", Consent: true})
	require.NoError(t, err)
	require.NotNil(t, lead.ConsentAt)
	assert.WithinDuration(t, time.Now().UTC(), *lead.ConsentAt, time.Minute)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMockRepository(), nil, agent("A1"))

	_, err := svc.Create(context.Background(), CreateLeadRequest{Phone: "555"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), CreateLeadRequest{Name: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateStoreFailureLeavesNoTrace(t *testing.T) {
	repo := newMockRepository()
	pub := &capturingPublisher{}
	repo.createError = shared.ErrStoreUnavailable
	svc := newTestService(repo, pub, agent("A1"))

	_, err := svc.Create(context.Background(), CreateLeadRequest{Name: "x", Phone: "5"})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.Empty(t, repo.leads)
	assert.Empty(t, pub.events)
}

// ============================================================================
// UPDATE
// ============================================================================

func TestUpdateOwnLead(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))
	pub := &capturingPublisher{}

	svc := newTestService(repo, pub, agent("A1"))
	updated, err := svc.Update(context.Background(), "L1", UpdateLeadRequest{Status: statusPtr(StatusContacted)})
	require.NoError(t, err)
	assert.Equal(t, StatusContacted, updated.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, ChangeUpdate, pub.events[0].Kind)
}

func TestUpdateForeignLeadDenied(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L2", "A2", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))
	_, err := svc.Update(context.Background(), "L2", UpdateLeadRequest{Status: statusPtr(StatusContacted)})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	// Stored record untouched.
	assert.Equal(t, StatusNew, repo.leads["L2"].Status)
}

func TestUpdateCannotChangeOwnership(t *testing.T) {
	// UpdateLeadRequest carries no assigned-to field; a JSON payload with
	// one decodes to an identical patch. Verify the stored owner survives
	// a full update by the owning agent.
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))
	updated, err := svc.Update(context.Background(), "L1", UpdateLeadRequest{
		Name: strPtr("Renamed"), Status: statusPtr(StatusQualified),
	})
	require.NoError(t, err)
	assert.Equal(t, "A1", updated.AssignedTo)
	assert.Equal(t, "A1", repo.leads["L1"].AssignedTo)
}

func TestUpdateEmptyPatchIsNoop(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))
	lead, err := svc.Update(context.Background(), "L1", UpdateLeadRequest{})
	require.NoError(t, err)
	assert.Equal(t, "L1", lead.ID)
}

func TestUpdatePropagatesGetOutcomes(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L2", "A2", StatusNew))

	svc := newTestService(repo, nil, agent("A1"))

	_, err := svc.Update(context.Background(), "missing", UpdateLeadRequest{})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Update(context.Background(), "L2", UpdateLeadRequest{})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

// ============================================================================
// DELETE
// ============================================================================

func TestDeleteRequiresGlobalCapability(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))
	repo.seed(seededLead("L2", "A2", StatusNew))

	// Agents cannot delete, not even their own leads.
	err := newTestService(repo, nil, agent("A1")).Delete(context.Background(), "L1")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	// Managers cannot delete either.
	err = newTestService(repo, nil, manager("M1")).Delete(context.Background(), "L1")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	// Admins can, owner-blind.
	pub := &capturingPublisher{}
	err = newTestService(repo, pub, admin("AD1")).Delete(context.Background(), "L2")
	require.NoError(t, err)
	assert.NotContains(t, repo.leads, "L2")
	require.Len(t, pub.events, 1)
	assert.Equal(t, ChangeDelete, pub.events[0].Kind)
	assert.Equal(t, "A2", pub.events[0].PrevAssignedTo)
}

// ============================================================================
// ASSIGN
// ============================================================================

func TestAssignRequiresEditAll(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))

	// An agent cannot reassign their own lead, to themselves or anyone else.
	_, err := newTestService(repo, nil, agent("A1")).Assign(context.Background(), "L1", "A2")
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.Equal(t, "A1", repo.leads["L1"].AssignedTo)

	// A manager can.
	pub := &capturingPublisher{}
	updated, err := newTestService(repo, pub, manager("M1")).Assign(context.Background(), "L1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.AssignedTo)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "A1", pub.events[0].PrevAssignedTo)
}

func TestAssignValidatesOwner(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))

	_, err := newTestService(repo, nil, manager("M1")).Assign(context.Background(), "L1", "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

// ============================================================================
// STATS
// ============================================================================

func TestStatsScopedToVisibleLeads(t *testing.T) {
	repo := newMockRepository()
	repo.seed(seededLead("L1", "A1", StatusNew))
	repo.seed(seededLead("L2", "A1", StatusConverted))
	repo.seed(seededLead("L3", "A2", StatusNew))
	repo.seed(seededLead("L4", "A2", StatusFollowup))

	agentStats, err := newTestService(repo, nil, agent("A1")).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, agentStats.Total)
	assert.Equal(t, 1, agentStats.New)
	assert.Equal(t, 1, agentStats.Converted)
	assert.Zero(t, agentStats.Followup)

	managerStats, err := newTestService(repo, nil, manager("M1")).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, managerStats.Total)
	assert.Equal(t, 2, managerStats.New)
	assert.Equal(t, 1, managerStats.Followup)
}

// ============================================================================
// ERROR PROPAGATION
// ============================================================================

func TestStoreFailuresPropagateWithoutRetry(t *testing.T) {
	repo := newMockRepository()
	repo.listError = errors.New("connection refused")

	_, _, err := newTestService(repo, nil, manager("M1")).List(context.Background(), ListLeadsRequest{})
	assert.Error(t, err)
}

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }
